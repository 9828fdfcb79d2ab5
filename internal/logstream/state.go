package logstream

// ConnectionState is the lifecycle state of a Client's transport. Exactly
// one state is current at any time.
type ConnectionState int

const (
	Connecting ConnectionState = iota
	Open
	Closed
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type event int

const (
	evDial event = iota
	evHandshake
	evRemoteClose
	evTransportError
	evLocalClose
)

func (e event) String() string {
	switch e {
	case evDial:
		return "dial"
	case evHandshake:
		return "handshake"
	case evRemoteClose:
		return "remote_close"
	case evTransportError:
		return "transport_error"
	case evLocalClose:
		return "local_close"
	default:
		return "unknown"
	}
}

// transitions is the complete event table. A (state, event) pair missing
// from the table is ignored, which is how a late completion from a dead
// connection is kept from reviving a newer one.
var transitions = map[ConnectionState]map[event]ConnectionState{
	Closed: {
		evDial: Connecting,
	},
	Failed: {
		evDial:       Connecting,
		evLocalClose: Closed,
	},
	Connecting: {
		evHandshake:      Open,
		evTransportError: Failed,
		evRemoteClose:    Failed, // closed before the handshake completed
		evLocalClose:     Closed,
	},
	Open: {
		evRemoteClose:    Closed,
		evTransportError: Failed,
		evLocalClose:     Closed,
	},
}

func transition(from ConnectionState, ev event) (ConnectionState, bool) {
	next, ok := transitions[from][ev]
	return next, ok
}
