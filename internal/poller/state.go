package poller

// State is a step of the poll cycle state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSubscribing
	StateRequesting
	StateSettling
	StateUnsubscribing
	StateDisconnecting
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateConnecting:    "connecting",
	StateSubscribing:   "subscribing",
	StateRequesting:    "requesting",
	StateSettling:      "settling",
	StateUnsubscribing: "unsubscribing",
	StateDisconnecting: "disconnecting",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
