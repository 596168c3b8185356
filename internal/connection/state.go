package connection

import (
	"fmt"
	"time"
)

// State is a ConnectionManager lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Connected
	Reconnecting
	Closed
)

var stateNames = [...]string{
	Disconnected:   "disconnected",
	Connecting:     "connecting",
	Authenticating: "authenticating",
	Connected:      "connected",
	Reconnecting:   "reconnecting",
	Closed:         "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// allowed lists the legal successors of each state. Connecting never leads
// straight to Connected: the upgrade always passes through Authenticating.
var allowed = map[State][]State{
	Disconnected:   {Connecting, Closed},
	Connecting:     {Authenticating, Reconnecting, Disconnected, Closed},
	Authenticating: {Connected, Connecting, Reconnecting, Disconnected, Closed},
	Connected:      {Reconnecting, Disconnected, Closed},
	Reconnecting:   {Connecting, Disconnected, Closed},
	Closed:         {Connecting},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition is published on Manager.Transitions for every state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error // cause of a Reconnecting or Disconnected transition
}

func (t Transition) String() string {
	if t.Err != nil {
		return fmt.Sprintf("%s -> %s (%v)", t.From, t.To, t.Err)
	}
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}
