package node

import (
	"sync/atomic"
)

// State captures the state of a node: Initialised, Running or Shutdown
type State uint32

const (
	//Initialised is the state of a node before Run
	Initialised State = iota
	//Running is running
	Running
	//Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Initialised:
		return "Initialised"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
