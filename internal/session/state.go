package session

import "fmt"

// State 会话状态
type State int

const (
	StateAccepted State = iota
	StateClassified
	StateUpgrading
	StateUpgraded
	StateProtocolSelected
	StateServing
	StateClosed
)

var stateNames = [...]string{
	StateAccepted:         "accepted",
	StateClassified:       "classified",
	StateUpgrading:        "upgrading",
	StateUpgraded:         "upgraded",
	StateProtocolSelected: "protocol_selected",
	StateServing:          "serving",
	StateClosed:           "closed",
}

// String 实现 fmt.Stringer
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the legal successors of every state except Closed.
// Closed is reachable from anywhere and has no successors.
var transitions = map[State][]State{
	StateAccepted:         {StateClassified},
	StateClassified:       {StateUpgrading, StateProtocolSelected},
	StateUpgrading:        {StateUpgraded},
	StateUpgraded:         {StateProtocolSelected},
	StateProtocolSelected: {StateServing},
	StateServing:          {},
}

// CanTransition 校验状态迁移是否合法
func CanTransition(from, to State) bool {
	if from == StateClosed {
		return false
	}
	if to == StateClosed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
