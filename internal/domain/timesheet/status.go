package timesheet

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionLock    Action = "lock"
	ActionUnlock  Action = "unlock"
	ActionDelete  Action = "delete"
)

// transitions lists every outgoing edge of the lifecycle. Delete is legal
// from any state and handled separately.
var transitions = map[Status]map[Action]Status{
	StatusOpen: {
		ActionSubmit: StatusSubmitted,
	},
	StatusSubmitted: {
		ActionApprove: StatusApproved,
		ActionUnlock:  StatusOpen,
	},
	StatusApproved: {
		ActionLock:   StatusLocked,
		ActionUnlock: StatusOpen,
	},
	StatusLocked: {
		ActionUnlock: StatusOpen,
	},
}

// Next returns the status reached by applying action to current, or a
// *StateTransitionError when current has no such edge.
func Next(current Status, action Action) (Status, error) {
	if action == ActionDelete && current.Valid() {
		return current, nil
	}
	if next, ok := transitions[current][action]; ok {
		return next, nil
	}
	return current, &StateTransitionError{Current: current, Action: action}
}

// RequiresAdmin reports whether only administrators may perform action.
func RequiresAdmin(action Action) bool {
	return action != ActionSubmit
}

// EntriesMutable reports whether an owning employee may create, edit or
// delete entries while the timesheet is in status s.
func EntriesMutable(s Status) bool {
	return s == StatusOpen
}
