package reconciliation

import "fmt"

// ConflictError reports a duplicate or merge group the tie-break policy
// cannot order, such as a member missing its creation time or id.
type ConflictError struct {
	Operation string
	GroupKey  string
	Reason    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: unresolvable conflict in group %s: %s", e.Operation, e.GroupKey, e.Reason)
}
