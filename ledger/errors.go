package ledger

import "fmt"

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConsistencyError reports vendor records that cannot be combined into one
// ledger. Changing the request does not help.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "inconsistent payment records: " + e.Reason
}

// NotFoundError reports that no records exist for the given identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
