package card

import "fmt"

// PersistError marks a failure after the expensive pipeline work is done.
// Points are not refunded and the in-memory artifact is still handed back,
// the card just won't show up in history.
type PersistError struct {
	Cause error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist failed: %v", e.Cause) }
func (e *PersistError) Unwrap() error { return e.Cause }
