package convo

import "github.com/helpathands/shiftline/internal/workflow"

// Context is the per-session working memory of the action-tag handlers.
// It is owned by value by the Core and never shared across sessions.
type Context struct {
	// CurrentShifts holds the shifts returned by the most recent lookup.
	CurrentShifts []workflow.Shift

	// SelectedShift is the target of a pending cancellation, if any.
	SelectedShift *workflow.Shift

	// Staff is the caller's identity from the most recent lookup.
	Staff workflow.Staff

	// HasStaff reports whether Staff has been populated.
	HasStaff bool

	// IsCancellation is the date reasoner's classification of the user's
	// intent for the current query.
	IsCancellation bool
}

// Reset clears all working memory, returning the session to the idle state.
func (c *Context) Reset() {
	*c = Context{}
}
