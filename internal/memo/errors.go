package memo

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no memo exists for the given id.
var ErrNotFound = errors.New("memo not found")

// InvalidTransitionErr reports an action that is legal in general but not
// from the memo's current state.
type InvalidTransitionErr struct {
	MemoID string
	From   Status
	Action string
}

func (e InvalidTransitionErr) Error() string {
	return fmt.Sprintf("invalid transition: action %q not allowed from status %s", e.Action, e.From)
}

// InvalidActionErr reports an action token outside the recognized set for
// the stage being acted on.
type InvalidActionErr struct {
	Stage  string
	Action string
}

func (e InvalidActionErr) Error() string {
	return fmt.Sprintf("invalid action: %q is not a recognized %s action", e.Action, e.Stage)
}

// InvalidStateErr reports a non-transition operation attempted in a state
// that forbids it (edits outside DRAFT, document generation outside APPROVED).
type InvalidStateErr struct {
	MemoID    string
	Status    Status
	Operation string
}

func (e InvalidStateErr) Error() string {
	return fmt.Sprintf("invalid state: %s not permitted while memo is %s", e.Operation, e.Status)
}

// ConflictErr reports a stale write rejected by the version check.
type ConflictErr struct {
	MemoID          string
	ExpectedVersion int64
}

func (e ConflictErr) Error() string {
	return fmt.Sprintf("conflict: memo %s changed since version %d was read", e.MemoID, e.ExpectedVersion)
}

// ReviewerResolutionErr reports a reviewer id the directory could not
// resolve. Unlike recipient resolution, this fails the whole action.
type ReviewerResolutionErr struct {
	UserID string
	Err    error
}

func (e ReviewerResolutionErr) Error() string {
	return fmt.Sprintf("reviewer %s could not be resolved: %v", e.UserID, e.Err)
}

func (e ReviewerResolutionErr) Unwrap() error { return e.Err }
