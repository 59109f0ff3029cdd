package domain

import (
	"errors"
	"fmt"
)

// FormNotFoundError is returned when a form id does not resolve, or resolves
// outside the accessor's bound domain. The two situations are deliberately
// indistinguishable so existence never leaks across tenants.
type FormNotFoundError struct {
	FormID string
}

func (e FormNotFoundError) Error() string {
	return fmt.Sprintf("form %s not found", e.FormID)
}

// CaseNotFoundError is the case analogue of FormNotFoundError, covering both
// absence and domain mismatch.
type CaseNotFoundError struct {
	CaseID string
}

func (e CaseNotFoundError) Error() string {
	return fmt.Sprintf("case %s not found", e.CaseID)
}

// LedgerValueNotFoundError is returned when no transactions exist for a
// (case, section, entry) ledger key.
type LedgerValueNotFoundError struct {
	CaseID    string
	SectionID string
	EntryID   string
}

func (e LedgerValueNotFoundError) Error() string {
	return fmt.Sprintf("ledger value %s/%s/%s not found", e.CaseID, e.SectionID, e.EntryID)
}

// AttachmentNotFoundError is returned when a named attachment does not exist
// on the referenced form or case.
type AttachmentNotFoundError struct {
	OwnerID string
	Name    string
}

func (e AttachmentNotFoundError) Error() string {
	return fmt.Sprintf("attachment %s on %s not found", e.Name, e.OwnerID)
}

// InvalidFormStateError is returned when an archive transition is requested
// for a form whose state is terminal for archiving (duplicate, error,
// deprecated). Divergent silent behavior across backends is not acceptable,
// so the rejection is explicit.
type InvalidFormStateError struct {
	FormID string
	State  FormState
}

func (e InvalidFormStateError) Error() string {
	return fmt.Sprintf("form %s in state %s cannot be archived or unarchived", e.FormID, e.State)
}

// DuplicateActionError is returned when a system action name is registered
// twice. Registration is append-only; overwriting would silently reroute
// previously recorded action forms.
type DuplicateActionError struct {
	Name string
}

func (e DuplicateActionError) Error() string {
	return fmt.Sprintf("system action %q already registered", e.Name)
}

// UnknownSystemActionError is returned when submitting or replaying an action
// name that was never registered.
type UnknownSystemActionError struct {
	Name string
}

func (e UnknownSystemActionError) Error() string {
	return fmt.Sprintf("unknown system action %q", e.Name)
}

// UnauthorizedSystemActionError is returned when a system action form is
// handled outside the designated internal execution context.
type UnauthorizedSystemActionError struct {
	FormID string
}

func (e UnauthorizedSystemActionError) Error() string {
	return fmt.Sprintf("form %s: system action handled outside system context", e.FormID)
}

// ErrAttachmentConsumed is returned on a second read of a single-read
// attachment stream.
var ErrAttachmentConsumed = errors.New("attachment content already consumed")
