// Package domain defines the persistent entities, backend contracts, and
// error taxonomy for the case/form processing core.
package domain

import (
	"time"
)

// FormState identifies the processing state of a submitted form.
type FormState string

// Canonical form processing states. A form is created in StateNormal and may
// move between StateNormal and StateArchived; the remaining states are
// assigned during submission processing and are terminal for archiving.
const (
	// StateNormal identifies a successfully processed form.
	StateNormal FormState = "normal"
	// StateArchived identifies a form excluded from case history and exports.
	StateArchived FormState = "archived"
	// StateDeprecated identifies a form superseded by an edited resubmission.
	StateDeprecated FormState = "deprecated"
	// StateDuplicate identifies a repeated submission of an existing form.
	StateDuplicate FormState = "duplicate"
	// StateError identifies a form that failed submission processing.
	StateError FormState = "error"
)

// SystemActionXMLNS marks a form as the recording of a privileged system
// action. The payload of such a form is the JSON-safe argument encoding
// supplied when the action was submitted.
const SystemActionXMLNS = "http://commcarehq.org/system/action"

// XFormInstance is one submitted payload. Forms are immutable once submitted
// except for state transitions driven by system actions and soft deletion.
type XFormInstance struct {
	FormID      string       `json:"form_id"`
	Domain      string       `json:"domain"`
	XMLNS       string       `json:"xmlns,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
	State       FormState    `json:"state"`
	ReceivedOn  time.Time    `json:"received_on"`
	ModifiedOn  time.Time    `json:"modified_on"`
	Payload     FormPayload  `json:"payload,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Deleted     bool         `json:"deleted,omitempty"`
	DeletedOn   *time.Time   `json:"deleted_on,omitempty"`
	DeletionID  string       `json:"deletion_id,omitempty"`
}

// IsNormal reports whether the form is in the normal processed state.
func (f XFormInstance) IsNormal() bool { return f.State == StateNormal }

// IsArchived reports whether the form is archived.
func (f XFormInstance) IsArchived() bool { return f.State == StateArchived }

// IsDeprecated reports whether the form was superseded by an edit.
func (f XFormInstance) IsDeprecated() bool { return f.State == StateDeprecated }

// IsDuplicate reports whether the form is a duplicate submission.
func (f XFormInstance) IsDuplicate() bool { return f.State == StateDuplicate }

// IsError reports whether the form failed processing.
func (f XFormInstance) IsError() bool { return f.State == StateError }

// IsSystemAction reports whether the form records a system action.
func (f XFormInstance) IsSystemAction() bool { return f.XMLNS == SystemActionXMLNS }

// Relationship describes the kind of a case index edge.
type Relationship string

const (
	// RelationshipChild links a child case to its parent.
	RelationshipChild Relationship = "child"
	// RelationshipExtension binds an extension case's lifecycle to its host.
	RelationshipExtension Relationship = "extension"
)

// CaseIndex is a directed edge from its owning case to a referenced case.
// Index identifiers are unique per case: a later index with the same
// identifier supersedes the earlier one.
type CaseIndex struct {
	Identifier     string       `json:"identifier"`
	ReferencedID   string       `json:"referenced_id"`
	ReferencedType string       `json:"referenced_type"`
	Relationship   Relationship `json:"relationship"`
}

// Case is a tracked real-world entity whose state is the fold of a sequence
// of form-driven updates. Cases are never physically deleted; deletion is a
// tombstone flag reversible by undelete.
type Case struct {
	CaseID      string       `json:"case_id"`
	Domain      string       `json:"domain"`
	CaseType    string       `json:"case_type"`
	Name        string       `json:"name,omitempty"`
	OwnerID     string       `json:"owner_id,omitempty"`
	ExternalID  string       `json:"external_id,omitempty"`
	Closed      bool         `json:"closed"`
	OpenedOn    time.Time    `json:"opened_on"`
	ModifiedOn  time.Time    `json:"modified_on"`
	ClosedOn    *time.Time   `json:"closed_on,omitempty"`
	Indices     []CaseIndex  `json:"indices,omitempty"`
	XFormIDs    []string     `json:"xform_ids,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Deleted     bool         `json:"deleted,omitempty"`
	DeletedOn   *time.Time   `json:"deleted_on,omitempty"`
	DeletionID  string       `json:"deletion_id,omitempty"`
}

// LiveIndices returns the effective index set after applying the
// last-write-wins rule per identifier, preserving first-seen order of the
// surviving identifiers.
func (c Case) LiveIndices() []CaseIndex {
	if len(c.Indices) == 0 {
		return nil
	}
	latest := make(map[string]CaseIndex, len(c.Indices))
	order := make([]string, 0, len(c.Indices))
	for _, idx := range c.Indices {
		if _, seen := latest[idx.Identifier]; !seen {
			order = append(order, idx.Identifier)
		}
		latest[idx.Identifier] = idx
	}
	out := make([]CaseIndex, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out
}

// CaseIndexInfo is a flattened index edge annotated with its owning case id,
// the shape returned by graph queries over the index table.
type CaseIndexInfo struct {
	CaseID         string       `json:"case_id"`
	Identifier     string       `json:"identifier"`
	ReferencedID   string       `json:"referenced_id"`
	ReferencedType string       `json:"referenced_type"`
	Relationship   Relationship `json:"relationship"`
}

// Key returns the edge key used by incremental graph walks to skip edges
// they have already visited: "<referenced_case_id> <identifier>".
func (i CaseIndexInfo) Key() string {
	return i.ReferencedID + " " + i.Identifier
}

// ExtensionCaseInfo describes one extension case reached during a hop of the
// extension-chain traversal. CaseType is carried so the traversal can stop
// expansion at excluded case types without another round trip.
type ExtensionCaseInfo struct {
	CaseID   string `json:"case_id"`
	CaseType string `json:"case_type"`
	Closed   bool   `json:"closed"`
}

// LedgerTransaction is one entry of the ordered transaction log for a
// (case, section, entry) ledger key. Seq is a backend-assigned monotonic
// sequence used to break date ties deterministically.
type LedgerTransaction struct {
	ID         string    `json:"id"`
	FormID     string    `json:"form_id"`
	CaseID     string    `json:"case_id"`
	SectionID  string    `json:"section_id"`
	EntryID    string    `json:"entry_id"`
	Delta      int       `json:"delta"`
	ReportedOn time.Time `json:"reported_on"`
	Seq        int64     `json:"seq"`
}

// LedgerValue is the current running balance for a (case, section, entry)
// key, always derivable by folding the transaction log in (date, seq) order.
type LedgerValue struct {
	CaseID       string    `json:"case_id"`
	SectionID    string    `json:"section_id"`
	EntryID      string    `json:"entry_id"`
	Balance      int       `json:"balance"`
	LastModified time.Time `json:"last_modified"`
	LastFormID   string    `json:"last_form_id,omitempty"`
}

// LedgerState maps section id to entry id to current ledger value for one case.
type LedgerState map[string]map[string]LedgerValue

// ArchiveStub brackets an in-flight un/archive so an interrupted operation is
// detectable and replayable: the stub is opened before the state write and
// closed after the change feed publication. An open stub older than a
// reconciliation threshold marks an operation that must be re-driven.
type ArchiveStub struct {
	StubID         string     `json:"stub_id"`
	FormID         string     `json:"form_id"`
	Domain         string     `json:"domain"`
	UserID         string     `json:"user_id,omitempty"`
	Archive        bool       `json:"archive"`
	TriggerSignals bool       `json:"trigger_signals"`
	HistoryUpdated bool       `json:"history_updated"`
	Closed         bool       `json:"closed"`
	OpenedOn       time.Time  `json:"opened_on"`
	ClosedOn       *time.Time `json:"closed_on,omitempty"`
	Attempts       int        `json:"attempts"`
}

// IntendedState returns the form state the bracketed operation is driving to.
func (s ArchiveStub) IntendedState() FormState {
	if s.Archive {
		return StateArchived
	}
	return StateNormal
}

// Attachment is the stored metadata of a binary attachment; the bytes live
// in the blob store under BlobKey.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	BlobKey     string `json:"blob_key"`
	Length      int64  `json:"length"`
}
