// Package memory implements the document store contract entirely in process
// memory. It is the reference backend: the sqlite and postgres stores layer
// durability on top of it by snapshotting its state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"casecore/pkg/domain"
)

// Exported aliases keep method signatures concise while still exposing domain
// types from this infra package.
type (
	// XFormInstance is an alias of domain.XFormInstance.
	XFormInstance = domain.XFormInstance
	// Case is an alias of domain.Case.
	Case = domain.Case
	// LedgerTransaction is an alias of domain.LedgerTransaction.
	LedgerTransaction = domain.LedgerTransaction
	// LedgerValue is an alias of domain.LedgerValue.
	LedgerValue = domain.LedgerValue
	// ArchiveStub is an alias of domain.ArchiveStub.
	ArchiveStub = domain.ArchiveStub
)

type state struct {
	forms   map[string]XFormInstance
	cases   map[string]Case
	ledger  []LedgerTransaction
	stubs   map[string]ArchiveStub
	nextSeq int64
}

func newState() state {
	return state{
		forms:   make(map[string]XFormInstance),
		cases:   make(map[string]Case),
		stubs:   make(map[string]ArchiveStub),
		nextSeq: 1,
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.forms {
		cloned.forms[k] = cloneForm(v)
	}
	for k, v := range s.cases {
		cloned.cases[k] = cloneCase(v)
	}
	for k, v := range s.stubs {
		cloned.stubs[k] = cloneStub(v)
	}
	cloned.ledger = append([]LedgerTransaction(nil), s.ledger...)
	cloned.nextSeq = s.nextSeq
	return cloned
}

func cloneForm(f XFormInstance) XFormInstance {
	cp := f
	cp.Attachments = append([]domain.Attachment(nil), f.Attachments...)
	if f.DeletedOn != nil {
		d := *f.DeletedOn
		cp.DeletedOn = &d
	}
	return cp
}

func cloneCase(c Case) Case {
	cp := c
	cp.Indices = append([]domain.CaseIndex(nil), c.Indices...)
	cp.XFormIDs = append([]string(nil), c.XFormIDs...)
	cp.Attachments = append([]domain.Attachment(nil), c.Attachments...)
	if c.ClosedOn != nil {
		d := *c.ClosedOn
		cp.ClosedOn = &d
	}
	if c.DeletedOn != nil {
		d := *c.DeletedOn
		cp.DeletedOn = &d
	}
	return cp
}

func cloneStub(s ArchiveStub) ArchiveStub {
	cp := s
	if s.ClosedOn != nil {
		d := *s.ClosedOn
		cp.ClosedOn = &d
	}
	return cp
}

// Store is the in-memory backend. Reads take a shared lock; transactions
// mutate a cloned state and swap it in on success, so a failed transaction
// leaves no partial writes behind.
type Store struct {
	mu    sync.RWMutex
	state state
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source, used by tests to freeze time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New constructs an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.Backend = (*Store)(nil)

// RunInTransaction applies fn to a cloned state and commits the clone only
// when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.state.clone()
	tx := &transaction{state: &working, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = working
	return nil
}

// transaction mutates a working copy of the store state.
type transaction struct {
	state *state
	now   func() time.Time
}

// SaveForm creates or replaces a form, stamping the modification marker.
func (t *transaction) SaveForm(form XFormInstance) (XFormInstance, error) {
	if form.FormID == "" {
		form.FormID = uuid.NewString()
	}
	if form.State == "" {
		form.State = domain.StateNormal
	}
	now := t.now()
	if form.ReceivedOn.IsZero() {
		form.ReceivedOn = now
	}
	form.ModifiedOn = now
	t.state.forms[form.FormID] = cloneForm(form)
	return form, nil
}

// SetArchivedState drives the normal/archived state machine. Writing the
// state the form already holds is a no-op; other states reject.
func (t *transaction) SetArchivedState(formID string, archive bool, _ string) (XFormInstance, error) {
	form, ok := t.state.forms[formID]
	if !ok || form.Deleted {
		return XFormInstance{}, domain.FormNotFoundError{FormID: formID}
	}
	target := domain.StateNormal
	if archive {
		target = domain.StateArchived
	}
	if form.State == target {
		return form, nil
	}
	if form.State != domain.StateNormal && form.State != domain.StateArchived {
		return XFormInstance{}, domain.InvalidFormStateError{FormID: formID, State: form.State}
	}
	form.State = target
	form.ModifiedOn = t.now()
	t.state.forms[formID] = form
	return form, nil
}

// SoftDeleteForms tombstones each form once; re-deleting keeps the first stamp.
func (t *transaction) SoftDeleteForms(dom string, formIDs []string, deletionDate time.Time, deletionID string) (int, error) {
	deleted := 0
	for _, id := range formIDs {
		form, ok := t.state.forms[id]
		if !ok || form.Domain != dom || form.Deleted {
			continue
		}
		d := deletionDate
		form.Deleted = true
		form.DeletedOn = &d
		form.DeletionID = deletionID
		t.state.forms[id] = form
		deleted++
	}
	return deleted, nil
}

// SoftUndeleteForms clears tombstones; undeleting a live form is a no-op.
func (t *transaction) SoftUndeleteForms(dom string, formIDs []string) (int, error) {
	restored := 0
	for _, id := range formIDs {
		form, ok := t.state.forms[id]
		if !ok || form.Domain != dom || !form.Deleted {
			continue
		}
		form.Deleted = false
		form.DeletedOn = nil
		form.DeletionID = ""
		t.state.forms[id] = form
		restored++
	}
	return restored, nil
}

// SaveCase creates or replaces a case, normalizing its index set to the
// last-write-wins view and stamping the modification marker.
func (t *transaction) SaveCase(c Case) (Case, error) {
	if c.CaseID == "" {
		c.CaseID = uuid.NewString()
	}
	now := t.now()
	if c.OpenedOn.IsZero() {
		c.OpenedOn = now
	}
	c.ModifiedOn = now
	c.Indices = c.LiveIndices()
	t.state.cases[c.CaseID] = cloneCase(c)
	return c, nil
}

func (t *transaction) SoftDeleteCases(dom string, caseIDs []string, deletionDate time.Time, deletionID string) (int, error) {
	deleted := 0
	for _, id := range caseIDs {
		c, ok := t.state.cases[id]
		if !ok || c.Domain != dom || c.Deleted {
			continue
		}
		d := deletionDate
		c.Deleted = true
		c.DeletedOn = &d
		c.DeletionID = deletionID
		t.state.cases[id] = c
		deleted++
	}
	return deleted, nil
}

func (t *transaction) SoftUndeleteCases(dom string, caseIDs []string) (int, error) {
	restored := 0
	for _, id := range caseIDs {
		c, ok := t.state.cases[id]
		if !ok || c.Domain != dom || !c.Deleted {
			continue
		}
		c.Deleted = false
		c.DeletedOn = nil
		c.DeletionID = ""
		t.state.cases[id] = c
		restored++
	}
	return restored, nil
}

// SaveLedgerTransaction appends to the log, assigning the next sequence
// number. The sequence is the deterministic tie-break for equal dates.
func (t *transaction) SaveLedgerTransaction(tx LedgerTransaction) (LedgerTransaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.ReportedOn.IsZero() {
		tx.ReportedOn = t.now()
	}
	tx.Seq = t.state.nextSeq
	t.state.nextSeq++
	t.state.ledger = append(t.state.ledger, tx)
	return tx, nil
}

// OpenArchiveStub records an in-flight archive bracket. Re-opening an
// existing stub (a reconciliation re-drive) bumps its attempt counter.
func (t *transaction) OpenArchiveStub(stub ArchiveStub) (ArchiveStub, error) {
	if stub.StubID == "" {
		stub.StubID = uuid.NewString()
	}
	if existing, ok := t.state.stubs[stub.StubID]; ok {
		existing.Attempts++
		existing.Closed = false
		existing.ClosedOn = nil
		t.state.stubs[stub.StubID] = existing
		return existing, nil
	}
	if stub.OpenedOn.IsZero() {
		stub.OpenedOn = t.now()
	}
	stub.Attempts = 1
	t.state.stubs[stub.StubID] = cloneStub(stub)
	return stub, nil
}

func (t *transaction) MarkStubHistoryUpdated(stubID string) error {
	stub, ok := t.state.stubs[stubID]
	if !ok {
		return fmt.Errorf("archive stub %s not found", stubID)
	}
	stub.HistoryUpdated = true
	t.state.stubs[stubID] = stub
	return nil
}

func (t *transaction) CloseArchiveStub(stubID string, closedOn time.Time) error {
	stub, ok := t.state.stubs[stubID]
	if !ok {
		return fmt.Errorf("archive stub %s not found", stubID)
	}
	stub.Closed = true
	d := closedOn
	stub.ClosedOn = &d
	t.state.stubs[stubID] = stub
	return nil
}

// sortedIDs returns map keys in stable order for deterministic enumeration.
func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
