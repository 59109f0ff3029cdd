package domain

import (
	"context"
	"time"
)

// Transaction exposes the mutating operations a backend must support within
// an atomic scope. Per-record mutation ordering is the backend's concern
// (row/document locking); this layer adds no serialization of its own.
type Transaction interface {
	// SaveForm creates or replaces a form document. ModifiedOn is stamped by
	// the backend and acts as the optimistic versioning marker.
	SaveForm(form XFormInstance) (XFormInstance, error)
	// SetArchivedState drives the form's state machine between normal and
	// archived. Transitioning to the state the form is already in is a no-op;
	// duplicate, error, and deprecated forms are rejected with
	// InvalidFormStateError.
	SetArchivedState(formID string, archive bool, userID string) (XFormInstance, error)
	// SoftDeleteForms tombstones the given forms. Already-deleted forms keep
	// their original deletion stamp. Returns the number of newly deleted forms.
	SoftDeleteForms(domain string, formIDs []string, deletionDate time.Time, deletionID string) (int, error)
	// SoftUndeleteForms clears tombstones. Returns the number of restored forms.
	SoftUndeleteForms(domain string, formIDs []string) (int, error)

	SaveCase(c Case) (Case, error)
	SoftDeleteCases(domain string, caseIDs []string, deletionDate time.Time, deletionID string) (int, error)
	SoftUndeleteCases(domain string, caseIDs []string) (int, error)

	// SaveLedgerTransaction appends to the transaction log for the ledger key,
	// assigning the backend's monotonic sequence number.
	SaveLedgerTransaction(tx LedgerTransaction) (LedgerTransaction, error)

	// OpenArchiveStub records an in-flight archive operation. The stub must be
	// durable before the subsequent state write.
	OpenArchiveStub(stub ArchiveStub) (ArchiveStub, error)
	MarkStubHistoryUpdated(stubID string) error
	CloseArchiveStub(stubID string, closedOn time.Time) error
}

// FormReader is the read side of the form store.
type FormReader interface {
	// GetForm returns the form or FormNotFoundError.
	GetForm(formID string) (XFormInstance, error)
	// GetForms returns the forms for the given ids; missing ids are omitted.
	// With ordered, results match the input order of the ids that resolved.
	GetForms(formIDs []string, ordered bool) ([]XFormInstance, error)
	// FormExists probes for a form id; with a non-empty domain the owning
	// domain must also match.
	FormExists(formID, domain string) (bool, error)
	// GetFormIDsInDomainByState enumerates non-deleted form ids in a domain
	// with the given state.
	GetFormIDsInDomainByState(domain string, state FormState) ([]string, error)
}

// CaseReader is the read side of the case store, including the index graph.
type CaseReader interface {
	GetCase(caseID string) (Case, error)
	GetCases(caseIDs []string, ordered bool) ([]Case, error)
	CaseExists(caseID string) (bool, error)
	GetCaseIDsThatExist(domain string, caseIDs []string) ([]string, error)
	GetCaseIDsInDomain(domain, caseType string) ([]string, error)
	// GetCaseIDsByOwners filters by owner; closed is tri-state: true only
	// closed, false only open, nil both.
	GetCaseIDsByOwners(domain string, ownerIDs []string, closed *bool) ([]string, error)
	// GetRelatedIndices returns forward and reverse index edges touching the
	// case set, excluding edges whose CaseIndexInfo.Key() is in excludeIndices.
	GetRelatedIndices(domain string, caseIDs []string, excludeIndices map[string]struct{}) ([]CaseIndexInfo, error)
	// GetExtensionCases returns one hop of extension cases referencing the
	// given case set, with the type and closed flag needed to continue or stop
	// the traversal. Deleted cases are never returned; closed cases only when
	// includeClosed.
	GetExtensionCases(domain string, caseIDs []string, includeClosed bool) ([]ExtensionCaseInfo, error)
	// GetIndexedCaseIDs returns ids referenced by forward indices of the set.
	GetIndexedCaseIDs(domain string, caseIDs []string) ([]string, error)
	// GetReverseIndexedCases returns cases holding an index onto the given
	// set, optionally filtered by case type and closed flag.
	GetReverseIndexedCases(domain string, caseIDs []string, caseTypes []string, isClosed *bool) ([]Case, error)
	GetAllReverseIndicesInfo(domain string, caseIDs []string) ([]CaseIndexInfo, error)
	GetLastModifiedDates(domain string, caseIDs []string) (map[string]time.Time, error)
	GetDeletedCaseIDsByOwner(domain, ownerID string) ([]string, error)
	GetCaseOwnerIDs(domain string) ([]string, error)
}

// LedgerReader is the read side of the ledger store. All transaction lists
// are ordered by reported date ascending, ties broken by insertion sequence.
type LedgerReader interface {
	GetLedgerValue(caseID, sectionID, entryID string) (LedgerValue, error)
	GetLedgerTransactions(caseID, sectionID, entryID string) ([]LedgerTransaction, error)
	// GetTransactionsForConsumption returns the subsequence within the
	// half-open window [windowStart, windowEnd).
	GetTransactionsForConsumption(domain, caseID, entryID, sectionID string, windowStart, windowEnd time.Time) ([]LedgerTransaction, error)
	GetLatestTransaction(caseID, sectionID, entryID string) (LedgerTransaction, error)
	// GetCurrentLedgerState folds each case's transaction log into the nested
	// section -> entry -> value mapping.
	GetCurrentLedgerState(caseIDs []string) (map[string]LedgerState, error)
	// GetLedgerValuesForCases returns the current value of every key on the
	// given cases, narrowed by the optional section, entry, and half-open
	// [dateStart, dateEnd) last-modified filters. Nil filters match all.
	GetLedgerValuesForCases(caseIDs, sectionIDs, entryIDs []string, dateStart, dateEnd *time.Time) ([]LedgerValue, error)
}

// StubReader exposes archive stubs for reconciliation.
type StubReader interface {
	GetArchiveStub(stubID string) (ArchiveStub, error)
	// GetOpenArchiveStubs returns unclosed stubs opened before the cutoff.
	GetOpenArchiveStubs(openedBefore time.Time) ([]ArchiveStub, error)
}

// Backend is the document store collaborator: point reads by id, bulk and
// range queries by domain, and transactional writes. Exactly one concrete
// implementation is active per deployment, selected at configuration time.
type Backend interface {
	FormReader
	CaseReader
	LedgerReader
	StubReader
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
}
