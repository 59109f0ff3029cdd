package core

import (
	"context"
	"time"

	"casecore/pkg/domain"
)

// LedgerAccessor is the per-domain facade over ledger storage. Transaction
// lists are ordered by reported date ascending with ties broken by the
// backend's insertion sequence, so folds are deterministic.
type LedgerAccessor struct {
	svc    *Service
	domain string
}

// Domain returns the domain this accessor is scoped to.
func (a *LedgerAccessor) Domain() string { return a.domain }

// GetValue returns the current balance for a ledger key, or
// LedgerValueNotFoundError when no transactions exist for it.
func (a *LedgerAccessor) GetValue(ctx context.Context, caseID, sectionID, entryID string) (domain.LedgerValue, error) {
	var value domain.LedgerValue
	err := a.svc.observe(ctx, "ledger.get_value", func() error {
		var err error
		value, err = a.svc.backend.GetLedgerValue(caseID, sectionID, entryID)
		return err
	})
	return value, err
}

// GetTransactions returns the full ordered transaction log for a ledger key.
func (a *LedgerAccessor) GetTransactions(ctx context.Context, caseID, sectionID, entryID string) ([]domain.LedgerTransaction, error) {
	var txs []domain.LedgerTransaction
	err := a.svc.observe(ctx, "ledger.get_transactions", func() error {
		var err error
		txs, err = a.svc.backend.GetLedgerTransactions(caseID, sectionID, entryID)
		return err
	})
	return txs, err
}

// GetTransactionsForConsumption returns the ordered subsequence whose
// reported date falls in the half-open window [windowStart, windowEnd), for
// consumption-rate calculations.
func (a *LedgerAccessor) GetTransactionsForConsumption(ctx context.Context, caseID, entryID, sectionID string, windowStart, windowEnd time.Time) ([]domain.LedgerTransaction, error) {
	var txs []domain.LedgerTransaction
	err := a.svc.observe(ctx, "ledger.consumption_window", func() error {
		var err error
		txs, err = a.svc.backend.GetTransactionsForConsumption(a.domain, caseID, entryID, sectionID, windowStart, windowEnd)
		return err
	})
	return txs, err
}

// GetLatestTransaction returns the transaction with the greatest reported
// date for a ledger key, highest sequence winning ties.
func (a *LedgerAccessor) GetLatestTransaction(ctx context.Context, caseID, sectionID, entryID string) (domain.LedgerTransaction, error) {
	var tx domain.LedgerTransaction
	err := a.svc.observe(ctx, "ledger.latest_transaction", func() error {
		var err error
		tx, err = a.svc.backend.GetLatestTransaction(caseID, sectionID, entryID)
		return err
	})
	return tx, err
}

// GetCurrentLedgerStates folds each case's transaction log into the nested
// section to entry to value mapping. When ensureFormID is set, every value
// must name the form that produced its latest transaction; values whose
// provenance is missing are dropped rather than returned blind.
func (a *LedgerAccessor) GetCurrentLedgerStates(ctx context.Context, caseIDs []string, ensureFormID bool) (map[string]domain.LedgerState, error) {
	if len(caseIDs) == 0 {
		return map[string]domain.LedgerState{}, nil
	}
	var states map[string]domain.LedgerState
	err := a.svc.observe(ctx, "ledger.current_state", func() error {
		var err error
		states, err = a.svc.backend.GetCurrentLedgerState(caseIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ensureFormID {
		for _, state := range states {
			for sectionID, entries := range state {
				for entryID, value := range entries {
					if value.LastFormID == "" {
						delete(entries, entryID)
					}
				}
				if len(entries) == 0 {
					delete(state, sectionID)
				}
			}
		}
	}
	return states, nil
}

// GetValuesForCases returns the current value of every ledger key on the
// given cases, optionally narrowed to section ids, entry ids, and a
// half-open [dateStart, dateEnd) window on the value's last-modified date.
// Nil filters match everything.
func (a *LedgerAccessor) GetValuesForCases(ctx context.Context, caseIDs, sectionIDs, entryIDs []string, dateStart, dateEnd *time.Time) ([]domain.LedgerValue, error) {
	if len(caseIDs) == 0 {
		return nil, nil
	}
	var values []domain.LedgerValue
	err := a.svc.observe(ctx, "ledger.values_for_cases", func() error {
		var err error
		values, err = a.svc.backend.GetLedgerValuesForCases(caseIDs, sectionIDs, entryIDs, dateStart, dateEnd)
		return err
	})
	return values, err
}

// SaveTransaction appends one transaction to a ledger key's log. The backend
// assigns the insertion sequence.
func (a *LedgerAccessor) SaveTransaction(ctx context.Context, tx domain.LedgerTransaction) (domain.LedgerTransaction, error) {
	err := a.svc.observe(ctx, "ledger.save_transaction", func() error {
		return a.svc.backend.RunInTransaction(ctx, func(t domain.Transaction) error {
			var saveErr error
			tx, saveErr = t.SaveLedgerTransaction(tx)
			return saveErr
		})
	})
	return tx, err
}
