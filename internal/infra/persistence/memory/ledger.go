package memory

import (
	"fmt"
	"sort"
	"time"

	"casecore/pkg/domain"
)

// transactionsLess orders the log by reported date ascending with the
// insertion sequence as the deterministic tie-break.
func transactionsLess(a, b LedgerTransaction) bool {
	if !a.ReportedOn.Equal(b.ReportedOn) {
		return a.ReportedOn.Before(b.ReportedOn)
	}
	return a.Seq < b.Seq
}

func sortTransactions(txs []LedgerTransaction) {
	sort.Slice(txs, func(i, j int) bool { return transactionsLess(txs[i], txs[j]) })
}

// GetLedgerTransactions returns the ordered log for one ledger key.
func (s *Store) GetLedgerTransactions(caseID, sectionID, entryID string) ([]LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LedgerTransaction
	for _, tx := range s.state.ledger {
		if tx.CaseID == caseID && tx.SectionID == sectionID && tx.EntryID == entryID {
			out = append(out, tx)
		}
	}
	sortTransactions(out)
	return out, nil
}

// GetLedgerValue folds the key's log into its current balance.
func (s *Store) GetLedgerValue(caseID, sectionID, entryID string) (LedgerValue, error) {
	txs, err := s.GetLedgerTransactions(caseID, sectionID, entryID)
	if err != nil {
		return LedgerValue{}, err
	}
	if len(txs) == 0 {
		return LedgerValue{}, domain.LedgerValueNotFoundError{CaseID: caseID, SectionID: sectionID, EntryID: entryID}
	}
	return foldTransactions(txs), nil
}

// GetTransactionsForConsumption returns the ordered subsequence within the
// half-open window [windowStart, windowEnd) for the ledger key, restricted
// to cases owned by the domain.
func (s *Store) GetTransactionsForConsumption(dom, caseID, entryID, sectionID string, windowStart, windowEnd time.Time) ([]LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.state.cases[caseID]; ok && c.Domain != dom {
		return nil, nil
	}
	var out []LedgerTransaction
	for _, tx := range s.state.ledger {
		if tx.CaseID != caseID || tx.SectionID != sectionID || tx.EntryID != entryID {
			continue
		}
		if tx.ReportedOn.Before(windowStart) || !tx.ReportedOn.Before(windowEnd) {
			continue
		}
		out = append(out, tx)
	}
	sortTransactions(out)
	return out, nil
}

// GetLatestTransaction returns the transaction with the maximum date for the
// key; equal dates resolve to the highest insertion sequence.
func (s *Store) GetLatestTransaction(caseID, sectionID, entryID string) (LedgerTransaction, error) {
	txs, err := s.GetLedgerTransactions(caseID, sectionID, entryID)
	if err != nil {
		return LedgerTransaction{}, err
	}
	if len(txs) == 0 {
		return LedgerTransaction{}, domain.LedgerValueNotFoundError{CaseID: caseID, SectionID: sectionID, EntryID: entryID}
	}
	return txs[len(txs)-1], nil
}

// GetCurrentLedgerState folds each case's log into the nested
// section -> entry -> value mapping.
func (s *Store) GetCurrentLedgerState(caseIDs []string) (map[string]domain.LedgerState, error) {
	members := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		members[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := make(map[string]map[string]map[string][]LedgerTransaction)
	for _, tx := range s.state.ledger {
		if _, ok := members[tx.CaseID]; !ok {
			continue
		}
		sections, ok := grouped[tx.CaseID]
		if !ok {
			sections = make(map[string]map[string][]LedgerTransaction)
			grouped[tx.CaseID] = sections
		}
		entries, ok := sections[tx.SectionID]
		if !ok {
			entries = make(map[string][]LedgerTransaction)
			sections[tx.SectionID] = entries
		}
		entries[tx.EntryID] = append(entries[tx.EntryID], tx)
	}
	out := make(map[string]domain.LedgerState, len(caseIDs))
	for _, id := range caseIDs {
		state := domain.LedgerState{}
		for sectionID, entries := range grouped[id] {
			state[sectionID] = make(map[string]LedgerValue, len(entries))
			for entryID, txs := range entries {
				sortTransactions(txs)
				state[sectionID][entryID] = foldTransactions(txs)
			}
		}
		out[id] = state
	}
	return out, nil
}

// GetLedgerValuesForCases folds every ledger key on the given cases into its
// current value, then applies the optional section, entry, and half-open
// [dateStart, dateEnd) last-modified filters. Values come back ordered by
// case, section, entry.
func (s *Store) GetLedgerValuesForCases(caseIDs, sectionIDs, entryIDs []string, dateStart, dateEnd *time.Time) ([]LedgerValue, error) {
	states, err := s.GetCurrentLedgerState(caseIDs)
	if err != nil {
		return nil, err
	}
	sectionFilter := stringSet(sectionIDs)
	entryFilter := stringSet(entryIDs)
	var out []LedgerValue
	for _, caseID := range caseIDs {
		state, ok := states[caseID]
		if !ok {
			continue
		}
		for _, sectionID := range sortedIDs(state) {
			if sectionFilter != nil {
				if _, ok := sectionFilter[sectionID]; !ok {
					continue
				}
			}
			entries := state[sectionID]
			for _, entryID := range sortedIDs(entries) {
				if entryFilter != nil {
					if _, ok := entryFilter[entryID]; !ok {
						continue
					}
				}
				value := entries[entryID]
				if dateStart != nil && value.LastModified.Before(*dateStart) {
					continue
				}
				if dateEnd != nil && !value.LastModified.Before(*dateEnd) {
					continue
				}
				out = append(out, value)
			}
		}
	}
	return out, nil
}

func stringSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func foldTransactions(txs []LedgerTransaction) LedgerValue {
	last := txs[len(txs)-1]
	value := LedgerValue{
		CaseID:       last.CaseID,
		SectionID:    last.SectionID,
		EntryID:      last.EntryID,
		LastModified: last.ReportedOn,
		LastFormID:   last.FormID,
	}
	for _, tx := range txs {
		value.Balance += tx.Delta
	}
	return value
}

// GetArchiveStub returns the stub or a not-found error.
func (s *Store) GetArchiveStub(stubID string) (ArchiveStub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stub, ok := s.state.stubs[stubID]
	if !ok {
		return ArchiveStub{}, fmt.Errorf("archive stub %s not found", stubID)
	}
	return cloneStub(stub), nil
}

// GetOpenArchiveStubs returns unclosed stubs opened before the cutoff, the
// signal of previously interrupted archive operations.
func (s *Store) GetOpenArchiveStubs(openedBefore time.Time) ([]ArchiveStub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ArchiveStub
	for _, id := range sortedIDs(s.state.stubs) {
		stub := s.state.stubs[id]
		if !stub.Closed && stub.OpenedOn.Before(openedBefore) {
			out = append(out, cloneStub(stub))
		}
	}
	return out, nil
}
