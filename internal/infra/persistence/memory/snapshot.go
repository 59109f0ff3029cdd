package memory

// Snapshot is the serialisable representation of the store state, used by
// the durable backends to persist and rehydrate it.
type Snapshot struct {
	Forms        map[string]XFormInstance `json:"forms"`
	Cases        map[string]Case          `json:"cases"`
	Ledger       []LedgerTransaction      `json:"ledger"`
	ArchiveStubs map[string]ArchiveStub   `json:"archive_stubs"`
}

// ExportState copies the current state into a snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Forms:        make(map[string]XFormInstance, len(s.state.forms)),
		Cases:        make(map[string]Case, len(s.state.cases)),
		ArchiveStubs: make(map[string]ArchiveStub, len(s.state.stubs)),
		Ledger:       append([]LedgerTransaction(nil), s.state.ledger...),
	}
	for k, v := range s.state.forms {
		snap.Forms[k] = cloneForm(v)
	}
	for k, v := range s.state.cases {
		snap.Cases[k] = cloneCase(v)
	}
	for k, v := range s.state.stubs {
		snap.ArchiveStubs[k] = cloneStub(v)
	}
	return snap
}

// ImportState replaces the current state with the snapshot. The ledger
// sequence counter resumes past the highest persisted sequence so tie-break
// ordering stays monotonic across restarts.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := newState()
	for k, v := range snap.Forms {
		next.forms[k] = cloneForm(v)
	}
	for k, v := range snap.Cases {
		next.cases[k] = cloneCase(v)
	}
	for k, v := range snap.ArchiveStubs {
		next.stubs[k] = cloneStub(v)
	}
	next.ledger = append([]LedgerTransaction(nil), snap.Ledger...)
	for _, tx := range next.ledger {
		if tx.Seq >= next.nextSeq {
			next.nextSeq = tx.Seq + 1
		}
	}
	s.state = next
}
