package memory

import (
	"sort"
	"time"

	"casecore/pkg/domain"
)

// GetForm returns the form or FormNotFoundError. Soft-deleted forms still
// resolve; callers decide whether tombstones matter.
func (s *Store) GetForm(formID string) (XFormInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.state.forms[formID]
	if !ok {
		return XFormInstance{}, domain.FormNotFoundError{FormID: formID}
	}
	return cloneForm(form), nil
}

// GetForms returns forms for the given ids in input order, omitting ids that
// do not resolve. The ordered flag is part of the backend contract; this
// backend satisfies it for free by always walking the input.
func (s *Store) GetForms(formIDs []string, _ bool) ([]XFormInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]XFormInstance, 0, len(formIDs))
	for _, id := range formIDs {
		if form, ok := s.state.forms[id]; ok {
			out = append(out, cloneForm(form))
		}
	}
	return out, nil
}

// FormExists probes by id, additionally requiring the owning domain to match
// when one is given.
func (s *Store) FormExists(formID, dom string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.state.forms[formID]
	if !ok {
		return false, nil
	}
	if dom != "" && form.Domain != dom {
		return false, nil
	}
	return true, nil
}

// GetFormIDsInDomainByState enumerates non-deleted form ids by state.
func (s *Store) GetFormIDsInDomainByState(dom string, state domain.FormState) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range sortedIDs(s.state.forms) {
		form := s.state.forms[id]
		if form.Domain == dom && form.State == state && !form.Deleted {
			out = append(out, id)
		}
	}
	return out, nil
}

// GetCase returns the case or CaseNotFoundError.
func (s *Store) GetCase(caseID string) (Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.cases[caseID]
	if !ok {
		return Case{}, domain.CaseNotFoundError{CaseID: caseID}
	}
	return cloneCase(c), nil
}

// GetCases returns cases for the given ids in input order, omitting missing ids.
func (s *Store) GetCases(caseIDs []string, _ bool) ([]Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Case, 0, len(caseIDs))
	for _, id := range caseIDs {
		if c, ok := s.state.cases[id]; ok {
			out = append(out, cloneCase(c))
		}
	}
	return out, nil
}

// CaseExists probes for a case id regardless of domain.
func (s *Store) CaseExists(caseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.cases[caseID]
	return ok, nil
}

// GetCaseIDsThatExist returns the subset of ids resolving to live cases in
// the domain, preserving input order.
func (s *Store) GetCaseIDsThatExist(dom string, caseIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range caseIDs {
		if c, ok := s.state.cases[id]; ok && c.Domain == dom && !c.Deleted {
			out = append(out, id)
		}
	}
	return out, nil
}

// GetCaseIDsInDomain enumerates live case ids, optionally filtered by type.
func (s *Store) GetCaseIDsInDomain(dom, caseType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range sortedIDs(s.state.cases) {
		c := s.state.cases[id]
		if c.Domain != dom || c.Deleted {
			continue
		}
		if caseType != "" && c.CaseType != caseType {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// GetCaseIDsByOwners filters live cases by owner with the tri-state closed
// flag: true only closed, false only open, nil both.
func (s *Store) GetCaseIDsByOwners(dom string, ownerIDs []string, closed *bool) ([]string, error) {
	owners := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range sortedIDs(s.state.cases) {
		c := s.state.cases[id]
		if c.Domain != dom || c.Deleted {
			continue
		}
		if _, ok := owners[c.OwnerID]; !ok {
			continue
		}
		if closed != nil && c.Closed != *closed {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// GetRelatedIndices returns forward and reverse index edges touching the
// case set, excluding edges whose key is in excludeIndices.
func (s *Store) GetRelatedIndices(dom string, caseIDs []string, excludeIndices map[string]struct{}) ([]domain.CaseIndexInfo, error) {
	members := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		members[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CaseIndexInfo
	seen := make(map[string]struct{})
	for _, id := range sortedIDs(s.state.cases) {
		c := s.state.cases[id]
		if c.Domain != dom || c.Deleted {
			continue
		}
		_, owns := members[c.CaseID]
		for _, idx := range c.LiveIndices() {
			_, references := members[idx.ReferencedID]
			if !owns && !references {
				continue
			}
			info := indexInfo(c.CaseID, idx)
			if _, excluded := excludeIndices[info.Key()]; excluded {
				continue
			}
			// An edge inside the set shows up from both directions.
			dedupe := info.CaseID + "\x00" + info.Identifier
			if _, dup := seen[dedupe]; dup {
				continue
			}
			seen[dedupe] = struct{}{}
			out = append(out, info)
		}
	}
	return out, nil
}

// GetExtensionCases returns one hop of live extension cases referencing the
// given set. Closed extensions are returned only when includeClosed.
func (s *Store) GetExtensionCases(dom string, caseIDs []string, includeClosed bool) ([]domain.ExtensionCaseInfo, error) {
	members := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		members[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ExtensionCaseInfo
	for _, id := range sortedIDs(s.state.cases) {
		c := s.state.cases[id]
		if c.Domain != dom || c.Deleted {
			continue
		}
		if c.Closed && !includeClosed {
			continue
		}
		for _, idx := range c.LiveIndices() {
			if idx.Relationship != domain.RelationshipExtension {
				continue
			}
			if _, ok := members[idx.ReferencedID]; !ok {
				continue
			}
			out = append(out, domain.ExtensionCaseInfo{CaseID: c.CaseID, CaseType: c.CaseType, Closed: c.Closed})
			break
		}
	}
	return out, nil
}

// GetIndexedCaseIDs returns the distinct ids referenced by forward indices
// of the given live cases.
func (s *Store) GetIndexedCaseIDs(dom string, caseIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, id := range caseIDs {
		c, ok := s.state.cases[id]
		if !ok || c.Domain != dom || c.Deleted {
			continue
		}
		for _, idx := range c.LiveIndices() {
			if _, dup := seen[idx.ReferencedID]; dup {
				continue
			}
			seen[idx.ReferencedID] = struct{}{}
			out = append(out, idx.ReferencedID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetReverseIndexedCases returns live cases holding an index onto the given
// set, optionally filtered by case type and closed flag.
func (s *Store) GetReverseIndexedCases(dom string, caseIDs []string, caseTypes []string, isClosed *bool) ([]Case, error) {
	members := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		members[id] = struct{}{}
	}
	types := make(map[string]struct{}, len(caseTypes))
	for _, ct := range caseTypes {
		types[ct] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Case
	for _, id := range sortedIDs(s.state.cases) {
		c := s.state.cases[id]
		if c.Domain != dom || c.Deleted {
			continue
		}
		if len(types) > 0 {
			if _, ok := types[c.CaseType]; !ok {
				continue
			}
		}
		if isClosed != nil && c.Closed != *isClosed {
			continue
		}
		for _, idx := range c.LiveIndices() {
			if _, ok := members[idx.ReferencedID]; ok {
				out = append(out, cloneCase(c))
				break
			}
		}
	}
	return out, nil
}

// GetAllReverseIndicesInfo returns the index edges of cases referencing the set.
func (s *Store) GetAllReverseIndicesInfo(dom string, caseIDs []string) ([]domain.CaseIndexInfo, error) {
	members := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		members[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CaseIndexInfo
	for _, id := range sortedIDs(s.state.cases) {
		c := s.state.cases[id]
		if c.Domain != dom || c.Deleted {
			continue
		}
		for _, idx := range c.LiveIndices() {
			if _, ok := members[idx.ReferencedID]; ok {
				out = append(out, indexInfo(c.CaseID, idx))
			}
		}
	}
	return out, nil
}

// GetLastModifiedDates maps each resolving case id to its modification marker.
func (s *Store) GetLastModifiedDates(dom string, caseIDs []string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(caseIDs))
	for _, id := range caseIDs {
		if c, ok := s.state.cases[id]; ok && c.Domain == dom {
			out[id] = c.ModifiedOn
		}
	}
	return out, nil
}

// GetDeletedCaseIDsByOwner enumerates tombstoned case ids for one owner.
func (s *Store) GetDeletedCaseIDsByOwner(dom, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range sortedIDs(s.state.cases) {
		c := s.state.cases[id]
		if c.Domain == dom && c.OwnerID == ownerID && c.Deleted {
			out = append(out, id)
		}
	}
	return out, nil
}

// GetCaseOwnerIDs returns the distinct owner ids of live cases in the domain.
func (s *Store) GetCaseOwnerIDs(dom string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, c := range s.state.cases {
		if c.Domain != dom || c.Deleted || c.OwnerID == "" {
			continue
		}
		seen[c.OwnerID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for owner := range seen {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out, nil
}

func indexInfo(caseID string, idx domain.CaseIndex) domain.CaseIndexInfo {
	return domain.CaseIndexInfo{
		CaseID:         caseID,
		Identifier:     idx.Identifier,
		ReferencedID:   idx.ReferencedID,
		ReferencedType: idx.ReferencedType,
		Relationship:   idx.Relationship,
	}
}
