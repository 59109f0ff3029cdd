package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casecore/internal/blob"
	"casecore/pkg/domain"
)

// CaseAccessor is the per-domain facade over case storage and the case index
// graph. As with forms, a case owned by another domain reads as not found.
type CaseAccessor struct {
	svc    *Service
	domain string
}

// Domain returns the domain this accessor is scoped to.
func (a *CaseAccessor) Domain() string { return a.domain }

// GetCase returns the case or CaseNotFoundError.
func (a *CaseAccessor) GetCase(ctx context.Context, caseID string) (domain.Case, error) {
	var c domain.Case
	err := a.svc.observe(ctx, "case.get", func() error {
		var err error
		c, err = a.svc.backend.GetCase(caseID)
		if err != nil {
			return err
		}
		if c.Domain != a.domain || c.Deleted {
			return domain.CaseNotFoundError{CaseID: caseID}
		}
		return nil
	})
	return c, err
}

// GetCases returns the cases for the given ids; missing ids and ids owned by
// another domain are omitted. With ordered the results follow input order.
func (a *CaseAccessor) GetCases(ctx context.Context, caseIDs []string, ordered bool) ([]domain.Case, error) {
	var out []domain.Case
	err := a.svc.observe(ctx, "case.get_bulk", func() error {
		cases, err := a.svc.backend.GetCases(caseIDs, ordered)
		if err != nil {
			return err
		}
		out = make([]domain.Case, 0, len(cases))
		for _, c := range cases {
			if c.Domain == a.domain && !c.Deleted {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

// GetCasesWithPrefetchedIndices is GetCases for callers that already hold
// the current index edges of the requested cases: the supplied edges replace
// each case's stored indices instead of trusting the fetched copy, so a
// graph walk sees exactly the snapshot it queried. Callers must only pass
// edges that are actually current.
func (a *CaseAccessor) GetCasesWithPrefetchedIndices(ctx context.Context, caseIDs []string, ordered bool, prefetched []domain.CaseIndexInfo) ([]domain.Case, error) {
	cases, err := a.GetCases(ctx, caseIDs, ordered)
	if err != nil {
		return nil, err
	}
	byCase := make(map[string][]domain.CaseIndex, len(cases))
	for _, info := range prefetched {
		byCase[info.CaseID] = append(byCase[info.CaseID], domain.CaseIndex{
			Identifier:     info.Identifier,
			ReferencedID:   info.ReferencedID,
			ReferencedType: info.ReferencedType,
			Relationship:   info.Relationship,
		})
	}
	for i := range cases {
		cases[i].Indices = byCase[cases[i].CaseID]
	}
	return cases, nil
}

// Exists probes for a case id regardless of domain. Existence probes are
// id-only; content access goes through GetCase which enforces the domain.
func (a *CaseAccessor) Exists(ctx context.Context, caseID string) (bool, error) {
	var ok bool
	err := a.svc.observe(ctx, "case.exists", func() error {
		var err error
		ok, err = a.svc.backend.CaseExists(caseID)
		return err
	})
	return ok, err
}

// GetCaseIDsThatExist filters the given ids down to those present in the
// domain.
func (a *CaseAccessor) GetCaseIDsThatExist(ctx context.Context, caseIDs []string) ([]string, error) {
	var ids []string
	err := a.svc.observe(ctx, "case.ids_exist", func() error {
		var err error
		ids, err = a.svc.backend.GetCaseIDsThatExist(a.domain, caseIDs)
		return err
	})
	return ids, err
}

// GetCaseIDsInDomain enumerates non-deleted case ids, optionally restricted
// to one case type.
func (a *CaseAccessor) GetCaseIDsInDomain(ctx context.Context, caseType string) ([]string, error) {
	var ids []string
	err := a.svc.observe(ctx, "case.ids_in_domain", func() error {
		var err error
		ids, err = a.svc.backend.GetCaseIDsInDomain(a.domain, caseType)
		return err
	})
	return ids, err
}

// GetCaseIDsByOwners filters by owner id. closed is tri-state: true only
// closed cases, false only open, nil both.
func (a *CaseAccessor) GetCaseIDsByOwners(ctx context.Context, ownerIDs []string, closed *bool) ([]string, error) {
	var ids []string
	err := a.svc.observe(ctx, "case.ids_by_owners", func() error {
		var err error
		ids, err = a.svc.backend.GetCaseIDsByOwners(a.domain, ownerIDs, closed)
		return err
	})
	return ids, err
}

// Save persists a case in the accessor's domain and publishes it on the
// change feed.
func (a *CaseAccessor) Save(ctx context.Context, c domain.Case) (domain.Case, error) {
	c.Domain = a.domain
	err := a.svc.observe(ctx, "case.save", func() error {
		err := a.svc.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var saveErr error
			c, saveErr = tx.SaveCase(c)
			return saveErr
		})
		if err != nil {
			return err
		}
		a.svc.publishCaseEvent(c)
		return nil
	})
	return c, err
}

// SoftDelete tombstones the given cases; returns the number newly deleted.
func (a *CaseAccessor) SoftDelete(ctx context.Context, caseIDs []string, deletionID string) (int, error) {
	var n int
	err := a.svc.observe(ctx, "case.soft_delete", func() error {
		return a.svc.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			n, err = tx.SoftDeleteCases(a.domain, caseIDs, a.svc.now(), deletionID)
			return err
		})
	})
	return n, err
}

// SoftUndelete clears tombstones; returns the number restored.
func (a *CaseAccessor) SoftUndelete(ctx context.Context, caseIDs []string) (int, error) {
	var n int
	err := a.svc.observe(ctx, "case.soft_undelete", func() error {
		return a.svc.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			n, err = tx.SoftUndeleteCases(a.domain, caseIDs)
			return err
		})
	})
	return n, err
}

// GetRelatedIndices returns forward and reverse index edges touching the
// case set, excluding edges whose key is already in excludeIndices.
func (a *CaseAccessor) GetRelatedIndices(ctx context.Context, caseIDs []string, excludeIndices map[string]struct{}) ([]domain.CaseIndexInfo, error) {
	var infos []domain.CaseIndexInfo
	err := a.svc.observe(ctx, "case.related_indices", func() error {
		var err error
		infos, err = a.svc.backend.GetRelatedIndices(a.domain, caseIDs, excludeIndices)
		return err
	})
	return infos, err
}

// GetExtensionChain computes the transitive closure of extension cases over
// the seed set. Seeds themselves are not part of the result. Cases whose
// type is in excludeForCaseType remain in the result when reached but do not
// expand further; the traversal terminates on cycles because visited cases
// are never re-expanded.
func (a *CaseAccessor) GetExtensionChain(ctx context.Context, seedIDs []string, includeClosed bool, excludeForCaseType map[string]struct{}) ([]string, error) {
	var chain []string
	err := a.svc.observe(ctx, "case.extension_chain", func() error {
		seeds := make(map[string]struct{}, len(seedIDs))
		for _, id := range seedIDs {
			seeds[id] = struct{}{}
		}
		seen := make(map[string]struct{})
		frontier := append([]string(nil), seedIDs...)
		for len(frontier) > 0 {
			infos, err := a.svc.backend.GetExtensionCases(a.domain, frontier, includeClosed)
			if err != nil {
				return err
			}
			frontier = frontier[:0]
			for _, info := range infos {
				if _, isSeed := seeds[info.CaseID]; isSeed {
					continue
				}
				if _, done := seen[info.CaseID]; done {
					continue
				}
				seen[info.CaseID] = struct{}{}
				chain = append(chain, info.CaseID)
				if excludeForCaseType != nil {
					if _, excluded := excludeForCaseType[info.CaseType]; excluded {
						continue
					}
				}
				frontier = append(frontier, info.CaseID)
			}
		}
		return nil
	})
	return chain, err
}

// GetIndexedCaseIDs returns the ids referenced by forward indices of the
// given case set.
func (a *CaseAccessor) GetIndexedCaseIDs(ctx context.Context, caseIDs []string) ([]string, error) {
	var ids []string
	err := a.svc.observe(ctx, "case.indexed_ids", func() error {
		var err error
		ids, err = a.svc.backend.GetIndexedCaseIDs(a.domain, caseIDs)
		return err
	})
	return ids, err
}

// GetReverseIndexedCases returns cases holding an index onto the given set,
// optionally filtered by case type and closed flag.
func (a *CaseAccessor) GetReverseIndexedCases(ctx context.Context, caseIDs []string, caseTypes []string, isClosed *bool) ([]domain.Case, error) {
	var cases []domain.Case
	err := a.svc.observe(ctx, "case.reverse_indexed", func() error {
		var err error
		cases, err = a.svc.backend.GetReverseIndexedCases(a.domain, caseIDs, caseTypes, isClosed)
		return err
	})
	return cases, err
}

// GetAllReverseIndicesInfo returns the reverse index edges onto the set.
func (a *CaseAccessor) GetAllReverseIndicesInfo(ctx context.Context, caseIDs []string) ([]domain.CaseIndexInfo, error) {
	var infos []domain.CaseIndexInfo
	err := a.svc.observe(ctx, "case.reverse_indices", func() error {
		var err error
		infos, err = a.svc.backend.GetAllReverseIndicesInfo(a.domain, caseIDs)
		return err
	})
	return infos, err
}

// GetLastModifiedDates maps case id to server modification date for the
// given set.
func (a *CaseAccessor) GetLastModifiedDates(ctx context.Context, caseIDs []string) (map[string]time.Time, error) {
	var dates map[string]time.Time
	err := a.svc.observe(ctx, "case.last_modified", func() error {
		var err error
		dates, err = a.svc.backend.GetLastModifiedDates(a.domain, caseIDs)
		return err
	})
	return dates, err
}

// GetDeletedCaseIDsByOwner lists tombstoned case ids for one owner.
func (a *CaseAccessor) GetDeletedCaseIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	err := a.svc.observe(ctx, "case.deleted_by_owner", func() error {
		var err error
		ids, err = a.svc.backend.GetDeletedCaseIDsByOwner(a.domain, ownerID)
		return err
	})
	return ids, err
}

// GetCaseOwnerIDs returns the distinct owner ids of live cases in the domain.
func (a *CaseAccessor) GetCaseOwnerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := a.svc.observe(ctx, "case.owner_ids", func() error {
		var err error
		ids, err = a.svc.backend.GetCaseOwnerIDs(a.domain)
		return err
	})
	return ids, err
}

// IterCases walks the given case ids in fixed-size batches, calling fn once
// per live case in input order. Ids that resolve to nothing (absent, other
// domain, tombstoned) are skipped rather than erroring.
func (a *CaseAccessor) IterCases(ctx context.Context, caseIDs []string, batchSize int, fn func(domain.Case) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	for start := 0; start < len(caseIDs); start += batchSize {
		end := start + batchSize
		if end > len(caseIDs) {
			end = len(caseIDs)
		}
		cases, err := a.GetCases(ctx, caseIDs[start:end], true)
		if err != nil {
			return err
		}
		for _, c := range cases {
			if err := fn(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetAttachmentContent returns the content type and byte stream of a named
// case attachment. The stream is single-read, same contract as the form
// accessor's.
func (a *CaseAccessor) GetAttachmentContent(ctx context.Context, caseID, name string) (*domain.AttachmentContent, error) {
	c, err := a.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for _, att := range c.Attachments {
		if att.Name != name {
			continue
		}
		if a.svc.blobs == nil {
			return nil, fmt.Errorf("attachment %s of case %s: no blob store configured", name, caseID)
		}
		_, rc, err := a.svc.blobs.Get(ctx, att.BlobKey)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return nil, domain.AttachmentNotFoundError{OwnerID: caseID, Name: name}
			}
			return nil, err
		}
		return domain.NewAttachmentContent(att.ContentType, rc), nil
	}
	return nil, domain.AttachmentNotFoundError{OwnerID: caseID, Name: name}
}
