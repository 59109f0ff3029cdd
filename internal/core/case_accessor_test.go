package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"casecore/pkg/domain"
)

func extensionIndex(hostID string) domain.CaseIndex {
	return domain.CaseIndex{
		Identifier:   "host",
		ReferencedID: hostID,
		Relationship: domain.RelationshipExtension,
	}
}

func TestCaseAccessorDomainIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha", CaseType: "patient"})

	if _, err := svc.Cases("alpha").GetCase(ctx, c.CaseID); err != nil {
		t.Fatalf("same-domain read: %v", err)
	}
	_, err := svc.Cases("beta").GetCase(ctx, c.CaseID)
	var notFound domain.CaseNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("cross-domain read must look like not-found, got %v", err)
	}
}

func TestGetExtensionChainTransitiveClosure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	// host <- ext1 <- ext2 and an unrelated case
	mustSaveCase(t, svc, domain.Case{CaseID: "host", Domain: "alpha", CaseType: "patient"})
	mustSaveCase(t, svc, domain.Case{CaseID: "ext1", Domain: "alpha", CaseType: "episode",
		Indices: []domain.CaseIndex{extensionIndex("host")}})
	mustSaveCase(t, svc, domain.Case{CaseID: "ext2", Domain: "alpha", CaseType: "referral",
		Indices: []domain.CaseIndex{extensionIndex("ext1")}})
	mustSaveCase(t, svc, domain.Case{CaseID: "other", Domain: "alpha", CaseType: "patient"})

	chain, err := svc.Cases("alpha").GetExtensionChain(ctx, []string{"host"}, true, nil)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	got := make(map[string]struct{}, len(chain))
	for _, id := range chain {
		got[id] = struct{}{}
	}
	if len(chain) != 2 {
		t.Fatalf("chain = %v", chain)
	}
	for _, want := range []string{"ext1", "ext2"} {
		if _, ok := got[want]; !ok {
			t.Fatalf("chain missing %s: %v", want, chain)
		}
	}
	if _, ok := got["host"]; ok {
		t.Fatalf("seed leaked into chain: %v", chain)
	}
}

func TestGetExtensionChainTerminatesOnCycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	// a <- b <- a, a two-case extension cycle
	mustSaveCase(t, svc, domain.Case{CaseID: "a", Domain: "alpha", CaseType: "x",
		Indices: []domain.CaseIndex{extensionIndex("b")}})
	mustSaveCase(t, svc, domain.Case{CaseID: "b", Domain: "alpha", CaseType: "x",
		Indices: []domain.CaseIndex{extensionIndex("a")}})

	chain, err := svc.Cases("alpha").GetExtensionChain(ctx, []string{"a"}, true, nil)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 1 || chain[0] != "b" {
		t.Fatalf("chain = %v", chain)
	}
}

func TestGetExtensionChainExcludedTypeStopsExpansion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	// host <- stopper(blocked type) <- beyond
	mustSaveCase(t, svc, domain.Case{CaseID: "host", Domain: "alpha", CaseType: "patient"})
	mustSaveCase(t, svc, domain.Case{CaseID: "stopper", Domain: "alpha", CaseType: "blocked",
		Indices: []domain.CaseIndex{extensionIndex("host")}})
	mustSaveCase(t, svc, domain.Case{CaseID: "beyond", Domain: "alpha", CaseType: "episode",
		Indices: []domain.CaseIndex{extensionIndex("stopper")}})

	chain, err := svc.Cases("alpha").GetExtensionChain(ctx, []string{"host"}, true,
		map[string]struct{}{"blocked": {}})
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	// the excluded-type case is reached but never expanded
	if len(chain) != 1 || chain[0] != "stopper" {
		t.Fatalf("chain = %v", chain)
	}
}

func TestGetExtensionChainClosedFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "host", Domain: "alpha", CaseType: "patient"})
	mustSaveCase(t, svc, domain.Case{CaseID: "closed-ext", Domain: "alpha", CaseType: "episode", Closed: true,
		Indices: []domain.CaseIndex{extensionIndex("host")}})

	chain, err := svc.Cases("alpha").GetExtensionChain(ctx, []string{"host"}, false, nil)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("closed extension returned without includeClosed: %v", chain)
	}
	chain, err = svc.Cases("alpha").GetExtensionChain(ctx, []string{"host"}, true, nil)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 1 || chain[0] != "closed-ext" {
		t.Fatalf("chain = %v", chain)
	}
}

func TestGetRelatedIndicesExcludesVisitedEdges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "parent", Domain: "alpha", CaseType: "patient"})
	mustSaveCase(t, svc, domain.Case{CaseID: "child", Domain: "alpha", CaseType: "episode",
		Indices: []domain.CaseIndex{{
			Identifier: "parent", ReferencedID: "parent", Relationship: domain.RelationshipChild,
		}}})

	infos, err := svc.Cases("alpha").GetRelatedIndices(ctx, []string{"child"}, nil)
	if err != nil {
		t.Fatalf("indices: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("infos = %+v", infos)
	}
	exclude := map[string]struct{}{infos[0].Key(): {}}
	infos, err = svc.Cases("alpha").GetRelatedIndices(ctx, []string{"child"}, exclude)
	if err != nil {
		t.Fatalf("indices with exclusion: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("excluded edge returned again: %+v", infos)
	}
}

func TestGetCasesWithPrefetchedIndicesOverridesStored(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha",
		Indices: []domain.CaseIndex{{Identifier: "stale", ReferencedID: "old", Relationship: domain.RelationshipChild}}})

	prefetched := []domain.CaseIndexInfo{{
		CaseID: "c1", Identifier: "host", ReferencedID: "h1", Relationship: domain.RelationshipExtension,
	}}
	cases, err := svc.Cases("alpha").GetCasesWithPrefetchedIndices(ctx, []string{"c1"}, true, prefetched)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(cases) != 1 || len(cases[0].Indices) != 1 || cases[0].Indices[0].Identifier != "host" {
		t.Fatalf("prefetched indices not applied: %+v", cases)
	}
}

func TestCaseSoftDeleteHidesFromQueries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cases := svc.Cases("alpha")
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha", CaseType: "patient", OwnerID: "owner1"})

	n, err := cases.SoftDelete(ctx, []string{"c1"}, "batch-1")
	if err != nil || n != 1 {
		t.Fatalf("soft delete: n=%d err=%v", n, err)
	}
	ids, err := cases.GetCaseIDsInDomain(ctx, "")
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("deleted case still enumerated: %v", ids)
	}
	deleted, err := cases.GetDeletedCaseIDsByOwner(ctx, "owner1")
	if err != nil || len(deleted) != 1 {
		t.Fatalf("deleted ids: %v err=%v", deleted, err)
	}
	if n, err := cases.SoftUndelete(ctx, []string{"c1"}); err != nil || n != 1 {
		t.Fatalf("undelete: n=%d err=%v", n, err)
	}
	if _, err := cases.GetCase(ctx, "c1"); err != nil {
		t.Fatalf("restored case unreadable: %v", err)
	}
}

func TestCaseOwnerQueriesTriState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cases := svc.Cases("alpha")
	mustSaveCase(t, svc, domain.Case{CaseID: "open1", Domain: "alpha", OwnerID: "o1"})
	mustSaveCase(t, svc, domain.Case{CaseID: "closed1", Domain: "alpha", OwnerID: "o1", Closed: true})

	both, err := cases.GetCaseIDsByOwners(ctx, []string{"o1"}, nil)
	if err != nil || len(both) != 2 {
		t.Fatalf("both: %v err=%v", both, err)
	}
	closed := true
	onlyClosed, err := cases.GetCaseIDsByOwners(ctx, []string{"o1"}, &closed)
	if err != nil || len(onlyClosed) != 1 || onlyClosed[0] != "closed1" {
		t.Fatalf("closed: %v err=%v", onlyClosed, err)
	}
	open := false
	onlyOpen, err := cases.GetCaseIDsByOwners(ctx, []string{"o1"}, &open)
	if err != nil || len(onlyOpen) != 1 || onlyOpen[0] != "open1" {
		t.Fatalf("open: %v err=%v", onlyOpen, err)
	}
}

func TestCaseSavePublishesFeedEvent(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Cases("alpha").Save(ctx, domain.Case{CaseID: "c1", CaseType: "patient"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	events := pub.CaseEvents()
	if len(events) != 1 || events[0].CaseID != "c1" || events[0].Domain != "alpha" {
		t.Fatalf("events = %+v", events)
	}
}

func TestGetLastModifiedDates(t *testing.T) {
	svc, _ := newTestService(t, WithClock(fixedClock(time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC))))
	ctx := context.Background()
	c := mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})

	dates, err := svc.Cases("alpha").GetLastModifiedDates(ctx, []string{"c1", "missing"})
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if len(dates) != 1 || !dates["c1"].Equal(c.ModifiedOn) {
		t.Fatalf("dates = %v", dates)
	}
}

func TestIterCasesBatchesInInputOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ids := []string{"c1", "c2", "c3", "c4", "c5"}
	for _, id := range ids {
		mustSaveCase(t, svc, domain.Case{CaseID: id, Domain: "alpha"})
	}
	mustSaveCase(t, svc, domain.Case{CaseID: "other", Domain: "beta"})

	var seen []string
	input := append(append([]string{}, ids...), "other", "missing")
	err := svc.Cases("alpha").IterCases(ctx, input, 2, func(c domain.Case) error {
		seen = append(seen, c.CaseID)
		return nil
	})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	if len(seen) != len(ids) {
		t.Fatalf("seen = %v", seen)
	}
	for i, id := range ids {
		if seen[i] != id {
			t.Fatalf("seen[%d] = %s, want %s", i, seen[i], id)
		}
	}

	// callback errors stop the walk
	stop := errors.New("stop")
	calls := 0
	err = svc.Cases("alpha").IterCases(ctx, ids, 2, func(domain.Case) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("iter err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback ran %d times after error", calls)
	}
}
