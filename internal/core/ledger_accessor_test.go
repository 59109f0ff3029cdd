package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"casecore/pkg/domain"
)

func saveLedgerTx(t *testing.T, svc *Service, tx domain.LedgerTransaction) domain.LedgerTransaction {
	t.Helper()
	saved, err := svc.Ledgers("alpha").SaveTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("save ledger tx: %v", err)
	}
	return saved
}

func TestLedgerBalanceIsFoldOfDeltas(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, delta := range []int{10, -3, 1} {
		saveLedgerTx(t, svc, domain.LedgerTransaction{
			CaseID: "c1", SectionID: "stock", EntryID: "amoxicillin",
			FormID: "f1", Delta: delta, ReportedOn: base.Add(time.Duration(i) * time.Hour),
		})
	}
	value, err := svc.Ledgers("alpha").GetValue(ctx, "c1", "stock", "amoxicillin")
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if value.Balance != 8 {
		t.Fatalf("balance = %d, want 8", value.Balance)
	}
}

func TestLedgerValueNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Ledgers("alpha").GetValue(context.Background(), "c1", "stock", "nothing")
	var notFound domain.LedgerValueNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected LedgerValueNotFoundError, got %v", err)
	}
}

func TestLedgerLatestTransactionTieBreaksBySequence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})
	reported := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	saveLedgerTx(t, svc, domain.LedgerTransaction{
		CaseID: "c1", SectionID: "stock", EntryID: "e", FormID: "first", Delta: 1, ReportedOn: reported,
	})
	saveLedgerTx(t, svc, domain.LedgerTransaction{
		CaseID: "c1", SectionID: "stock", EntryID: "e", FormID: "second", Delta: 2, ReportedOn: reported,
	})
	latest, err := svc.Ledgers("alpha").GetLatestTransaction(ctx, "c1", "stock", "e")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.FormID != "second" {
		t.Fatalf("latest = %s, want the later insertion", latest.FormID)
	}
}

func TestLedgerConsumptionWindowIsHalfOpen(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		saveLedgerTx(t, svc, domain.LedgerTransaction{
			CaseID: "c1", SectionID: "stock", EntryID: "e", FormID: "f",
			Delta: -1, ReportedOn: base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	// [day1, day3): day1 and day2 only
	txs, err := svc.Ledgers("alpha").GetTransactionsForConsumption(ctx, "c1", "e", "stock",
		base.Add(24*time.Hour), base.Add(3*24*time.Hour))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("window returned %d transactions, want 2", len(txs))
	}
	for _, tx := range txs {
		if tx.ReportedOn.Before(base.Add(24*time.Hour)) || !tx.ReportedOn.Before(base.Add(3*24*time.Hour)) {
			t.Fatalf("transaction outside window: %v", tx.ReportedOn)
		}
	}
}

func TestLedgerConsumptionWindowEnforcesDomain(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})
	reported := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	saveLedgerTx(t, svc, domain.LedgerTransaction{
		CaseID: "c1", SectionID: "stock", EntryID: "e", Delta: -1, ReportedOn: reported,
	})
	txs, err := svc.Ledgers("beta").GetTransactionsForConsumption(ctx, "c1", "e", "stock",
		reported.Add(-time.Hour), reported.Add(time.Hour))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("cross-domain window leaked %d transactions", len(txs))
	}
}

func TestCurrentLedgerStatesEmptyInputShortCircuits(t *testing.T) {
	svc, _ := newTestService(t)
	states, err := svc.Ledgers("alpha").GetCurrentLedgerStates(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("states: %v", err)
	}
	if states == nil || len(states) != 0 {
		t.Fatalf("states = %v, want empty map", states)
	}
}

func TestCurrentLedgerStatesGroupBySectionAndEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c1", SectionID: "stock", EntryID: "a", Delta: 5, ReportedOn: base})
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c1", SectionID: "stock", EntryID: "b", Delta: 7, ReportedOn: base})
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c1", SectionID: "loss", EntryID: "a", Delta: -2, ReportedOn: base})

	states, err := svc.Ledgers("alpha").GetCurrentLedgerStates(ctx, []string{"c1"}, false)
	if err != nil {
		t.Fatalf("states: %v", err)
	}
	state := states["c1"]
	if state["stock"]["a"].Balance != 5 || state["stock"]["b"].Balance != 7 || state["loss"]["a"].Balance != -2 {
		t.Fatalf("state = %+v", state)
	}
}

func TestGetValuesForCasesAppliesFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})
	mustSaveCase(t, svc, domain.Case{CaseID: "c2", Domain: "alpha"})
	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c1", SectionID: "stock", EntryID: "a", Delta: 5, ReportedOn: jan})
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c1", SectionID: "loss", EntryID: "a", Delta: -1, ReportedOn: jan})
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c2", SectionID: "stock", EntryID: "b", Delta: 3, ReportedOn: mar})

	ledgers := svc.Ledgers("alpha")

	values, err := ledgers.GetValuesForCases(ctx, []string{"c1", "c2"}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unfiltered: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("unfiltered values = %+v", values)
	}

	values, err = ledgers.GetValuesForCases(ctx, []string{"c1", "c2"}, []string{"stock"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("section filter: %v", err)
	}
	if len(values) != 2 || values[0].SectionID != "stock" || values[1].SectionID != "stock" {
		t.Fatalf("section-filtered values = %+v", values)
	}

	values, err = ledgers.GetValuesForCases(ctx, []string{"c1", "c2"}, nil, []string{"b"}, nil, nil)
	if err != nil {
		t.Fatalf("entry filter: %v", err)
	}
	if len(values) != 1 || values[0].CaseID != "c2" || values[0].Balance != 3 {
		t.Fatalf("entry-filtered values = %+v", values)
	}

	// half-open window on last-modified: [jan, mar) keeps only the january keys
	values, err = ledgers.GetValuesForCases(ctx, []string{"c1", "c2"}, nil, nil, &jan, &mar)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("windowed values = %+v", values)
	}
	for _, v := range values {
		if v.CaseID != "c1" {
			t.Fatalf("windowed values leaked %+v", v)
		}
	}

	values, err = ledgers.GetValuesForCases(ctx, nil, nil, nil, nil, nil)
	if err != nil || values != nil {
		t.Fatalf("empty input: values=%v err=%v", values, err)
	}
}

func TestCurrentLedgerStatesEnsureFormID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustSaveCase(t, svc, domain.Case{CaseID: "c1", Domain: "alpha"})
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c1", SectionID: "stock", EntryID: "a", FormID: "f1", Delta: 4, ReportedOn: base})
	saveLedgerTx(t, svc, domain.LedgerTransaction{CaseID: "c1", SectionID: "stock", EntryID: "b", Delta: 2, ReportedOn: base})

	states, err := svc.Ledgers("alpha").GetCurrentLedgerStates(ctx, []string{"c1"}, true)
	if err != nil {
		t.Fatalf("states: %v", err)
	}
	entries := states["c1"]["stock"]
	if _, ok := entries["b"]; ok {
		t.Fatalf("value without provenance survived: %+v", entries)
	}
	value, ok := entries["a"]
	if !ok || value.LastFormID != "f1" {
		t.Fatalf("entries = %+v", entries)
	}
}
