package domain

import (
	"testing"
)

func TestLiveIndicesLastWriteWinsPerIdentifier(t *testing.T) {
	c := Case{
		CaseID: "c1",
		Indices: []CaseIndex{
			{Identifier: "parent", ReferencedID: "p1", ReferencedType: "patient", Relationship: RelationshipChild},
			{Identifier: "host", ReferencedID: "h1", ReferencedType: "visit", Relationship: RelationshipExtension},
			{Identifier: "parent", ReferencedID: "p2", ReferencedType: "patient", Relationship: RelationshipChild},
		},
	}
	live := c.LiveIndices()
	if len(live) != 2 {
		t.Fatalf("expected 2 live indices, got %d", len(live))
	}
	if live[0].Identifier != "parent" || live[0].ReferencedID != "p2" {
		t.Fatalf("parent index not superseded: %+v", live[0])
	}
	if live[1].Identifier != "host" || live[1].ReferencedID != "h1" {
		t.Fatalf("host index mangled: %+v", live[1])
	}
}

func TestLiveIndicesEmpty(t *testing.T) {
	if got := (Case{}).LiveIndices(); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestFormStatePredicates(t *testing.T) {
	cases := []struct {
		state FormState
		check func(XFormInstance) bool
	}{
		{StateNormal, XFormInstance.IsNormal},
		{StateArchived, XFormInstance.IsArchived},
		{StateDeprecated, XFormInstance.IsDeprecated},
		{StateDuplicate, XFormInstance.IsDuplicate},
		{StateError, XFormInstance.IsError},
	}
	for _, tc := range cases {
		form := XFormInstance{FormID: "f", State: tc.state}
		if !tc.check(form) {
			t.Fatalf("predicate for %s returned false", tc.state)
		}
	}
}

func TestIsSystemAction(t *testing.T) {
	form := XFormInstance{XMLNS: SystemActionXMLNS}
	if !form.IsSystemAction() {
		t.Fatal("expected system action form")
	}
	if (XFormInstance{XMLNS: "http://openrosa.org/formdesigner/abc"}).IsSystemAction() {
		t.Fatal("regular form misidentified as system action")
	}
}

func TestCaseIndexInfoKey(t *testing.T) {
	info := CaseIndexInfo{CaseID: "c1", Identifier: "host", ReferencedID: "h9"}
	if got := info.Key(); got != "h9 host" {
		t.Fatalf("unexpected edge key %q", got)
	}
}

func TestArchiveStubIntendedState(t *testing.T) {
	if (ArchiveStub{Archive: true}).IntendedState() != StateArchived {
		t.Fatal("archive stub should intend archived")
	}
	if (ArchiveStub{Archive: false}).IntendedState() != StateNormal {
		t.Fatal("unarchive stub should intend normal")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{FormNotFoundError{FormID: "f1"}, "form f1 not found"},
		{CaseNotFoundError{CaseID: "c1"}, "case c1 not found"},
		{LedgerValueNotFoundError{CaseID: "c1", SectionID: "stock", EntryID: "e"}, "ledger value c1/stock/e not found"},
		{InvalidFormStateError{FormID: "f1", State: StateDuplicate}, "form f1 in state duplicate cannot be archived or unarchived"},
		{DuplicateActionError{Name: "archive_form"}, `system action "archive_form" already registered`},
		{UnknownSystemActionError{Name: "nope"}, `unknown system action "nope"`},
		{UnauthorizedSystemActionError{FormID: "f1"}, "form f1: system action handled outside system context"},
	}
	for _, tc := range cases {
		if tc.err.Error() != tc.want {
			t.Fatalf("got %q want %q", tc.err.Error(), tc.want)
		}
	}
}
