package domain

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestFormPayloadCloneSemantics(t *testing.T) {
	raw := json.RawMessage(`{"form_id":"f1"}`)
	payload := NewFormPayload(raw)
	raw[2] = 'X'
	if !bytes.Equal(payload.Raw(), []byte(`{"form_id":"f1"}`)) {
		t.Fatalf("payload shares storage with caller: %s", payload.Raw())
	}

	out := payload.Raw()
	out[2] = 'Y'
	if !bytes.Equal(payload.Raw(), []byte(`{"form_id":"f1"}`)) {
		t.Fatal("Raw returned aliased bytes")
	}
}

func TestFormPayloadDefinedAndEmpty(t *testing.T) {
	var unset FormPayload
	if unset.Defined() || !unset.IsEmpty() || unset.Raw() != nil {
		t.Fatal("zero payload should be undefined and empty")
	}

	empty := NewFormPayload(nil)
	if !empty.Defined() || !empty.IsEmpty() {
		t.Fatal("nil raw should yield defined empty payload")
	}

	typed, err := NewFormPayloadFromValue(map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("from value: %v", err)
	}
	if typed.IsEmpty() {
		t.Fatal("typed payload should not be empty")
	}
}

func TestFormPayloadJSONRoundTrip(t *testing.T) {
	form := XFormInstance{FormID: "f1", Payload: NewFormPayload([]byte(`{"k":"v"}`))}
	data, err := json.Marshal(form)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back XFormInstance
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bytes.Equal(back.Payload.Raw(), []byte(`{"k":"v"}`)) {
		t.Fatalf("payload did not round trip: %s", back.Payload.Raw())
	}

	var null FormPayload
	if err := json.Unmarshal([]byte("null"), &null); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if null.Defined() {
		t.Fatal("null should decode to undefined payload")
	}
}
