package domain

import "encoding/json"

// FormPayload wraps the raw JSON body of a form submission. Callers
// unmarshal the bytes into typed structures as needed; the wrapper clones on
// both construction and access so shared form values stay immutable.
type FormPayload struct {
	defined bool
	raw     json.RawMessage
}

// NewFormPayload builds a payload wrapper from raw JSON. Passing a nil slice
// yields a defined but empty payload; the zero FormPayload is "not set".
func NewFormPayload(raw json.RawMessage) FormPayload {
	payload := FormPayload{defined: true}
	if raw != nil {
		payload.raw = cloneRawMessage(raw)
	}
	return payload
}

// NewFormPayloadFromValue marshals a typed value into a FormPayload.
func NewFormPayloadFromValue[T any](value T) (FormPayload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return FormPayload{}, err
	}
	return NewFormPayload(raw), nil
}

// Defined reports whether the payload has been initialized.
func (p FormPayload) Defined() bool {
	return p.defined
}

// IsEmpty reports whether the payload contains no bytes.
func (p FormPayload) IsEmpty() bool {
	if !p.defined {
		return true
	}
	return len(p.raw) == 0
}

// Raw returns a cloned copy of the underlying JSON bytes. Nil is returned
// when the payload is undefined or empty.
func (p FormPayload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	return cloneRawMessage(p.raw)
}

// MarshalJSON encodes the payload as its raw bytes, or null when unset.
func (p FormPayload) MarshalJSON() ([]byte, error) {
	if !p.defined || len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return cloneRawMessage(p.raw), nil
}

// UnmarshalJSON restores a payload from its raw encoding; a JSON null yields
// an undefined payload.
func (p *FormPayload) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = FormPayload{}
		return nil
	}
	*p = NewFormPayload(data)
	return nil
}

func cloneRawMessage(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
