package record

import "encoding/json"

func decodeJSON(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return NewKindError(ErrInvalidData, "payload does not decode: %v", err)
	}
	return nil
}

// Open-header legacy guard (§9 Open Question): header-less inputs are
// rejected rather than guessed at. DecodeWrapper enforces that a JSON blob
// carries both "header" and "payload" keys before treating it as a Wrapper.
func DecodeWrapper(raw []byte) (*Wrapper, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, NewKindError(ErrInvalidData, "not a JSON object: %v", err)
	}
	if _, ok := probe["header"]; !ok {
		return nil, NewKindError(ErrValidation, "legacy header-less record rejected: missing \"header\"")
	}
	if _, ok := probe["payload"]; !ok {
		return nil, NewKindError(ErrValidation, "legacy header-less record rejected: missing \"payload\"")
	}

	var w Wrapper
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, NewKindError(ErrInvalidData, "malformed wrapper: %v", err)
	}
	return &w, nil
}
