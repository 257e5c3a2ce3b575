package record

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Canonicalize produces byte-deterministic JSON for payload: sorted object
// keys at every level, no insignificant whitespace, UTF-8 preserved
// (HTML-unescaped), numbers kept in their original literal form (§4.1).
//
// canonicalize ∘ parse ∘ canonicalize == canonicalize (§8 round-trip
// property): re-canonicalizing already-canonical bytes is a fixed point
// because canonicalization only reorders keys and strips whitespace, both
// idempotent operations.
func Canonicalize(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, NewKindError(ErrInvalidData, "payload is not valid JSON: %v", err)
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string:
		return encodeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return NewKindError(ErrInvalidData, "unsupported JSON value type %T", v)
	}
}

// encodeCanonicalString writes a JSON string literal without escaping
// non-ASCII runes (UTF-8 preserved, per §4.1), using encoding/json's
// SetEscapeHTML(false) to additionally avoid escaping &, <, >.
func encodeCanonicalString(buf *bytes.Buffer, s string) error {
	var inner bytes.Buffer
	enc := json.NewEncoder(&inner)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// json.Encoder.Encode appends a trailing newline; strip it.
	b := bytes.TrimRight(inner.Bytes(), "\n")
	buf.Write(b)
	return nil
}

// MarshalCanonical is a convenience that marshals v with encoding/json and
// then canonicalizes the result.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Canonicalize(raw)
}
