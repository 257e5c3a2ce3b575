package record

import (
	"crypto/ed25519"
)

const HeaderVersion = "1.0"

// New validates payload, canonicalizes it, and returns an unsigned Wrapper
// with a correct header checksum (§3 "Lifecycle": created by a factory that
// validates before returning).
func New(t Type, payload any) (*Wrapper, error) {
	if err := Validate(t, payload); err != nil {
		return nil, err
	}

	canon, err := MarshalCanonical(payload)
	if err != nil {
		return nil, err
	}

	return &Wrapper{
		Header: Header{
			Version:         HeaderVersion,
			Type:            t,
			PayloadChecksum: Checksum(canon),
			Signatures:      nil,
		},
		Payload: canon,
	}, nil
}

// NewSigned is New followed by an initial Sign with the given role.
func NewSigned(t Type, payload any, signer ed25519.PrivateKey, keyID string, role SignerRole, notes string, now int64) (*Wrapper, error) {
	w, err := New(t, payload)
	if err != nil {
		return nil, err
	}
	Sign(w, signer, keyID, role, notes, now)
	return w, nil
}

// Decode unmarshals w.Payload into out (a pointer), e.g. *TaskRecord.
func Decode(w *Wrapper, out any) error {
	return decodeJSON(w.Payload, out)
}
