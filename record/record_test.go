package record

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIdempotent(t *testing.T) {
	input := []byte(`{"b": 2, "a": 1, "nested": {"z": "é", "y": [3,2,1]}}`)

	once, err := Canonicalize(input)
	require.NoError(t, err)

	twice, err := Canonicalize(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, `{"a":1,"b":2,"nested":{"y":[3,2,1],"z":"é"}}`, string(once))
}

func TestCanonicalizePreservesNonASCII(t *testing.T) {
	out, err := Canonicalize([]byte(`{"title":"café"}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), "café")
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	task := TaskRecord{
		ID:          "1700000000-task-demo",
		Title:       "Demo",
		Status:      "draft",
		Priority:    "medium",
		Description: "a demo task",
		Tags:        []string{},
		References:  []string{},
		CycleIDs:    []string{},
	}

	w, err := New(TypeTask, task)
	require.NoError(t, err)

	Sign(w, priv, "human:a", RoleAuthor, "initial", 1700000000)

	resolver := func(keyID string) (ed25519.PublicKey, bool) {
		if keyID == "human:a" {
			return pub, true
		}
		return nil, false
	}

	require.NoError(t, Verify(w, resolver))

	var decoded TaskRecord
	require.NoError(t, Decode(w, &decoded))
	assert.Equal(t, task, decoded)
}

func TestVerifyDetectsChecksumMismatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	task := TaskRecord{ID: "1700000000-task-demo", Title: "Demo", Status: "draft", Priority: "low", Description: "d",
		Tags: []string{}, References: []string{}, CycleIDs: []string{}}
	w, err := New(TypeTask, task)
	require.NoError(t, err)
	Sign(w, priv, "human:a", RoleAuthor, "", 1700000000)

	w.Payload = RawPayload(`{"id":"1700000000-task-demo","title":"Tampered"}`)

	err = Verify(w, func(string) (ed25519.PublicKey, bool) { return pub, true })
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrChecksumMismatch))
}

func TestVerifyUnknownSigner(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	task := TaskRecord{ID: "1700000000-task-demo", Title: "Demo", Status: "draft", Priority: "low", Description: "d",
		Tags: []string{}, References: []string{}, CycleIDs: []string{}}
	w, err := New(TypeTask, task)
	require.NoError(t, err)
	Sign(w, priv, "human:ghost", RoleAuthor, "", 1700000000)

	err = Verify(w, func(string) (ed25519.PublicKey, bool) { return nil, false })
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnknownSigner))
}

func TestValidateRejectsUnknownStatus(t *testing.T) {
	task := TaskRecord{ID: "1700000000-task-demo", Title: "Demo", Status: "bogus", Priority: "low", Description: "d"}
	err := Validate(TypeTask, task)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrDetailedValidation))
}

func TestChangelogCompletionRequiresTaskReferences(t *testing.T) {
	cl := ChangelogRecord{
		ID:          "1700000000-changelog-demo",
		EntityType:  "task",
		EntityID:    "1700000000-task-demo",
		ChangeType:  "completion",
		Title:       "Done",
		Description: "finished",
		Timestamp:   1700000000,
		Trigger:     "manual",
		TriggeredBy: "human:a",
		Reason:      "shipped",
		RiskLevel:   "low",
	}
	err := Validate(TypeChangelog, &cl)
	require.Error(t, err)

	cl.References = &ChangelogReferences{Tasks: []string{"1700000000-task-demo"}}
	require.NoError(t, Validate(TypeChangelog, &cl))
}

func TestChangelogHighRiskRequiresRollback(t *testing.T) {
	cl := ChangelogRecord{
		ID:          "1700000000-changelog-demo",
		EntityType:  "task",
		EntityID:    "1700000000-task-demo",
		ChangeType:  "update",
		Title:       "Risky",
		Description: "risky change",
		Timestamp:   1700000000,
		Trigger:     "manual",
		TriggeredBy: "human:a",
		Reason:      "needed",
		RiskLevel:   "high",
	}
	err := Validate(TypeChangelog, &cl)
	require.Error(t, err)

	cl.RollbackInstructions = "revert commit abc123"
	cl.UsersAffected = "all editors"
	require.NoError(t, Validate(TypeChangelog, &cl))
}

func TestDecodeWrapperRejectsHeaderless(t *testing.T) {
	_, err := DecodeWrapper([]byte(`{"id":"x","title":"legacy flat payload"}`))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrValidation))
}
