package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIDEncoderRoundTrips(t *testing.T) {
	cases := []string{"human:alice", "agent:bot-a", "1700000000-task-demo"}
	for _, id := range cases {
		encoded := DefaultIDEncoder.Encode(id)
		decoded, err := DefaultIDEncoder.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestDefaultIDEncoderEscapesColon(t *testing.T) {
	assert.Equal(t, "human__alice", DefaultIDEncoder.Encode("human:alice"))
}
