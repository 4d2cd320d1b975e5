package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	signed := Sign("# Report\n\nbody\n", Stamp{Generator: "blackwatch", Version: "v2", Validated: true})

	ok, err := Verify(signed)
	require.NoError(t, err)
	assert.True(t, ok)

	meta, clean := Extract(signed)
	require.NotNil(t, meta)
	assert.Equal(t, "# Report\n\nbody", clean)
	assert.Equal(t, "blackwatch", meta.Generator)
	assert.Equal(t, "v2", meta.Version)
	assert.True(t, meta.Validation)
	assert.False(t, meta.LastModify.IsZero())
}

func TestSign_ReplacesBlock(t *testing.T) {
	once := Sign("body", Stamp{})
	twice := Sign(once, Stamp{Validated: true})

	assert.Equal(t, 1, strings.Count(twice, TagStart))
	assert.Equal(t, CalculateHash("body"), CalculateHash(twice))
}

func TestVerify_Errors(t *testing.T) {
	_, err := Verify("no block")
	assert.ErrorIs(t, err, ErrNoMetadataBlock)

	_, err = Verify("body\n\n" + TagStart + "\nVALIDATION: TRUE\n" + TagEnd)
	assert.ErrorIs(t, err, ErrNoHashFound)

	tampered := strings.Replace(Sign("body", Stamp{}), "body", "edited", 1)
	ok, err := Verify(tampered)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrHashMismatch)
}
