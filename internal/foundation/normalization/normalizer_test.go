package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

type mode string

const (
	modeFast mode = "fast"
	modeSafe mode = "safe"
)

func newModes() *Normalizer[mode] {
	return NewNormalizer(map[string]mode{
		"fast": modeFast,
		"SAFE": modeSafe,
	}, modeSafe)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newModes()

	tests := []struct {
		name  string
		input string
		want  mode
	}{
		{"exact", "fast", modeFast},
		{"case insensitive", "FAST", modeFast},
		{"surrounding space", "  safe ", modeSafe},
		{"unknown falls back", "turbo", modeSafe},
		{"empty falls back", "", modeSafe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_Strict(t *testing.T) {
	n := newModes()

	v, err := n.Strict("store.mode", " Fast")
	require.NoError(t, err)
	assert.Equal(t, modeFast, v)

	_, err = n.Strict("store.mode", "turbo")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestNormalizer_ValidKeys(t *testing.T) {
	n := newModes()
	keys := n.ValidKeys()
	assert.Equal(t, []string{"fast", "safe"}, keys)

	keys[0] = "mutated"
	assert.Equal(t, []string{"fast", "safe"}, n.ValidKeys())
	assert.Equal(t, modeSafe, n.Default())
}
