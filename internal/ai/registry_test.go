package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CaseInsensitiveLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Veo ", func(ctx context.Context, model string) (Provider, error) {
		return NewVeoProvider("", "k", model), nil
	})

	p, err := reg.Get(context.Background(), "VEO", "veo-3")
	require.NoError(t, err)
	assert.Equal(t, "veo", p.Name())
	assert.Equal(t, "veo-3", p.(*VeoProvider).Model)

	_, err = reg.Get(context.Background(), "sora", "")
	assert.Error(t, err)
	assert.Equal(t, []string{"veo"}, reg.Names())
}
