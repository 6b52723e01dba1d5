package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDescriber struct {
	out         string
	err         error
	instruction string
}

func (f *fakeDescriber) DescribeImage(ctx context.Context, image []byte, instruction string) (string, error) {
	f.instruction = instruction
	return f.out, f.err
}

func TestPromptBuilder_TextIntent(t *testing.T) {
	p, err := PromptBuilder{}.Build(context.Background(), " dripping kitchen tap ", nil)
	require.NoError(t, err)
	assert.Contains(t, p, "demonstrating: dripping kitchen tap.")
	assert.Contains(t, p, "no faces or people")
}

func TestPromptBuilder_ImageUsesDescriber(t *testing.T) {
	d := &fakeDescriber{out: "  A detailed 8-second repair tutorial showing a cracked tile.  "}
	p, err := PromptBuilder{Describer: d}.Build(context.Background(), "cracked tile", []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, "A detailed 8-second repair tutorial showing a cracked tile.", p)
	assert.Contains(t, d.instruction, "cracked tile")
}

func TestPromptBuilder_DescriberError(t *testing.T) {
	d := &fakeDescriber{err: errors.New("boom")}
	_, err := PromptBuilder{Describer: d}.Build(context.Background(), "x", []byte{1})
	assert.Error(t, err)
}

func TestPromptBuilder_Empty(t *testing.T) {
	_, err := PromptBuilder{}.Build(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}
