package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestFake_ReturnsQueuedResponsesInOrder(t *testing.T) {
	f := &Fake{Responses: []string{"first", "second"}}

	r1, err := f.Complete(context.Background(), "prompt one")
	require.NoError(t, err)
	assert.Equal(t, "first", r1)

	r2, err := f.Complete(context.Background(), "prompt two")
	require.NoError(t, err)
	assert.Equal(t, "second", r2)

	assert.Equal(t, []string{"prompt one", "prompt two"}, f.Prompts)
}

func TestFake_PropagatesConfiguredError(t *testing.T) {
	wantErr := assert.AnError
	f := &Fake{Err: wantErr}
	_, err := f.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, wantErr)
}
