package completion_test

import (
	"context"
	"testing"

	"github.com/cosmicshuai/prompt-enhancer/pkg/completion"
	"github.com/cosmicshuai/prompt-enhancer/pkg/completion/fixtures"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	svc := fixtures.NewScriptedService(fixtures.Response{Fragments: []string{"a", "b", "c"}})
	text, err := completion.Collect(context.Background(), svc, &completion.Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestCollectReturnsPartialTextOnFailure(t *testing.T) {
	boom := completion.NewTransportError(errors.New("reset"), "stream aborted")
	svc := fixtures.NewScriptedService(fixtures.Response{Fragments: []string{"a", "b"}, Err: boom})
	text, err := completion.Collect(context.Background(), svc, &completion.Request{})
	assert.Equal(t, "ab", text)
	assert.ErrorIs(t, err, boom)
}

func TestCollectStartError(t *testing.T) {
	svc := fixtures.NewScriptedService(fixtures.Response{StartErr: &completion.AuthenticationError{StatusCode: 401}})
	_, err := completion.Collect(context.Background(), svc, &completion.Request{})
	assert.True(t, completion.IsAuthentication(err))
}
