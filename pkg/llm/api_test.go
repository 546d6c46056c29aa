package llm

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	chunks    []string
	finish    FinishReason
	streamErr error

	fallback    Completion
	fallbackErr error

	prompts []string
	closed  bool
}

func (f *fakeBackend) Stream(ctx context.Context, prompt string, onDelta func(string)) (Completion, error) {
	f.prompts = append(f.prompts, prompt)
	var b strings.Builder
	for _, c := range f.chunks {
		onDelta(c)
		b.WriteString(c)
	}
	return Completion{Text: b.String(), Finish: f.finish}, f.streamErr
}

func (f *fakeBackend) Complete(ctx context.Context, prompt string) (Completion, error) {
	f.prompts = append(f.prompts, prompt)
	return f.fallback, f.fallbackErr
}

func (f *fakeBackend) Model() string { return "fake-model" }

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func newAPIClient(t *testing.T, b *fakeBackend, echo io.Writer) *APIClient {
	return NewAPIClient(b, newPrompts(t, PromptConfig{}), echo)
}

func TestAPIStreamedReply(t *testing.T) {
	b := &fakeBackend{chunks: []string{"Olá Ana, ", "vamos atualizar. ", "[ACTION: CLOSE]"}, finish: FinishStop}
	var echo bytes.Buffer

	r, err := newAPIClient(t, b, &echo).GenerateReply(context.Background(), sampleConversation())
	require.NoError(t, err)
	require.Equal(t, "Olá Ana, vamos atualizar.", r.Text)
	require.True(t, r.Close)
	require.False(t, r.Truncated)
	require.Equal(t, ProviderAPI, r.Provider)
	require.Equal(t, "fake-model", r.Model)
	require.Equal(t, "Olá Ana, vamos atualizar. [ACTION: CLOSE]\n", echo.String())
	require.Len(t, b.prompts, 1)
}

func TestAPITruncatedReplyGetsNotice(t *testing.T) {
	b := &fakeBackend{chunks: []string{"Resposta longa"}, finish: FinishMaxTokens}

	r, err := newAPIClient(t, b, nil).GenerateReply(context.Background(), sampleConversation())
	require.NoError(t, err)
	require.True(t, r.Truncated)
	require.Equal(t, "Resposta longa"+TruncationNotice, r.Text)
	require.Len(t, b.prompts, 1, "truncation does not retry")
}

func TestAPIFallsBackOnStreamError(t *testing.T) {
	b := &fakeBackend{
		chunks:    []string{"parcial"},
		streamErr: errors.New("connection reset"),
		fallback:  Completion{Text: "Resposta curta", Finish: FinishStop},
	}

	r, err := newAPIClient(t, b, nil).GenerateReply(context.Background(), sampleConversation())
	require.NoError(t, err)
	require.Equal(t, "Resposta curta", r.Text)
	require.Len(t, b.prompts, 2)
	require.True(t, strings.HasPrefix(b.prompts[1], "Cliente Ana precisa de resposta"))
}

func TestAPIFallsBackOnEmptyStream(t *testing.T) {
	b := &fakeBackend{
		chunks:   []string{"  "},
		finish:   FinishSafety,
		fallback: Completion{Text: "Tudo certo", Finish: FinishMaxTokens},
	}

	r, err := newAPIClient(t, b, nil).GenerateReply(context.Background(), sampleConversation())
	require.NoError(t, err)
	require.Equal(t, "Tudo certo", r.Text)
	require.False(t, r.Truncated)
}

func TestAPIFailsWhenFallbackIsEmpty(t *testing.T) {
	b := &fakeBackend{streamErr: errors.New("boom")}
	_, err := newAPIClient(t, b, nil).GenerateReply(context.Background(), sampleConversation())
	require.True(t, errors.Is(err, ErrGenerationFailed))

	b = &fakeBackend{streamErr: errors.New("boom"), fallbackErr: errors.New("quota")}
	_, err = newAPIClient(t, b, nil).GenerateReply(context.Background(), sampleConversation())
	require.True(t, errors.Is(err, ErrGenerationFailed))
	require.Contains(t, err.Error(), "quota")
}

func TestAPIDoesNotFallBackWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &fakeBackend{streamErr: context.Canceled}

	_, err := newAPIClient(t, b, nil).GenerateReply(ctx, sampleConversation())
	require.True(t, errors.Is(err, context.Canceled))
	require.Len(t, b.prompts, 1)
}

func TestAPICloseClosesBackend(t *testing.T) {
	b := &fakeBackend{}
	require.NoError(t, newAPIClient(t, b, nil).Close())
	require.True(t, b.closed)
}
