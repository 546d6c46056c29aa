package composer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/browser/browsertest"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBuildHTML(t *testing.T) {
	require.Equal(t, "<p>Olá Ana,</p><p><br></p><p>Tudo certo.</p>", BuildHTML("Olá Ana,\r\n\r\n  Tudo certo.  "))
	require.Equal(t, "<p><br></p>", BuildHTML(""))
	require.Equal(t, "<p>a &lt;b&gt; &amp; c</p>", BuildHTML("a <b> & c"))
}

func TestWriteFillsAndNudges(t *testing.T) {
	var got struct {
		Editor []string `json:"editor"`
		HTML   string   `json:"html"`
	}
	attempts := 0
	page := browsertest.New("main").Handle(ScriptFill, func(raw json.RawMessage) (any, error) {
		attempts++
		require.NoError(t, json.Unmarshal(raw, &got))
		return attempts > 1, nil
	})

	w := NewWriter(page, selectors.Default(), 2*time.Second)
	require.NoError(t, w.Write(context.Background(), "Linha 1\nLinha 2"))

	require.Equal(t, 2, attempts)
	require.Equal(t, "<p>Linha 1</p><p>Linha 2</p>", got.HTML)
	require.Equal(t, selectors.Default().Get(selectors.ComposerEditor), got.Editor)
	keys := page.Calls("type_keys")
	require.Len(t, keys, 1)
	require.Equal(t, " "+kb.Backspace, keys[0].Text)
	require.Empty(t, page.Calls("click"), "writing must never click send")
}

func TestWriteTimesOutWithoutComposer(t *testing.T) {
	page := browsertest.New("main").Returns(ScriptFill, false)
	w := NewWriter(page, selectors.Default(), 10*time.Millisecond)

	err := w.Write(context.Background(), "x")
	require.Error(t, err)
	require.True(t, errors.Is(err, browser.ErrTimeout))
	require.Empty(t, page.Calls("type_keys"))
}
