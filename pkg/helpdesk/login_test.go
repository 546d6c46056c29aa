package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser/browsertest"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

// loginSite fakes the sign-in pages: every selector matches, typed keys land in
// the matching input, and the dashboard shows up once the authenticator option
// has been picked.
type loginSite struct {
	page     *browsertest.Page
	sel      selectors.Table
	fields   map[string]string
	loggedIn bool
	// dashboardAfterOTP is false when the operator never finishes the OTP.
	dashboardAfterOTP bool
	// garble makes the first value check of the email field fail.
	garble bool
}

func newLoginSite(loggedIn bool) *loginSite {
	s := &loginSite{
		page:              browsertest.New("main"),
		sel:               selectors.Default(),
		fields:            map[string]string{},
		loggedIn:          loggedIn,
		dashboardAfterOTP: true,
	}
	dashboard := s.sel.First(selectors.LoginDashboardCheck)
	s.page.Handle("first-match", func(raw json.RawMessage) (any, error) {
		var args selArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		if args.Sels[0] == dashboard && !s.loggedIn {
			return "", nil
		}
		return args.Sels[0], nil
	})
	s.page.Handle(ScriptClearInput, func(raw json.RawMessage) (any, error) {
		s.fields[inputSel(raw)] = ""
		return true, nil
	})
	s.page.Handle(ScriptInputValue, func(raw json.RawMessage) (any, error) {
		sel := inputSel(raw)
		if s.garble && sel == s.sel.First(selectors.LoginEmail) {
			s.garble = false
			return "garbled", nil
		}
		return s.fields[sel], nil
	})
	s.page.OnCall = func(c browsertest.Call) error {
		switch {
		case c.Op == "send_keys":
			s.fields[c.Selector] += c.Text
		case c.Op == "click" && c.Selector == s.sel.First(selectors.LoginAuthenticator):
			s.loggedIn = s.dashboardAfterOTP
		}
		return nil
	}
	return s
}

func inputSel(raw json.RawMessage) string {
	var args struct {
		Sel string `json:"sel"`
	}
	_ = json.Unmarshal(raw, &args)
	return args.Sel
}

func (s *loginSite) typed(sel selectors.Key) string {
	out := ""
	for _, c := range s.page.Calls("send_keys") {
		if c.Selector == s.sel.First(sel) {
			out += c.Text
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		URL:          "https://desk.example.com/agent",
		Email:        "operador@example.com",
		Password:     "s3cret!",
		SessionCheck: 10 * time.Millisecond,
		LoginTimeout: time.Second,
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

func TestLoginSkipsWhenSessionActive(t *testing.T) {
	site := newLoginSite(true)
	d := newTestDesk(site.page, testConfig())

	require.NoError(t, d.Login(context.Background()))
	nav := site.page.Calls("navigate")
	require.Len(t, nav, 1)
	require.Equal(t, "https://desk.example.com/agent", nav[0].Text)
	require.Empty(t, site.page.Calls("send_keys"))
	require.Empty(t, site.page.Calls("click"))
}

func TestLoginFullFlow(t *testing.T) {
	logs := captureLog(t)
	site := newLoginSite(false)
	cfg := testConfig()
	d := newTestDesk(site.page, cfg)

	require.NoError(t, d.Login(context.Background()))

	require.Equal(t, cfg.Email, site.typed(selectors.LoginEmail))
	require.Equal(t, cfg.Password, site.typed(selectors.LoginPassword))
	// one key per character
	require.Len(t, site.page.Calls("send_keys"), len(cfg.Email)+len(cfg.Password))

	clicks := []string{}
	for _, c := range site.page.Calls("click") {
		clicks = append(clicks, c.Selector)
	}
	sel := site.sel
	require.Equal(t, []string{
		sel.First(selectors.LoginEmail),
		sel.First(selectors.LoginSubmit),
		sel.First(selectors.LoginPassword),
		sel.First(selectors.LoginSubmit),
		sel.First(selectors.LoginProblemLink),
		sel.First(selectors.LoginAuthenticator),
	}, clicks)

	require.Contains(t, logs.String(), cfg.Email)
	require.NotContains(t, logs.String(), cfg.Password)
}

func TestLoginRetriesMistypedEmail(t *testing.T) {
	site := newLoginSite(false)
	site.garble = true
	cfg := testConfig()
	d := newTestDesk(site.page, cfg)

	require.NoError(t, d.Login(context.Background()))

	var burst bool
	for _, c := range site.page.Calls("send_keys") {
		if c.Selector == site.sel.First(selectors.LoginEmail) && c.Text == cfg.Email {
			burst = true
		}
	}
	require.True(t, burst, "email should be retyped in one go")
	require.Equal(t, cfg.Email, site.fields[site.sel.First(selectors.LoginEmail)])
}

func TestLoginTimesOutWaitingForOTP(t *testing.T) {
	site := newLoginSite(false)
	site.dashboardAfterOTP = false
	cfg := testConfig()
	cfg.LoginTimeout = 5 * time.Millisecond
	d := newTestDesk(site.page, cfg)

	err := d.Login(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLoginFailed))
	require.True(t, strings.Contains(err.Error(), "dashboard not shown"))
}

func TestLoginStopsOnCanceledContext(t *testing.T) {
	site := newLoginSite(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newTestDesk(site.page, testConfig())

	err := d.Login(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
