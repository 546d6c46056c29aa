package helpdesk

import (
	"context"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ScriptInputValue = "helpdesk.input-value"
	ScriptClearInput = "helpdesk.clear-input"
)

const inputValueBody = `
const el = one([args.sel]);
return el ? (el.value || '') : '';
`

const clearInputBody = `
const el = one([args.sel]);
if (!el) return false;
el.value = '';
el.dispatchEvent(new Event('input', {bubbles: true}));
return true;
`

// Login opens the helpdesk and signs in unless a session is already active.
// The second factor is entered by the operator in the browser; Login waits for
// the dashboard up to the login timeout.
func (d *Desk) Login(ctx context.Context) error {
	log.Info().Str("url", d.cfg.URL).Msg("opening helpdesk")
	if err := d.page.Navigate(ctx, d.cfg.URL); err != nil {
		return errors.Wrap(err, "open helpdesk")
	}
	if _, err := browser.WaitFirstMatch(ctx, d.page, d.sel.Get(selectors.LoginDashboardCheck), false, d.cfg.SessionCheck); err == nil {
		log.Info().Msg("session already active, skipping login")
		return nil
	} else if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Info().Msg("not logged in, signing in")
	email, err := browser.WaitFirstMatch(ctx, d.page, d.sel.Get(selectors.LoginEmail), true, 20*time.Second)
	if err != nil {
		return errors.Wrapf(ErrLoginFailed, "email field: %v", err)
	}
	if err := d.typeVerified(ctx, email, d.cfg.Email, "email", true); err != nil {
		return errors.Wrapf(ErrLoginFailed, "%v", err)
	}
	if err := d.submit(ctx); err != nil {
		return err
	}

	password, err := browser.WaitFirstMatch(ctx, d.page, d.sel.Get(selectors.LoginPassword), true, 20*time.Second)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Msg("password field did not appear, probably already on the OTP screen")
	} else {
		if err := d.typeVerified(ctx, password, d.cfg.Password, "password", false); err != nil {
			return errors.Wrapf(ErrLoginFailed, "%v", err)
		}
		if err := d.submit(ctx); err != nil {
			return err
		}
	}

	d.chooseAuthenticator(ctx)

	if err := d.waitForDashboard(ctx); err != nil {
		return err
	}
	log.Info().Msg("login completed")
	return nil
}

func (d *Desk) submit(ctx context.Context) error {
	if err := d.sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	if err := browser.ClickFirst(ctx, d.page, d.sel.Get(selectors.LoginSubmit), 10*time.Second); err != nil {
		return errors.Wrapf(ErrLoginFailed, "submit: %v", err)
	}
	return nil
}

// chooseAuthenticator switches the second factor to the authenticator app when
// the "problem signing in" link is offered. Its absence is not an error.
func (d *Desk) chooseAuthenticator(ctx context.Context) {
	link, err := browser.WaitFirstMatch(ctx, d.page, d.sel.Get(selectors.LoginProblemLink), true, 5*time.Second)
	if err != nil {
		log.Warn().Msg("no 'problem signing in' step, OTP screen already showing or not needed")
		return
	}
	if err := d.page.Click(ctx, link); err != nil {
		log.Warn().Err(err).Msg("could not click 'problem signing in'")
		return
	}
	if err := d.sleep(ctx, time.Second); err != nil {
		return
	}
	if err := browser.ClickFirst(ctx, d.page, d.sel.Get(selectors.LoginAuthenticator), 5*time.Second); err != nil {
		log.Warn().Err(err).Msg("could not select the authenticator option")
		return
	}
	log.Info().Msg("authenticator app selected for verification")
}

// typeVerified types text one key at a time and checks the field value,
// retrying once with a single burst.
func (d *Desk) typeVerified(ctx context.Context, sel, text, field string, logValue bool) error {
	if err := d.page.Click(ctx, sel); err != nil {
		return errors.Wrapf(err, "focus %s", field)
	}
	if err := d.clear(ctx, sel); err != nil {
		return err
	}
	for _, r := range text {
		if err := d.page.SendKeys(ctx, sel, string(r)); err != nil {
			return errors.Wrapf(err, "type %s", field)
		}
		if err := d.sleep(ctx, 50*time.Millisecond); err != nil {
			return err
		}
	}

	filled := func(retried bool) {
		ev := log.Info().Str("field", field).Bool("retried", retried)
		if logValue {
			ev = ev.Str("value", text)
		}
		ev.Msg("field filled")
	}
	if ok, err := d.valueIs(ctx, sel, text); err != nil {
		return err
	} else if ok {
		filled(false)
		return nil
	}

	log.Warn().Str("field", field).Msg("field value does not match, retrying")
	if err := d.clear(ctx, sel); err != nil {
		return err
	}
	if err := d.page.SendKeys(ctx, sel, text); err != nil {
		return errors.Wrapf(err, "type %s", field)
	}
	if ok, err := d.valueIs(ctx, sel, text); err != nil {
		return err
	} else if !ok {
		return errors.Errorf("could not fill %s", field)
	}
	filled(true)
	return nil
}

func (d *Desk) clear(ctx context.Context, sel string) error {
	return d.page.Evaluate(ctx, browser.Script(ScriptClearInput, clearInputBody, map[string]any{"sel": sel}), nil)
}

func (d *Desk) valueIs(ctx context.Context, sel, want string) (bool, error) {
	if err := d.sleep(ctx, 300*time.Millisecond); err != nil {
		return false, err
	}
	var got string
	if err := d.page.Evaluate(ctx, browser.Script(ScriptInputValue, inputValueBody, map[string]any{"sel": sel}), &got); err != nil {
		return false, err
	}
	return got == want, nil
}

// waitForDashboard polls for the dashboard marker while the operator completes
// the second factor, logging progress once a minute.
func (d *Desk) waitForDashboard(ctx context.Context) error {
	timeout := d.cfg.LoginTimeout
	log.Info().Dur("timeout", timeout).Msg("waiting for the operator to complete the OTP")
	start := time.Now()
	lastMinute := 0
	for {
		sel, err := browser.FirstMatch(ctx, d.page, d.sel.Get(selectors.LoginDashboardCheck), false)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("error while waiting for login")
		} else if sel != "" {
			return nil
		}

		elapsed := time.Since(start)
		if elapsed >= timeout {
			return errors.Wrapf(ErrLoginFailed, "dashboard not shown after %s", timeout)
		}
		if m := int(elapsed / time.Minute); m > lastMinute {
			lastMinute = m
			log.Info().
				Int("elapsed_min", m).
				Int("remaining_min", int((timeout-elapsed)/time.Minute)).
				Msg("still waiting for OTP")
		}
		if err := d.sleep(ctx, d.loginPoll); err != nil {
			return err
		}
	}
}
