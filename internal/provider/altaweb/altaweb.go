// Package altaweb drives the parking reservation web interface through a
// headless browser: log in when asked, page the calendar to the target date,
// classify availability and push the booking form through to confirmation.
package altaweb

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/clawdshartavenger/alta-parking-app/internal/browser"
	"github.com/clawdshartavenger/alta-parking-app/internal/classify"
	"github.com/clawdshartavenger/alta-parking-app/internal/config"
	"github.com/clawdshartavenger/alta-parking-app/internal/logbus"
	"github.com/clawdshartavenger/alta-parking-app/internal/model"
)

// pageSession is the slice of the browser session the booking flow drives
// once a page is open. Narrow on purpose: everything past navigation works
// against it, so the flow can run against a live page or a canned one.
type pageSession interface {
	Find(set classify.SelectorSet) (*rod.Element, bool)
	CalendarCells() ([]classify.CalendarCell, []*rod.Element)
	Click(el *rod.Element) error
	Fill(el *rod.Element, v string) error
	PageText() string
	Settle(d time.Duration)
}

var _ pageSession = (*browser.Session)(nil)

type Provider struct {
	cfg config.SiteConfig
	bus *logbus.Bus
}

func New(cfg config.SiteConfig, bus *logbus.Bus) *Provider {
	return &Provider{cfg: cfg, bus: bus}
}

func (p *Provider) Name() string { return "altaweb" }

// Attempt executes one login → navigate → classify → book sequence against a
// fresh browser session. The session is closed on every exit path, and any
// panic from a step is folded into a transient outcome so the poll loop can
// route it like any other failure.
func (p *Provider) Attempt(ctx context.Context, mc model.MonitorConfig) (out model.AttemptOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = model.Transient(fmt.Sprintf("attempt panic: %v", r))
		}
	}()

	target, err := mc.TargetDate()
	if err != nil {
		// Config is validated before the loop starts; reaching here means a
		// programming error, but it still must not kill the loop.
		return model.Transient("invalid target date: " + err.Error())
	}

	sess, err := browser.Open(browser.Config{
		BinPath:     mc.BrowserPath,
		Headless:    !p.cfg.Headful,
		NavTimeout:  p.cfg.NavTimeout(),
		StepTimeout: p.cfg.StepTimeout(),
	})
	if err != nil {
		return model.Transient("browser launch failed: " + err.Error())
	}
	defer sess.Close()

	if err := ctx.Err(); err != nil {
		return model.Transient("attempt cancelled before navigation")
	}

	p.status(model.StatusChecking, "opening reservation site")
	if err := sess.Navigate(p.cfg.URL); err != nil {
		return model.Transient(err.Error())
	}
	sess.Settle(p.cfg.Settle())

	if out, done := p.loginIfNeeded(sess, mc); done {
		return out
	}

	return p.bookDate(ctx, sess, mc, target)
}

// loginIfNeeded detects the login page and signs in. done is true only when
// the attempt cannot continue.
func (p *Provider) loginIfNeeded(sess pageSession, mc model.MonitorConfig) (model.AttemptOutcome, bool) {
	emailEl, hasEmail := sess.Find(classify.EmailInputs)
	loginEl, hasLogin := sess.Find(classify.LoginAffordances)
	if classify.LoginState(hasEmail, hasLogin) != model.PageNeedsLogin {
		return model.AttemptOutcome{}, false
	}

	p.status(model.StatusChecking, "signing in")
	if hasLogin && !hasEmail {
		// A login link/button without a visible form: open the form first.
		if err := sess.Click(loginEl); err != nil {
			return model.Transient("could not open login form: " + err.Error()), true
		}
		sess.Settle(p.cfg.Settle())
		emailEl, hasEmail = sess.Find(classify.EmailInputs)
	}
	if !hasEmail {
		return model.Transient("login form has no email field"), true
	}

	passEl, ok := sess.Find(classify.PasswordInputs)
	if !ok {
		return model.Transient("login form has no password field"), true
	}
	if err := sess.Fill(emailEl, mc.Email); err != nil {
		return model.Transient("fill email: " + err.Error()), true
	}
	if err := sess.Fill(passEl, mc.Password); err != nil {
		return model.Transient("fill password: " + err.Error()), true
	}

	submitEl, ok := sess.Find(classify.LoginSubmits)
	if !ok {
		return model.Transient("login form has no submit control"), true
	}
	if err := sess.Click(submitEl); err != nil {
		return model.Transient("submit login: " + err.Error()), true
	}
	sess.Settle(p.cfg.Settle())

	if _, still := sess.Find(classify.PasswordInputs); still {
		return model.Transient("login did not complete (still on login form)"), true
	}
	p.status(model.StatusChecking, "signed in")
	return model.AttemptOutcome{}, false
}

// bookDate pages the calendar to the target date, classifies it and, when
// bookable, completes the booking form through the confirm click.
func (p *Provider) bookDate(ctx context.Context, sess pageSession, mc model.MonitorConfig, target time.Time) model.AttemptOutcome {
	dateLabel := target.Format(model.DateLayout)

	resolved := false
pages:
	for page := 0; page < p.cfg.MaxCalendarPages(); page++ {
		if err := ctx.Err(); err != nil {
			return model.Transient("attempt cancelled during calendar navigation")
		}

		cells, refs := sess.CalendarCells()
		state, idx := classify.DateState(cells, target)
		switch state {
		case model.PageDateSoldOut:
			p.status(model.StatusMonitoring, dateLabel+" is sold out")
			return model.AttemptOutcome{Kind: model.OutcomeSoldOut}
		case model.PageDateBookable:
			p.status(model.StatusAvailable, dateLabel+" looks bookable, selecting it")
			if err := sess.Click(refs[idx]); err != nil {
				return model.Transient("click date cell: " + err.Error())
			}
			sess.Settle(p.cfg.Settle())
			resolved = true
			break pages
		case model.PageDateAbsent:
			nextEl, ok := sess.Find(classify.NextMonthAffordances)
			if !ok {
				break pages
			}
			if err := sess.Click(nextEl); err != nil {
				return model.Transient("advance calendar: " + err.Error())
			}
			sess.Settle(p.cfg.Settle())
		}
	}

	if !resolved {
		// The cell-level lookup found nothing; sold-out phrasing sometimes
		// shows up in page copy before any cell reflects it.
		if classify.SoldOutText(sess.PageText()) {
			p.status(model.StatusMonitoring, dateLabel+" is sold out")
			return model.AttemptOutcome{Kind: model.OutcomeSoldOut}
		}
	}

	bookEl, ok := sess.Find(classify.BookingAffordances)
	if !ok {
		if !resolved {
			p.status(model.StatusMonitoring, dateLabel+" not found on the reservation calendar")
			return model.AttemptOutcome{Kind: model.OutcomeNotFound}
		}
		return model.AttemptOutcome{
			Kind:   model.OutcomeBookingFailed,
			Detail: "date selected but no booking control appeared",
		}
	}

	p.status(model.StatusAvailable, "starting booking for "+dateLabel)
	if err := sess.Click(bookEl); err != nil {
		return model.Transient("click booking control: " + err.Error())
	}
	sess.Settle(p.cfg.Settle())

	if passEl, ok := sess.Find(classify.SeasonPassInputs); ok {
		if err := sess.Fill(passEl, mc.SeasonPassCode); err != nil {
			return model.Transient("fill season pass code: " + err.Error())
		}
	}
	if plateEl, ok := sess.Find(classify.LicensePlateInputs); ok {
		if err := sess.Fill(plateEl, mc.LicensePlate); err != nil {
			return model.Transient("fill license plate: " + err.Error())
		}
	}

	confirmEl, ok := sess.Find(classify.ConfirmAffordances)
	if !ok {
		// The spot was real but the form could not be completed. Reported,
		// never silently retried as if nothing happened.
		return model.AttemptOutcome{
			Kind:   model.OutcomeBookingFailed,
			Detail: "booking form has no confirm control",
		}
	}

	p.status(model.StatusAvailable, "submitting booking for "+dateLabel)
	if err := sess.Click(confirmEl); err != nil {
		return model.Transient("click confirm: " + err.Error())
	}
	// Booking submission is slower than ordinary navigation.
	sess.Settle(p.cfg.ConfirmSettle())

	switch classify.ConfirmationState(sess.PageText()) {
	case model.PageBookingConfirmed:
		p.status(model.StatusSuccess, "booking confirmed for "+dateLabel)
		return model.AttemptOutcome{Kind: model.OutcomeBooked}
	default:
		// Uncertain means exactly that: the click may have landed server-side.
		// Flag for manual verification rather than claiming success.
		return model.AttemptOutcome{
			Kind:   model.OutcomeBookingFailed,
			Detail: "no confirmation text after submit; verify the booking manually",
		}
	}
}

func (p *Provider) status(kind model.StatusKind, msg string) {
	if p.bus != nil {
		p.bus.Status(model.StatusEvent{Kind: kind, Message: msg})
	}
}
