// Package browser owns the lifecycle of one headless-browser session and
// exposes the narrow imperative surface the booking flow drives: navigate,
// find, read, click, fill. Every operation carries a bounded timeout so a
// hung page surfaces as an error instead of stalling the monitor loop.
package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/clawdshartavenger/alta-parking-app/internal/classify"
)

type Config struct {
	// BinPath is the browser executable to launch. Empty means the platform
	// default; a configured path falls back to the default once on launch
	// failure.
	BinPath     string
	Headless    bool
	NavTimeout  time.Duration
	StepTimeout time.Duration
}

func (c Config) navTimeout() time.Duration {
	if c.NavTimeout <= 0 {
		return 25 * time.Second
	}
	return c.NavTimeout
}

func (c Config) stepTimeout() time.Duration {
	if c.StepTimeout <= 0 {
		return 10 * time.Second
	}
	return c.StepTimeout
}

// Session is one live browser process plus the single page the booking flow
// mutates. It is owned by exactly one in-flight attempt.
type Session struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// Open launches a browser and opens a fresh page. The caller must Close the
// session on every exit path.
func Open(cfg Config) (*Session, error) {
	l, u, err := launch(cfg)
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if err := rod.Try(func() {
		page = stealth.MustPage(b)
	}); err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &Session{cfg: cfg, launcher: l, browser: b, page: page}, nil
}

func launch(cfg Config) (*launcher.Launcher, string, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.BinPath != "" {
		l = l.Bin(cfg.BinPath)
	}
	u, err := l.Launch()
	if err == nil {
		return l, u, nil
	}
	l.Kill()
	if cfg.BinPath == "" {
		return nil, "", fmt.Errorf("launch browser: %w", err)
	}

	// Configured executable refused to start; retry once with the default.
	l = launcher.New().Headless(cfg.Headless)
	u, err = l.Launch()
	if err != nil {
		l.Kill()
		return nil, "", fmt.Errorf("launch browser (fallback): %w", err)
	}
	return l, u, nil
}

// Close releases the page, the DevTools connection and the OS browser
// process. Safe to call after partial failure.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.page != nil {
		_ = rod.Try(func() { s.page.MustClose() })
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
}

// Navigate loads url and waits for network near-idle, bounded by the nav
// timeout. A slow page that never settles is not an error; classification
// works off whatever rendered.
func (s *Session) Navigate(url string) error {
	p := s.page.Timeout(s.cfg.navTimeout())
	wait := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	return nil
}

// Find resolves a semantic selector set to the first visible element that
// satisfies one of its rules, in rule order.
func (s *Session) Find(set classify.SelectorSet) (*rod.Element, bool) {
	p := s.page.Timeout(s.cfg.stepTimeout())
	for _, rule := range set {
		els, err := p.Elements(rule.CSS)
		if err != nil {
			continue
		}
		for _, el := range els {
			text, err := el.Text()
			if err != nil || !classify.MatchesRuleText(rule, text) {
				continue
			}
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}
			return el, true
		}
	}
	return nil, false
}

// Has reports whether any rule of the set matches, without needing the
// element itself.
func (s *Session) Has(set classify.SelectorSet) bool {
	_, ok := s.Find(set)
	return ok
}

// CalendarCells reads every calendar day cell off the live page. The element
// slice is parallel to the fact slice so a classified index can be clicked.
func (s *Session) CalendarCells() ([]classify.CalendarCell, []*rod.Element) {
	p := s.page.Timeout(s.cfg.stepTimeout())
	els, err := p.Elements(classify.CalendarCellCSS)
	if err != nil {
		return nil, nil
	}

	cells := make([]classify.CalendarCell, 0, len(els))
	refs := make([]*rod.Element, 0, len(els))
	for _, el := range els {
		var cell classify.CalendarCell
		if v, err := el.Attribute("data-date"); err == nil && v != nil {
			cell.DateAttr = *v
		}
		if cell.DateAttr == "" {
			if v, err := el.Attribute("data-day"); err == nil && v != nil {
				cell.DateAttr = *v
			}
		}
		if v, err := el.Attribute("class"); err == nil && v != nil {
			cell.Class = *v
		}
		if v, err := el.Attribute("disabled"); err == nil && v != nil {
			cell.Disabled = true
		}
		if v, err := el.Attribute("aria-disabled"); err == nil && v != nil && *v == "true" {
			cell.Disabled = true
		}
		if text, err := el.Text(); err == nil {
			cell.Label = text
		}
		cells = append(cells, cell)
		refs = append(refs, el)
	}
	return cells, refs
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(el *rod.Element) error {
	return rod.Try(func() {
		e := el.Timeout(s.cfg.stepTimeout())
		_ = e.ScrollIntoView()
		e.MustClick()
	})
}

// Fill replaces the element's current value with v.
func (s *Session) Fill(el *rod.Element, v string) error {
	return rod.Try(func() {
		e := el.Timeout(s.cfg.stepTimeout())
		_ = e.ScrollIntoView()
		e.MustSelectAllText().MustInput(v)
	})
}

// PageText returns the full visible page text, or "" when the page is mid-
// navigation and the body cannot be read.
func (s *Session) PageText() string {
	var text string
	err := rod.Try(func() {
		body := s.page.Timeout(s.cfg.stepTimeout()).MustElement("body")
		text = body.MustText()
	})
	if err != nil {
		return ""
	}
	return text
}

// Settle pauses so client-side rendering can finish after a navigation or
// click. Rendering frameworks keep laying out after the network goes quiet.
func (s *Session) Settle(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
