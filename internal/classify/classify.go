// Package classify decides which semantic state the reservation page is in.
// It never touches the browser: callers extract facts from the live page and
// the functions here match them against the declarative tables below, so the
// site's markup fragility stays behind one reviewable data table.
package classify

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/clawdshartavenger/alta-parking-app/internal/model"
)

// Rule matches elements by CSS plus an optional lowercase substring the
// visible text must contain. A SelectorSet is tried in order; the first rule
// that yields an element wins.
type Rule struct {
	CSS  string
	Text string
}

type SelectorSet []Rule

var LoginAffordances = SelectorSet{
	{CSS: `button`, Text: "log in"},
	{CSS: `button`, Text: "sign in"},
	{CSS: `a`, Text: "log in"},
	{CSS: `a`, Text: "sign in"},
	{CSS: `button`, Text: "login"},
	{CSS: `a`, Text: "login"},
}

var EmailInputs = SelectorSet{
	{CSS: `input[type="email"]`},
	{CSS: `input[name*="email" i]`},
	{CSS: `input[id*="email" i]`},
}

var PasswordInputs = SelectorSet{
	{CSS: `input[type="password"]`},
	{CSS: `input[name*="password" i]`},
}

var LoginSubmits = SelectorSet{
	{CSS: `button[type="submit"]`},
	{CSS: `input[type="submit"]`},
	{CSS: `button`, Text: "log in"},
	{CSS: `button`, Text: "sign in"},
	{CSS: `button`, Text: "continue"},
}

// CalendarCellCSS is the union query for calendar day cells.
const CalendarCellCSS = `[data-date], [data-day], td[role="gridcell"], .calendar-day, [class*="CalendarDay" i], [class*="day-cell" i]`

var NextMonthAffordances = SelectorSet{
	{CSS: `[aria-label*="next month" i]`},
	{CSS: `[aria-label*="next" i]`},
	{CSS: `button`, Text: "next"},
	{CSS: `a`, Text: "next"},
	{CSS: `[class*="next" i]`},
}

var BookingAffordances = SelectorSet{
	{CSS: `button`, Text: "reserve"},
	{CSS: `a`, Text: "reserve"},
	{CSS: `button`, Text: "book"},
	{CSS: `a`, Text: "book"},
	{CSS: `button`, Text: "add to cart"},
	{CSS: `button`, Text: "select"},
	{CSS: `button`, Text: "purchase"},
}

var SeasonPassInputs = SelectorSet{
	{CSS: `input[name*="pass" i]`},
	{CSS: `input[id*="pass" i]:not([type="password"])`},
	{CSS: `input[placeholder*="pass" i]:not([type="password"])`},
	{CSS: `input[name*="code" i]`},
}

var LicensePlateInputs = SelectorSet{
	{CSS: `input[name*="plate" i]`},
	{CSS: `input[id*="plate" i]`},
	{CSS: `input[placeholder*="plate" i]`},
	{CSS: `input[name*="vehicle" i]`},
}

var ConfirmAffordances = SelectorSet{
	{CSS: `button`, Text: "confirm"},
	{CSS: `button`, Text: "complete"},
	{CSS: `button`, Text: "submit"},
	{CSS: `button`, Text: "checkout"},
	{CSS: `button[type="submit"]`},
	{CSS: `input[type="submit"]`},
}

// soldOutPhrases are matched case-insensitively as substrings; one hit is
// enough and short-circuits the rest.
var soldOutPhrases = []string{
	"sold out",
	"sold-out",
	"soldout",
	"no spots available",
	"no parking available",
	"fully booked",
	"unavailable",
	"waitlist",
}

// confirmationPhrases are checked in order against the post-submit page text.
var confirmationPhrases = []string{
	"reservation is confirmed",
	"reservation confirmed",
	"booking confirmed",
	"successfully booked",
	"successfully reserved",
	"confirmation number",
	"thank you for your reservation",
	"your reservation is complete",
	"success",
}

// unavailableClassMarkers flag a matched calendar cell as not bookable when
// they appear in its class list.
var unavailableClassMarkers = []string{
	"disabled",
	"unavailable",
	"sold",
	"blocked",
	"soldout",
	"full",
}

// CalendarCell is the fact sheet for one day cell as read off the live page.
type CalendarCell struct {
	DateAttr string // date-identifying attribute, ISO form when present
	Label    string // visible text
	Class    string
	Disabled bool // a disabled / aria-disabled attribute was present
}

/// LoginState classifies the landing page from two facts: whether an email
// input is visible and whether a login affordance is. Either one means the
// session is not signed in yet.
func LoginState(hasEmailInput, hasLoginAffordance bool) model.PageState {
	if hasEmailInput || hasLoginAffordance {
		return model.PageNeedsLogin
	}
	return model.PageCalendarShowing
}

// SoldOutText reports whether free text anywhere on the page says the date
// cannot be booked.
func SoldOutText(s string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, phrase := range soldOutPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func cellUnavailable(c CalendarCell) bool {
	if c.Disabled {
		return true
	}
	class := strings.ToLower(c.Class)
	for _, marker := range unavailableClassMarkers {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

// DateState locates the target date among the calendar cells and classifies
// it. The returned index is the matched cell, or -1 for PageDateAbsent.
//
// Lookup is two-stage: an exact match on the ISO date attribute first, then a
// fallback scan over cells whose visible text equals the day-of-month as a
// whole token (so day 1 never matches a cell showing 12).
func DateState(cells []CalendarCell, target time.Time) (model.PageState, int) {
	iso := target.Format(model.DateLayout)
	for i, c := range cells {
		if c.DateAttr == iso {
			return availability(c), i
		}
	}

	day := strconv.Itoa(target.Day())
	for i, c := range cells {
		if hasWholeToken(c.Label, day) {
			return availability(c), i
		}
	}
	return model.PageDateAbsent, -1
}

func availability(c CalendarCell) model.PageState {
	if cellUnavailable(c) {
		return model.PageDateSoldOut
	}
	return model.PageDateBookable
}

// hasWholeToken reports whether want appears in s as a standalone numeric
// token. "1" matches "1" and "Mar 1" but not "12" or "21".
func hasWholeToken(s, want string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

// ConfirmationState classifies the page after the confirm click. Anything
// not positively recognized as success stays uncertain; a false negative is
// safer than silently assuming the booking went through.
func ConfirmationState(pageText string) model.PageState {
	lower := strings.ToLower(pageText)
	for _, phrase := range confirmationPhrases {
		if strings.Contains(lower, phrase) {
			return model.PageBookingConfirmed
		}
	}
	return model.PageBookingUncertain
}

// MatchesRuleText reports whether the element text satisfies a rule's text
// constraint. Used by the browser driver when resolving a SelectorSet.
func MatchesRuleText(rule Rule, elementText string) bool {
	if rule.Text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(elementText), rule.Text)
}
