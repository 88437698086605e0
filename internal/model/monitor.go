package model

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire format for the target date.
const DateLayout = "2006-01-02"

// MonitorConfig is the immutable input for one monitor run. All five string
// fields must be non-empty; it is validated once at Start and never mid-run.
type MonitorConfig struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	SeasonPassCode string `json:"seasonPassCode"`
	LicensePlate   string `json:"licensePlate"`
	Date           string `json:"date"` // YYYY-MM-DD
	PollIntervalMs int    `json:"pollIntervalMs,omitempty"`
	BrowserPath    string `json:"browserPath,omitempty"`
}

var (
	ErrMissingEmail    = errors.New("email is required")
	ErrMissingPassword = errors.New("password is required")
	ErrMissingPassCode = errors.New("seasonPassCode is required")
	ErrMissingPlate    = errors.New("licensePlate is required")
	ErrMissingDate     = errors.New("date is required")
	ErrBadDate         = errors.New("date must be YYYY-MM-DD")
)

func (c MonitorConfig) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return ErrMissingEmail
	}
	if strings.TrimSpace(c.Password) == "" {
		return ErrMissingPassword
	}
	if strings.TrimSpace(c.SeasonPassCode) == "" {
		return ErrMissingPassCode
	}
	if strings.TrimSpace(c.LicensePlate) == "" {
		return ErrMissingPlate
	}
	if strings.TrimSpace(c.Date) == "" {
		return ErrMissingDate
	}
	if _, err := c.TargetDate(); err != nil {
		return ErrBadDate
	}
	return nil
}

// TargetDate parses the configured date. Calendar date only, no time component.
func (c MonitorConfig) TargetDate() (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(c.Date))
}

type OutcomeKind string

const (
	OutcomeSoldOut        OutcomeKind = "sold_out"
	OutcomeNotFound       OutcomeKind = "not_found"
	OutcomeBooked         OutcomeKind = "booked"
	OutcomeBookingFailed  OutcomeKind = "booking_failed"
	OutcomeTransientError OutcomeKind = "transient_error"
)

// AttemptOutcome is the single terminal result of one booking attempt.
type AttemptOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

func Transient(detail string) AttemptOutcome {
	return AttemptOutcome{Kind: OutcomeTransientError, Detail: detail}
}

type PageState string

const (
	PageNeedsLogin       PageState = "needs_login"
	PageCalendarShowing  PageState = "calendar_showing"
	PageDateSoldOut      PageState = "date_sold_out"
	PageDateBookable     PageState = "date_bookable"
	PageDateAbsent       PageState = "date_absent"
	PageBookingConfirmed PageState = "booking_confirmed"
	PageBookingUncertain PageState = "booking_uncertain"
)

type StatusKind string

const (
	StatusChecking   StatusKind = "checking"
	StatusMonitoring StatusKind = "monitoring"
	StatusAvailable  StatusKind = "available"
	StatusSuccess    StatusKind = "success"
	StatusError      StatusKind = "error"
)

// StatusEvent is one line of the ordered, append-only status stream the
// monitor emits for the UI shell.
type StatusEvent struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
	AtMs    int64      `json:"atMs"`
	RunID   string     `json:"runId,omitempty"`
}

// MonitorState is the controller snapshot served to the UI.
type MonitorState struct {
	Running       bool        `json:"running"`
	Booked        bool        `json:"booked"`
	RunID         string      `json:"runId,omitempty"`
	Date          string      `json:"date,omitempty"`
	LastOutcome   OutcomeKind `json:"lastOutcome,omitempty"`
	LastError     string      `json:"lastError,omitempty"`
	LastAttemptMs int64       `json:"lastAttemptMs,omitempty"`
	StoppedAtMs   int64       `json:"stoppedAtMs,omitempty"`
}
