// Package marketclock resolves exchange trading sessions. It answers whether
// the market is open at an instant and when it last closed, applying the
// exchange timezone (daylight-saving transitions included), weekends, and a
// holiday/early-close calendar. The session interval is half-open: an instant
// exactly at open is open, exactly at close is closed.
package marketclock

import (
	"fmt"
	"log/slog"
	"time"

	"etfcli/pkg/contracts/domain"
)

// sessionTimeLayout parses session boundary times like "09:30".
const sessionTimeLayout = "15:04"

// lastCloseLookbackDays caps the walk-back when searching for the previous
// session end. Long enough to cross any run of weekends plus holidays.
const lastCloseLookbackDays = 60

// Confidence qualifies a session answer. Unknown means the holiday calendar
// was unavailable and only the weekday/time check answered.
type Confidence string

const (
	ConfidenceExact   Confidence = "exact"
	ConfidenceUnknown Confidence = "unknown"
)

// Clock is the session oracle. It is immutable after construction and safe
// for concurrent use.
type Clock struct {
	loc      *time.Location
	openHH   int
	openMM   int
	closeHH  int
	closeMM  int
	calendar *Calendar
	logger   *slog.Logger
}

// Options configures a Clock.
type Options struct {
	// Timezone is the exchange's IANA zone name, e.g. "America/New_York".
	Timezone string
	// Open and Close bound the regular session in exchange-local HH:MM.
	Open  string
	Close string
	// Calendar supplies holidays and early closes. nil degrades session
	// answers to weekday/time checks with unknown confidence.
	Calendar *Calendar
	Logger   *slog.Logger
}

// New builds a Clock. Timezone and session times are validated here so a
// misconfigured exchange fails at startup, not per request.
func New(opts Options) (*Clock, error) {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load exchange timezone %q: %w", opts.Timezone, err)
	}

	openHH, openMM, err := parseSessionTime(opts.Open)
	if err != nil {
		return nil, fmt.Errorf("parse session open: %w", err)
	}
	closeHH, closeMM, err := parseSessionTime(opts.Close)
	if err != nil {
		return nil, fmt.Errorf("parse session close: %w", err)
	}
	if openHH*60+openMM >= closeHH*60+closeMM {
		return nil, fmt.Errorf("session open %s must precede close %s", opts.Open, opts.Close)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Clock{
		loc:      loc,
		openHH:   openHH,
		openMM:   openMM,
		closeHH:  closeHH,
		closeMM:  closeMM,
		calendar: opts.Calendar,
		logger:   logger.With(slog.String("component", "market_clock")),
	}, nil
}

// IsOpen reports whether the market is in session at t.
func (c *Clock) IsOpen(t time.Time) bool {
	status, _ := c.Status(t)
	return status == domain.MarketOpen
}

// Status resolves the session state at t. The confidence is unknown when no
// calendar is loaded; the open/closed answer then rests on weekday and time
// alone, which still rules out weekends and out-of-session hours.
func (c *Clock) Status(t time.Time) (domain.MarketStatus, Confidence) {
	confidence := ConfidenceExact
	if c.calendar == nil {
		confidence = ConfidenceUnknown
	}

	local := t.In(c.loc)
	if !c.isTradingDay(local) {
		return domain.MarketClosed, confidence
	}

	open := c.openAt(local)
	closeAt := c.closeAt(local)
	if !local.Before(open) && local.Before(closeAt) {
		return domain.MarketOpen, confidence
	}
	return domain.MarketClosed, confidence
}

// LastClose returns the most recent session end at or before t, walking back
// across weekends and holidays and honoring early closes. If the calendar
// declares an implausible run of non-trading days the weekday rule alone
// answers, so the result is always usable.
func (c *Clock) LastClose(t time.Time) time.Time {
	local := t.In(c.loc)

	day := local
	for i := 0; i < lastCloseLookbackDays; i++ {
		if c.isTradingDay(day) {
			closeAt := c.closeAt(day)
			if !closeAt.After(local) {
				return closeAt
			}
		}
		day = day.AddDate(0, 0, -1)
	}

	// Degenerate calendar: fall back to the weekday rule.
	c.logger.Warn("no session close found within lookback, ignoring calendar",
		slog.Time("at", t),
		slog.Int("lookback_days", lastCloseLookbackDays))
	day = local
	for {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			closeAt := time.Date(day.Year(), day.Month(), day.Day(), c.closeHH, c.closeMM, 0, 0, c.loc)
			if !closeAt.After(local) {
				return closeAt
			}
		}
		day = day.AddDate(0, 0, -1)
	}
}

// NextClose returns the first session end after t. Used by the invalidation
// watcher to wake exactly at the close boundary.
func (c *Clock) NextClose(t time.Time) time.Time {
	local := t.In(c.loc)

	day := local
	for i := 0; i < lastCloseLookbackDays; i++ {
		if c.isTradingDay(day) {
			closeAt := c.closeAt(day)
			if closeAt.After(local) {
				return closeAt
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	// Degenerate calendar: next weekday close.
	day = local
	for {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return time.Date(day.Year(), day.Month(), day.Day(), c.closeHH, c.closeMM, 0, 0, c.loc)
		}
	}
}

// Location exposes the exchange timezone for callers formatting local times.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// isTradingDay reports whether the local day has a session at all. A holiday
// is closed regardless of time of day.
func (c *Clock) isTradingDay(local time.Time) bool {
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !c.calendar.IsHoliday(local)
}

// openAt returns the session open instant for the local day.
func (c *Clock) openAt(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), c.openHH, c.openMM, 0, 0, c.loc)
}

// closeAt returns the session end for the local day, honoring a scheduled
// early close.
func (c *Clock) closeAt(local time.Time) time.Time {
	hh, mm := c.closeHH, c.closeMM
	if early, ok := c.calendar.EarlyClose(local); ok {
		if ehh, emm, err := parseSessionTime(early); err == nil {
			hh, mm = ehh, emm
		}
	}
	return time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, c.loc)
}

func parseSessionTime(s string) (hh, mm int, err error) {
	parsed, err := time.Parse(sessionTimeLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid session time %q (want HH:MM): %w", s, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
