package marketclock

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// dateLayout is the calendar's date key format, interpreted in the exchange
// timezone.
const dateLayout = "2006-01-02"

// Calendar supplies full-day holidays and shortened sessions. A nil *Calendar
// means the calendar collaborator is unavailable; the clock then degrades to
// weekday/time checks with unknown confidence.
type Calendar struct {
	holidays    map[string]struct{}
	earlyCloses map[string]string
}

// calendarFile is the YAML shape of an on-disk calendar.
type calendarFile struct {
	Holidays    []string          `yaml:"holidays"`
	EarlyCloses map[string]string `yaml:"early_closes"`
}

// NewCalendar builds a calendar from explicit holiday dates (YYYY-MM-DD) and
// early-close overrides (date -> HH:MM close time).
func NewCalendar(holidays []string, earlyCloses map[string]string) (*Calendar, error) {
	cal := &Calendar{
		holidays:    make(map[string]struct{}, len(holidays)),
		earlyCloses: make(map[string]string, len(earlyCloses)),
	}

	for _, h := range holidays {
		if _, err := time.Parse(dateLayout, h); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", h, err)
		}
		cal.holidays[h] = struct{}{}
	}

	for date, closeAt := range earlyCloses {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid early-close date %q: %w", date, err)
		}
		if _, err := time.Parse(sessionTimeLayout, closeAt); err != nil {
			return nil, fmt.Errorf("invalid early-close time %q for %s: %w", closeAt, date, err)
		}
		cal.earlyCloses[date] = closeAt
	}

	return cal, nil
}

// LoadCalendarFile reads a YAML calendar (holidays + early closes) from disk.
func LoadCalendarFile(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}

	var cf calendarFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse calendar file %s: %w", path, err)
	}

	return NewCalendar(cf.Holidays, cf.EarlyCloses)
}

// BuildCalendar assembles the calendar from a file when one is configured,
// falling back to the inline lists. Failures degrade to a nil calendar (the
// clock keeps answering with unknown confidence) instead of aborting startup.
func BuildCalendar(file string, holidays []string, earlyCloses map[string]string, logger *slog.Logger) *Calendar {
	if file != "" {
		cal, err := LoadCalendarFile(file)
		if err == nil {
			logger.Info("market calendar loaded",
				slog.String("file", file),
				slog.Int("holidays", len(cal.holidays)),
				slog.Int("early_closes", len(cal.earlyCloses)))
			return cal
		}
		logger.Warn("market calendar file unavailable, sessions degrade to weekday checks",
			slog.String("file", file),
			slog.String("error", err.Error()))
		return nil
	}

	cal, err := NewCalendar(holidays, earlyCloses)
	if err != nil {
		logger.Warn("inline market calendar invalid, sessions degrade to weekday checks",
			slog.String("error", err.Error()))
		return nil
	}
	return cal
}

// IsHoliday reports whether the given local day is a full-day market holiday.
func (c *Calendar) IsHoliday(day time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[day.Format(dateLayout)]
	return ok
}

// EarlyClose returns the shortened-session close time for the given local
// day, if one is scheduled.
func (c *Calendar) EarlyClose(day time.Time) (string, bool) {
	if c == nil {
		return "", false
	}
	closeAt, ok := c.earlyCloses[day.Format(dateLayout)]
	return closeAt, ok
}
