// =============================================================================
// Ticket Ledger Export - Period Resolution
// =============================================================================
//
// This package turns the --period keyword or the free-form --starttime and
// --endtime values into a half-open export window. All periods are computed
// in UTC relative to an injected "now", so results are reproducible in tests.
//
// SUPPORTED PERIODS:
//   current-year, previous-year
//   current-month, previous-month
//   current-week, previous-week, previous-week+N, previous-week-N
//   current-day (today), previous-day (yesterday)
//
// Weeks start on Monday. The +N/-N suffix shifts both bounds of the previous
// week by N days.
//
// =============================================================================

package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

var (
	// ErrInvalidPeriod is returned for unknown period keywords.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidTime is returned when a start or end time cannot be parsed.
	ErrInvalidTime = errors.New("invalid time")
)

var previousWeekPattern = regexp.MustCompile(`^previous-week([+-]\d+)?$`)

// Names lists the supported period keywords for help texts.
var Names = []string{
	"current-year", "previous-year",
	"current-month", "previous-month",
	"current-week", "previous-week", "previous-week[±days]",
	"current-day", "today",
	"previous-day", "yesterday",
}

// Resolve returns the window of a period keyword.
func Resolve(name string, now time.Time) (types.Window, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Weekday counts from Sunday; shift so that Monday is 0.
	thisMonday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))

	var start, end time.Time

	switch name = strings.TrimSpace(name); name {
	case "current-year":
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0)

	case "previous-year":
		start = time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0)

	case "current-month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)

	case "previous-month":
		start = time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)

	case "current-week":
		start = thisMonday
		end = start.AddDate(0, 0, 7)

	case "current-day", "today":
		start = today
		end = start.AddDate(0, 0, 1)

	case "previous-day", "yesterday":
		start = today.AddDate(0, 0, -1)
		end = today

	default:
		match := previousWeekPattern.FindStringSubmatch(name)
		if match == nil {
			return types.Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, name)
		}

		start = thisMonday.AddDate(0, 0, -7)
		end = thisMonday

		if match[1] != "" {
			offset, err := strconv.Atoi(match[1])
			if err != nil {
				return types.Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidPeriod, name, err)
			}
			start = start.AddDate(0, 0, offset)
			end = end.AddDate(0, 0, offset)
		}
	}

	return types.NewWindow(start, end), nil
}

// ParseTime parses a free-form time value. Values without a zone are taken
// as UTC. field names the option in error messages.
func ParseTime(field, value string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: error parsing %s: %s", ErrInvalidTime, field, value)
	}
	return t.UTC(), nil
}

// Window builds the export window from the command line values. A period
// takes precedence over explicit start and end times. Empty values leave the
// corresponding bound open.
//
// PARAMETERS:
//   - periodName: a keyword accepted by Resolve, or ""
//   - start, end: free-form times accepted by ParseTime, or ""
//   - now: the reference time for relative periods
func Window(periodName, start, end string, now time.Time) (types.Window, error) {
	if periodName != "" {
		return Resolve(periodName, now)
	}

	var window types.Window

	if start != "" {
		t, err := ParseTime("starttime", start)
		if err != nil {
			return types.Window{}, err
		}
		window.Start = &t
	}

	if end != "" {
		t, err := ParseTime("endtime", end)
		if err != nil {
			return types.Window{}, err
		}
		window.End = &t
	}

	if window.Start != nil && window.End != nil && !window.Start.Before(*window.End) {
		return types.Window{}, fmt.Errorf("%w: starttime %s is not before endtime %s",
			ErrInvalidTime, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}

	return window, nil
}
