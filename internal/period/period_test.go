package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	// Thursday.
	now := time.Date(2024, time.March, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		period string
		start  time.Time
		end    time.Time
	}{
		{"current-year", date(2024, 1, 1), date(2025, 1, 1)},
		{"previous-year", date(2023, 1, 1), date(2024, 1, 1)},
		{"current-month", date(2024, 3, 1), date(2024, 4, 1)},
		{"previous-month", date(2024, 2, 1), date(2024, 3, 1)},
		{"current-week", date(2024, 3, 11), date(2024, 3, 18)},
		{"previous-week", date(2024, 3, 4), date(2024, 3, 11)},
		{"previous-week+1", date(2024, 3, 5), date(2024, 3, 12)},
		{"previous-week-2", date(2024, 3, 2), date(2024, 3, 9)},
		{"current-day", date(2024, 3, 14), date(2024, 3, 15)},
		{"today", date(2024, 3, 14), date(2024, 3, 15)},
		{"previous-day", date(2024, 3, 13), date(2024, 3, 14)},
		{"yesterday", date(2024, 3, 13), date(2024, 3, 14)},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			w, err := Resolve(tt.period, now)
			require.NoError(t, err)
			require.NotNil(t, w.Start)
			require.NotNil(t, w.End)
			assert.Equal(t, tt.start, *w.Start)
			assert.Equal(t, tt.end, *w.End)
		})
	}
}

func TestResolveYearBoundaries(t *testing.T) {
	// Sunday 1 January: the week started on the previous Monday.
	now := time.Date(2023, time.January, 1, 8, 0, 0, 0, time.UTC)

	w, err := Resolve("previous-month", now)
	require.NoError(t, err)
	assert.Equal(t, date(2022, 12, 1), *w.Start)
	assert.Equal(t, date(2023, 1, 1), *w.End)

	w, err = Resolve("current-week", now)
	require.NoError(t, err)
	assert.Equal(t, date(2022, 12, 26), *w.Start)
}

func TestResolveConvertsToUTC(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	// Still 13 March in UTC.
	now := time.Date(2024, time.March, 14, 0, 30, 0, 0, cet)

	w, err := Resolve("today", now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 13), *w.Start)
}

func TestResolveInvalid(t *testing.T) {
	for _, name := range []string{"", "next-week", "previous-week+", "previous-weekly"} {
		_, err := Resolve(name, time.Now())
		assert.ErrorIs(t, err, ErrInvalidPeriod, name)
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("starttime", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 1), got)

	got, err = ParseTime("starttime", "2024-03-01T10:00:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), got)

	_, err = ParseTime("endtime", "the day after tomorrow")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTime)
	assert.Contains(t, err.Error(), "endtime")
}

func TestWindow(t *testing.T) {
	now := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)

	w, err := Window("", "", "", now)
	require.NoError(t, err)
	assert.Nil(t, w.Start)
	assert.Nil(t, w.End)

	w, err = Window("", "2024-01-01", "", now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 1), *w.Start)
	assert.Nil(t, w.End)

	// A period wins over explicit times.
	w, err = Window("yesterday", "2020-01-01", "2020-02-01", now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 13), *w.Start)

	_, err = Window("", "2024-02-01", "2024-01-01", now)
	assert.ErrorIs(t, err, ErrInvalidTime)
}
