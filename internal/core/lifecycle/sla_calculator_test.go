package lifecycle_test

import (
	"testing"
	"time"

	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUTCCalculator() *lifecycle.SLACalculator {
	hours := lifecycle.DefaultBusinessHours()
	hours.Location = time.UTC
	return lifecycle.NewSLACalculator(hours)
}

// 2024-03-08 is a Friday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestSLACalculator_ComputeDueDates(t *testing.T) {
	calc := newUTCCalculator()

	t.Run("24x7 is additive and independent", func(t *testing.T) {
		start := at(8, 23, 30)
		due, err := calc.ComputeDueDates(start, domain.SLAParameters{
			ResponseTimeHours:   1.5,
			ResolutionTimeHours: 30,
		})
		require.NoError(t, err)
		assert.Equal(t, 90*time.Minute, due.ResponseDue.Sub(start))
		assert.Equal(t, 30*time.Hour, due.ResolutionDue.Sub(start))
	})

	t.Run("friday afternoon rolls over the weekend", func(t *testing.T) {
		due, err := calc.ComputeDueDates(at(8, 16, 0), domain.SLAParameters{
			ResponseTimeHours:   1,
			ResolutionTimeHours: 12,
			BusinessHoursOnly:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, at(8, 17, 0), due.ResponseDue)
		assert.Equal(t, at(11, 18, 0), due.ResolutionDue)
	})

	t.Run("resolution is not chained to response", func(t *testing.T) {
		due, err := calc.ComputeDueDates(at(11, 9, 0), domain.SLAParameters{
			ResponseTimeHours:   8,
			ResolutionTimeHours: 8,
			BusinessHoursOnly:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, due.ResponseDue, due.ResolutionDue)
		assert.Equal(t, at(11, 17, 0), due.ResponseDue)
	})

	t.Run("rejects non-positive hours", func(t *testing.T) {
		_, err := calc.ComputeDueDates(at(8, 9, 0), domain.SLAParameters{ResponseTimeHours: 0, ResolutionTimeHours: 4})
		assert.ErrorIs(t, err, apperrors.ErrInvalidSLAParameters)

		_, err = calc.ComputeDueDates(at(8, 9, 0), domain.SLAParameters{ResponseTimeHours: 1, ResolutionTimeHours: -2})
		assert.ErrorIs(t, err, apperrors.ErrInvalidSLAParameters)
	})
}

func TestSLACalculator_AddBusinessHours(t *testing.T) {
	calc := newUTCCalculator()

	tests := []struct {
		name  string
		start time.Time
		hours float64
		want  time.Time
	}{
		{"within the same day", at(11, 9, 0), 2, at(11, 11, 0)},
		{"fills the day exactly", at(11, 8, 0), 10, at(11, 18, 0)},
		{"early morning starts at opening", at(11, 6, 30), 1, at(11, 9, 0)},
		{"after closing starts next morning", at(11, 19, 0), 1, at(12, 9, 0)},
		{"exactly at closing starts next morning", at(11, 18, 0), 0.5, at(12, 8, 30)},
		{"saturday starts monday", at(9, 12, 0), 3, at(11, 11, 0)},
		{"sunday starts monday", at(10, 23, 59), 10, at(11, 18, 0)},
		{"spans several days", at(11, 17, 0), 21, at(13, 18, 0)},
		{"rolls past a full day", at(11, 17, 0), 21.5, at(14, 8, 30)},
		{"partial hours", at(11, 17, 45), 0.5, at(12, 8, 15)},
		{"two full weeks", at(11, 8, 0), 100, at(22, 18, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.AddBusinessHours(tt.start, tt.hours)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSLACalculator_BusinessDueDatesLandInsideWindow(t *testing.T) {
	calc := newUTCCalculator()
	starts := []time.Time{at(8, 16, 0), at(9, 3, 0), at(11, 7, 59), at(13, 18, 0), at(14, 12, 17)}
	durations := []float64{0.25, 1, 4.5, 10, 13, 37.75}

	for _, start := range starts {
		for _, h := range durations {
			due := calc.AddBusinessHours(start, h)
			closing := time.Date(due.Year(), due.Month(), due.Day(), 18, 0, 0, 0, time.UTC)
			assert.True(t, calc.IsBusinessHours(due) || due.Equal(closing),
				"start %s + %.2fh = %s", start, h, due)
			assert.InDelta(t, h, calc.CalculateBusinessHoursBetween(start, due), 1e-9)
		}
	}
}

func TestSLACalculator_CheckBreach(t *testing.T) {
	calc := newUTCCalculator()
	responseDue := at(11, 10, 0)
	resolutionDue := at(11, 14, 0)

	tests := []struct {
		name            string
		firstResponseAt *time.Time
		resolvedAt      *time.Time
		now             time.Time
		wantType        domain.BreachType
		wantMinutes     int
	}{
		{"nothing due yet", nil, nil, at(11, 9, 0), domain.BreachNone, 0},
		{"exactly at due is not a breach", nil, nil, at(11, 10, 0), domain.BreachNone, 0},
		{"response overdue", nil, nil, at(11, 10, 30), domain.BreachResponse, 30},
		{"minutes are floored", nil, nil, at(11, 10, 0).Add(90 * time.Second), domain.BreachResponse, 1},
		{"late response counts after the fact", ptr(at(11, 10, 45)), nil, at(11, 11, 0), domain.BreachResponse, 45},
		{"on-time response, resolution overdue", ptr(at(11, 9, 30)), nil, at(11, 15, 0), domain.BreachResolution, 60},
		{"both reports the larger", nil, nil, at(11, 14, 20), domain.BreachBoth, 260},
		{"resolved in time", ptr(at(11, 9, 0)), ptr(at(11, 13, 0)), at(12, 9, 0), domain.BreachNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := calc.CheckBreach(&responseDue, &resolutionDue, tt.firstResponseAt, tt.resolvedAt, tt.now)
			assert.Equal(t, tt.wantType, info.BreachType)
			assert.Equal(t, tt.wantMinutes, info.BreachMinutes)
			assert.Equal(t, tt.wantType != domain.BreachNone, info.Breached)
		})
	}

	t.Run("nil due dates never breach", func(t *testing.T) {
		info := calc.CheckBreach(nil, nil, nil, nil, at(30, 0, 0))
		assert.False(t, info.Breached)
	})

	t.Run("monotonic in now", func(t *testing.T) {
		first := calc.CheckBreach(&responseDue, &resolutionDue, nil, nil, at(11, 10, 1))
		require.True(t, first.Breached)
		for i := 1; i <= 48; i++ {
			later := calc.CheckBreach(&responseDue, &resolutionDue, nil, nil, at(11, 10, 1).Add(time.Duration(i)*time.Hour))
			assert.True(t, later.Breached)
			assert.GreaterOrEqual(t, later.BreachMinutes, first.BreachMinutes)
		}
	})
}

func TestSLACalculator_CalculateBusinessHoursBetween(t *testing.T) {
	calc := newUTCCalculator()

	tests := []struct {
		name       string
		start, end time.Time
		want       float64
	}{
		{"inverted range", at(11, 12, 0), at(11, 9, 0), 0},
		{"empty range", at(11, 12, 0), at(11, 12, 0), 0},
		{"inside one day", at(11, 9, 0), at(11, 11, 30), 2.5},
		{"clipped to the window", at(11, 6, 0), at(11, 20, 0), 10},
		{"weekend only", at(9, 0, 0), at(10, 23, 0), 0},
		{"friday to monday", at(8, 16, 0), at(11, 9, 15), 3.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.CalculateBusinessHoursBetween(tt.start, tt.end), 1e-9)
		})
	}
}

func TestSLACalculator_IsBusinessHours(t *testing.T) {
	calc := newUTCCalculator()

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"opening", at(11, 8, 0), true},
		{"last minute", at(11, 17, 59), true},
		{"closing is outside", at(11, 18, 0), false},
		{"before opening", at(11, 7, 59), false},
		{"saturday", at(9, 12, 0), false},
		{"sunday", at(10, 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.IsBusinessHours(tt.t))
		})
	}
}

func TestSLACalculator_ConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	calc := lifecycle.NewSLACalculator(lifecycle.BusinessHours{StartHour: 8, EndHour: 18, Location: loc})

	// 06:00 UTC is 08:00 in the configured zone.
	start := time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)
	assert.True(t, calc.IsBusinessHours(start))

	due := calc.AddBusinessHours(start, 10)
	assert.True(t, due.Equal(time.Date(2024, 3, 11, 16, 0, 0, 0, time.UTC)))
}
