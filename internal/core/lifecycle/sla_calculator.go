package lifecycle

import (
	"math"
	"time"

	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
)

const (
	DefaultBusinessDayStart = 8
	DefaultBusinessDayEnd   = 18
)

// BusinessHours is the working window used for SLA arithmetic: Monday to
// Friday, [StartHour, EndHour) in Location.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// DefaultBusinessHours is 08:00-18:00 in the process local zone.
//
// The zone follows the host process rather than the tenant. That mirrors
// how deadlines were always computed; a per-tenant zone needs a product
// decision before it changes.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		StartHour: DefaultBusinessDayStart,
		EndHour:   DefaultBusinessDayEnd,
		Location:  time.Local,
	}
}

func (b BusinessHours) location() *time.Location {
	if b.Location == nil {
		return time.Local
	}
	return b.Location
}

// SLACalculator computes due dates and breach state.
type SLACalculator struct {
	hours BusinessHours
}

func NewSLACalculator(hours BusinessHours) *SLACalculator {
	if hours.EndHour <= hours.StartHour {
		hours.StartHour, hours.EndHour = DefaultBusinessDayStart, DefaultBusinessDayEnd
	}
	return &SLACalculator{hours: hours}
}

// BusinessHours returns the window the calculator was built with.
func (c *SLACalculator) BusinessHours() BusinessHours {
	return c.hours
}

// ComputeDueDates derives response and resolution deadlines from start.
// Both are measured from start independently.
func (c *SLACalculator) ComputeDueDates(start time.Time, params domain.SLAParameters) (domain.SLADueDates, error) {
	if err := params.Validate(); err != nil {
		return domain.SLADueDates{}, err
	}
	if !params.BusinessHoursOnly {
		return domain.SLADueDates{
			ResponseDue:   start.Add(hoursToDuration(params.ResponseTimeHours)),
			ResolutionDue: start.Add(hoursToDuration(params.ResolutionTimeHours)),
		}, nil
	}
	return domain.SLADueDates{
		ResponseDue:   c.AddBusinessHours(start, params.ResponseTimeHours),
		ResolutionDue: c.AddBusinessHours(start, params.ResolutionTimeHours),
	}, nil
}

// AddBusinessHours walks forward from start consuming hours only inside
// the business window. A start outside the window is first moved to the
// next window opening. The loop runs once per business day consumed.
func (c *SLACalculator) AddBusinessHours(start time.Time, hours float64) time.Time {
	remaining := hoursToDuration(hours)
	current := start.In(c.hours.location())
	if remaining <= 0 {
		return current
	}

	for {
		current = c.nextBusinessMoment(current)
		dayEnd := c.atHour(current, c.hours.EndHour)
		available := dayEnd.Sub(current)
		if remaining <= available {
			return current.Add(remaining)
		}
		remaining -= available
		current = dayEnd
	}
}

// CheckBreach evaluates both SLA dimensions at now. A nil due date never breaches.
func (c *SLACalculator) CheckBreach(responseDue, resolutionDue, firstResponseAt, resolvedAt *time.Time, now time.Time) domain.BreachInfo {
	var info domain.BreachInfo

	info.ResponseBreached, info.ResponseBreachMinutes = evaluateDimension(responseDue, firstResponseAt, now)
	info.ResolutionBreached, info.ResolutionBreachMinutes = evaluateDimension(resolutionDue, resolvedAt, now)

	switch {
	case info.ResponseBreached && info.ResolutionBreached:
		info.BreachType = domain.BreachBoth
		info.BreachMinutes = max(info.ResponseBreachMinutes, info.ResolutionBreachMinutes)
	case info.ResponseBreached:
		info.BreachType = domain.BreachResponse
		info.BreachMinutes = info.ResponseBreachMinutes
	case info.ResolutionBreached:
		info.BreachType = domain.BreachResolution
		info.BreachMinutes = info.ResolutionBreachMinutes
	}
	info.Breached = info.BreachType != domain.BreachNone
	return info
}

func evaluateDimension(due, actual *time.Time, now time.Time) (bool, int) {
	if due == nil {
		return false, 0
	}
	at := now
	if actual != nil {
		at = *actual
	}
	if !at.After(*due) {
		return false, 0
	}
	return true, int(math.Floor(at.Sub(*due).Minutes()))
}

// CalculateBusinessHoursBetween sums the overlap of [start, end) with the
// business window on each weekday. It returns 0 when start is not before end.
func (c *SLACalculator) CalculateBusinessHoursBetween(start, end time.Time) float64 {
	if !start.Before(end) {
		return 0
	}
	loc := c.hours.location()
	start, end = start.In(loc), end.In(loc)

	var total time.Duration
	day := c.atHour(start, 0)
	for !day.After(end) {
		if isWeekday(day) {
			windowStart := c.atHour(day, c.hours.StartHour)
			windowEnd := c.atHour(day, c.hours.EndHour)
			from := laterOf(windowStart, start)
			to := earlierOf(windowEnd, end)
			if to.After(from) {
				total += to.Sub(from)
			}
		}
		day = c.atHour(day.AddDate(0, 0, 1), 0)
	}
	return total.Hours()
}

// IsBusinessHours reports whether t falls on a weekday inside
// [StartHour, EndHour). The closing hour itself is outside.
func (c *SLACalculator) IsBusinessHours(t time.Time) bool {
	local := t.In(c.hours.location())
	if !isWeekday(local) {
		return false
	}
	h := local.Hour()
	return h >= c.hours.StartHour && h < c.hours.EndHour
}

// nextBusinessMoment returns t when it is inside the window, otherwise the
// next window opening.
func (c *SLACalculator) nextBusinessMoment(t time.Time) time.Time {
	opening := c.atHour(t, c.hours.StartHour)
	closing := c.atHour(t, c.hours.EndHour)

	switch {
	case !isWeekday(t):
		return c.nextOpening(t)
	case t.Before(opening):
		return opening
	case !t.Before(closing):
		return c.nextOpening(t)
	default:
		return t
	}
}

// nextOpening is the window start on the first weekday after t's date.
func (c *SLACalculator) nextOpening(t time.Time) time.Time {
	day := c.atHour(t.AddDate(0, 0, 1), c.hours.StartHour)
	for !isWeekday(day) {
		day = c.atHour(day.AddDate(0, 0, 1), c.hours.StartHour)
	}
	return day
}

func (c *SLACalculator) atHour(t time.Time, hour int) time.Time {
	loc := c.hours.location()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, hour, 0, 0, 0, loc)
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(math.Round(hours * float64(time.Hour)))
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
