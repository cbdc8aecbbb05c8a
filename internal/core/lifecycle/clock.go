// Package lifecycle holds the rules that move a ticket through its life:
// status transitions, SLA arithmetic, billing rate resolution and
// assignment scoring. Nothing here keeps state between calls.
package lifecycle

import "time"

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
