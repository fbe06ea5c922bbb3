package timegrid

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day in minutes since midnight.
type Clock int

// NewClock returns the clock time h:m.
func NewClock(h, m int) Clock { return Clock(h*60 + m) }

// ParseClock parses "HH:MM" (a single-digit hour is accepted).
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return NewClock(h, m), nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// Add returns c shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
