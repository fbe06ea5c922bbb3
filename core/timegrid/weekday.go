package timegrid

import (
	"fmt"
	"strings"
)

// Weekday is one of the five scheduling days.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
)

// Weekdays lists the scheduling days in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// ParseWeekday accepts full English day names and three letter abbreviations,
// case-insensitively. Weekend days and anything else are rejected.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	for _, d := range Weekdays {
		name := strings.ToLower(weekdayNames[d])
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}

// Valid reports whether d is Monday through Friday.
func (d Weekday) Valid() bool { return d >= Monday && d <= Friday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	v, ok := ParseWeekday(string(b))
	if !ok {
		return fmt.Errorf("unknown weekday %q", string(b))
	}
	*d = v
	return nil
}
