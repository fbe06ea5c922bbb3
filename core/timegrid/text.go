package timegrid

import (
	"strconv"
	"strings"
)

// ParseAvailabilityText reads lines of the form
//
//	Monday: 09:00, 10:00, 14:00
//
// where each time names the whole hour starting there. Only exact HH:00
// values whose hour fits inside the operating window are kept; lines without
// a known weekday and unparseable times are skipped silently. The result is
// the raw shape consumed by NewIndex.
func ParseAvailabilityText(text string, g Grid) map[string][]string {
	out := make(map[string][]string)
	for _, line := range strings.Split(text, "\n") {
		label, times, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		day, ok := ParseWeekday(label)
		if !ok {
			continue
		}
		seen := make(map[int]bool)
		var hours []string
		for _, t := range strings.Split(times, ",") {
			h, ok := wholeHour(strings.TrimSpace(t))
			if !ok || seen[h] {
				continue
			}
			start, end := NewClock(h, 0), NewClock(h+1, 0)
			if start < g.Open() || end > g.Close() {
				continue
			}
			seen[h] = true
			hours = append(hours, start.String()+"-"+end.String())
		}
		if len(hours) > 0 {
			out[day.String()] = append(out[day.String()], hours...)
		}
	}
	return out
}

// wholeHour accepts "HH:00" with a two digit hour.
func wholeHour(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' || s[3:] != "00" {
		return 0, false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
