package timegrid

import (
	"fmt"
	"sort"
	"strings"
)

// Issue describes an availability entry that was dropped while indexing.
type Issue struct {
	Day    string
	Entry  string
	Reason string
}

func (i Issue) String() string {
	if i.Entry == "" {
		return fmt.Sprintf("%s: %s", i.Day, i.Reason)
	}
	return fmt.Sprintf("%s %q: %s", i.Day, i.Entry, i.Reason)
}

// Index holds per-weekday unit membership for one person. Membership is a
// bitmap addressed by unit index.
type Index struct {
	grid Grid
	days map[Weekday][]bool
}

// NewIndex normalises raw availability keyed by weekday label. Entries are
// either a unit start ("09:30") or an aligned range ("09:00-11:00").
// Unknown weekday labels and malformed entries are dropped and reported;
// a missing or empty weekday means unavailable that day.
func NewIndex(g Grid, raw map[string][]string) (*Index, []Issue) {
	x := &Index{grid: g, days: make(map[Weekday][]bool)}
	var issues []Issue

	labels := make([]string, 0, len(raw))
	for k := range raw {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	for _, label := range labels {
		day, ok := ParseWeekday(label)
		if !ok {
			issues = append(issues, Issue{Day: label, Reason: "unknown weekday"})
			continue
		}
		for _, entry := range raw[label] {
			if err := x.addEntry(day, entry); err != nil {
				issues = append(issues, Issue{Day: label, Entry: entry, Reason: err.Error()})
			}
		}
	}
	return x, issues
}

func (x *Index) addEntry(day Weekday, entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return fmt.Errorf("empty entry")
	}
	if from, to, isRange := strings.Cut(entry, "-"); isRange {
		start, err := ParseClock(from)
		if err != nil {
			return err
		}
		end, err := ParseClock(to)
		if err != nil {
			return err
		}
		if err := x.grid.CheckSpan(start, end); err != nil {
			return err
		}
		for _, u := range x.grid.Cover(start, end) {
			x.Add(day, u)
		}
		return nil
	}
	c, err := ParseClock(entry)
	if err != nil {
		return err
	}
	u, ok := x.grid.UnitAt(c)
	if !ok {
		return fmt.Errorf("%s is not a unit start of the grid", c)
	}
	x.Add(day, u)
	return nil
}

// Add marks u available on day. Units not belonging to the grid are ignored.
func (x *Index) Add(day Weekday, u Unit) {
	if !day.Valid() || u.Index < 0 || u.Index >= x.grid.Len() {
		return
	}
	bits := x.days[day]
	if bits == nil {
		bits = make([]bool, x.grid.Len())
		x.days[day] = bits
	}
	bits[u.Index] = true
}

// Grid returns the grid the index was built on.
func (x *Index) Grid() Grid { return x.grid }

// Contains reports whether u is available on day.
func (x *Index) Contains(day Weekday, u Unit) bool {
	if x == nil || u.Index < 0 {
		return false
	}
	bits := x.days[day]
	return u.Index < len(bits) && bits[u.Index]
}

// ContainsAll reports whether every unit is available on day. An empty
// cover is never contained.
func (x *Index) ContainsAll(day Weekday, units []Unit) bool {
	if len(units) == 0 {
		return false
	}
	for _, u := range units {
		if !x.Contains(day, u) {
			return false
		}
	}
	return true
}

// HasDay reports whether any unit is available on day.
func (x *Index) HasDay(day Weekday) bool {
	if x == nil {
		return false
	}
	for _, b := range x.days[day] {
		if b {
			return true
		}
	}
	return false
}

// Units lists the available units of day in grid order.
func (x *Index) Units(day Weekday) []Unit {
	if x == nil {
		return nil
	}
	var out []Unit
	for i, b := range x.days[day] {
		if b {
			out = append(out, x.grid.unit(i))
		}
	}
	return out
}

// Count is the total number of available units over the week.
func (x *Index) Count() int {
	n := 0
	for _, d := range Weekdays {
		n += len(x.Units(d))
	}
	return n
}

// Raw renders the index back into contiguous ranges per weekday, the inverse
// of NewIndex.
func (x *Index) Raw() map[string][]string {
	out := make(map[string][]string)
	for _, d := range Weekdays {
		units := x.Units(d)
		for i := 0; i < len(units); {
			j := i
			for j+1 < len(units) && units[j+1].Index == units[j].Index+1 {
				j++
			}
			out[d.String()] = append(out[d.String()], units[i].Start.String()+"-"+units[j].End.String())
			i = j + 1
		}
	}
	return out
}
