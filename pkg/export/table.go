// Package export renders schedules as per-client weekly tables in text, CSV,
// JSON and PDF form.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/timegrid"
)

// FreeCell marks an interval without consultation.
const FreeCell = "Free"

// Table is a weekly grid: one row per distinct timeslot interval, one column
// per weekday.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// CellLabel formats the provider shown in an occupied cell.
type CellLabel func(p model.Provider) string

// WithInitials renders "Name (Initials)" where the initials are the capital
// letters of the category.
func WithInitials(p model.Provider) string { return fmt.Sprintf("%s (%s)", p.Name, Initials(p.Category)) }

// WithCategory renders "Name (Category)".
func WithCategory(p model.Provider) string { return fmt.Sprintf("%s (%s)", p.Name, p.Category) }

// Initials returns the upper-case letters of s.
func Initials(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type interval struct{ start, end timegrid.Clock }

func (iv interval) String() string { return iv.start.String() + " - " + iv.end.String() }

func intervals(slots []model.Timeslot) []interval {
	seen := make(map[interval]bool)
	var out []interval
	for _, t := range slots {
		iv := interval{t.Start, t.End}
		if !seen[iv] {
			seen[iv] = true
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end < out[j].end
	})
	return out
}

// ScheduledClients returns the clients with at least one consultation,
// ordered by ID.
func ScheduledClients(ds model.Dataset, s *model.Schedule) []model.Client {
	var out []model.Client
	for _, c := range ds.Clients {
		if len(s.ForClient(c.ID)) > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClientTable builds the weekly table of one client.
func ClientTable(ds model.Dataset, s *model.Schedule, c model.Client, label CellLabel) Table {
	ivs := intervals(ds.Timeslots)
	row := make(map[interval]int, len(ivs))
	t := Table{Title: "Schedule for " + c.Name, Headers: []string{"Time"}}
	for _, d := range timegrid.Weekdays {
		t.Headers = append(t.Headers, d.String())
	}
	for i, iv := range ivs {
		row[iv] = i
		r := []string{iv.String()}
		for range timegrid.Weekdays {
			r = append(r, FreeCell)
		}
		t.Rows = append(t.Rows, r)
	}

	slots := ds.TimeslotByID()
	providers := make(map[string]model.Provider, len(ds.Providers))
	for _, p := range ds.Providers {
		providers[p.ID] = p
	}
	for _, con := range s.ForClient(c.ID) {
		ts, ok := slots[con.TimeslotID]
		if !ok || !ts.Day.Valid() {
			continue
		}
		t.Rows[row[interval{ts.Start, ts.End}]][int(ts.Day)] = label(providers[con.ProviderID])
	}
	return t
}

// ClientTables builds one table per scheduled client.
func ClientTables(ds model.Dataset, s *model.Schedule, label CellLabel) []Table {
	var out []Table
	for _, c := range ScheduledClients(ds, s) {
		out = append(out, ClientTable(ds, s, c, label))
	}
	return out
}

const (
	timeWidth = 12
	dayWidth  = 20
)

// RenderTable writes t as a fixed-width text table.
func RenderTable(w io.Writer, t Table) error {
	if t.Title != "" {
		if _, err := fmt.Fprintf(w, "\n%s:\n", t.Title); err != nil {
			return err
		}
	}
	if err := renderRow(w, t.Headers); err != nil {
		return err
	}
	width := timeWidth + (dayWidth+2)*(len(t.Headers)-1)
	if _, err := fmt.Fprintln(w, strings.Repeat("-", width)); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := renderRow(w, r); err != nil {
			return err
		}
	}
	return nil
}

func renderRow(w io.Writer, cells []string) error {
	padded := make([]string, len(cells))
	for i, c := range cells {
		n := dayWidth
		if i == 0 {
			n = timeWidth
		}
		padded[i] = fmt.Sprintf("%-*s", n, c)
	}
	_, err := fmt.Fprintln(w, strings.Join(padded, " | "))
	return err
}

// RenderSchedule writes the table of every scheduled client, or a notice
// when there is no schedule.
func RenderSchedule(w io.Writer, ds model.Dataset, s *model.Schedule) error {
	if s == nil {
		_, err := fmt.Fprintln(w, "No schedule could be created.")
		return err
	}
	for _, t := range ClientTables(ds, s, WithInitials) {
		if err := RenderTable(w, t); err != nil {
			return err
		}
	}
	return nil
}

// RenderConsultations lists each scheduled client's consultations per
// weekday, "Free" for days without any.
func RenderConsultations(w io.Writer, ds model.Dataset, s *model.Schedule) error {
	if s == nil {
		_, err := fmt.Fprintln(w, "No schedule could be created.")
		return err
	}
	slots := ds.TimeslotByID()
	providers := make(map[string]model.Provider, len(ds.Providers))
	for _, p := range ds.Providers {
		providers[p.ID] = p
	}
	for _, c := range ScheduledClients(ds, s) {
		if _, err := fmt.Fprintf(w, "\n%s consultations:\n", c.Name); err != nil {
			return err
		}
		byDay := make(map[timegrid.Weekday][]model.Timeslot)
		names := make(map[string]string)
		for _, con := range s.ForClient(c.ID) {
			ts := slots[con.TimeslotID]
			byDay[ts.Day] = append(byDay[ts.Day], ts)
			names[ts.ID] = providers[con.ProviderID].Name
		}
		for _, d := range timegrid.Weekdays {
			list := byDay[d]
			if len(list) == 0 {
				if _, err := fmt.Fprintf(w, "%s - %s\n", d, FreeCell); err != nil {
					return err
				}
				continue
			}
			sort.Slice(list, func(i, j int) bool { return list[i].Start < list[j].Start })
			for _, ts := range list {
				if _, err := fmt.Fprintf(w, "%s - %s - %s - %s\n", d, names[ts.ID], ts.Start, ts.End); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
