package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/caresched/core/timegrid"
)

const sampleYAML = `clients:
  - id: C1
    name: Jane Doe
    needs:
      Speech: 1
    availability:
      Monday: ["09:00-10:00"]
providers:
  - id: P1
    name: Alice Martin
    category: Speech
    availability:
      monday: ["09:00", "09:30"]
timeslots:
  - {id: "1", day: Monday, start: "09:00", end: "09:30"}
  - {id: "2", day: Monday, start: "09:30", end: "10:00"}
`

func TestDecodeDatasetYAML(t *testing.T) {
	ds, err := DecodeDataset(strings.NewReader(sampleYAML), "yaml")
	require.NoError(t, err)
	require.NoError(t, ds.Validate())
	require.Len(t, ds.Timeslots, 2)
	assert.Equal(t, timegrid.Monday, ds.Timeslots[1].Day)
	assert.Equal(t, timegrid.NewClock(9, 30), ds.Timeslots[1].Start)
	assert.Equal(t, 1.0, ds.Clients[0].Needs["Speech"])
	assert.Equal(t, []string{"Speech"}, ds.Categories())

	var buf strings.Builder
	require.NoError(t, WriteDataset(&buf, ds))
	again, err := DecodeDataset(strings.NewReader(buf.String()), "yaml")
	require.NoError(t, err)
	assert.Equal(t, ds, again)
}

func TestDecodeDatasetJSON(t *testing.T) {
	data := `{"timeslots":[{"id":"1","day":"Tuesday","start":"10:00","end":"11:00"}]}`
	ds, err := DecodeDataset(strings.NewReader(data), "json")
	require.NoError(t, err)
	assert.Equal(t, timegrid.Tuesday, ds.Timeslots[0].Day)

	_, err = DecodeDataset(strings.NewReader(`{"timeslots":[{"id":"1","day":"Sunday"}]}`), "json")
	assert.Error(t, err)
	_, err = DecodeDataset(strings.NewReader(""), "toml")
	assert.Error(t, err)
}

func TestDatasetValidate(t *testing.T) {
	ds := Dataset{
		Clients: []Client{{ID: "C1", Name: "a"}, {ID: "C1", Name: "b"}},
	}
	err := ds.Validate()
	if !errors.Is(err, ErrInvalidDataset) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	ds = Dataset{Clients: []Client{{ID: "C1", Name: "a", Needs: map[string]float64{"": 1}}}}
	assert.ErrorIs(t, ds.Validate(), ErrInvalidDataset, "category key is required")

	ds = Dataset{Clients: []Client{{ID: "C1", Name: "a", Needs: map[string]float64{"X": -1}}}}
	assert.NoError(t, ds.Validate(), "negative needs are dropped later, not rejected")

	ds = Dataset{Providers: []Provider{{ID: "P1", Name: "p"}}}
	assert.ErrorIs(t, ds.Validate(), ErrInvalidDataset, "category is required")
}

func TestQuotaPolicy(t *testing.T) {
	cases := []struct {
		policy  QuotaPolicy
		hours   float64
		perHour int
		want    int
		wantErr bool
	}{
		{QuotaReject, 1, 2, 2, false},
		{QuotaReject, 1.5, 2, 3, false},
		{QuotaReject, 1.5, 1, 0, true},
		{QuotaTruncate, 1.5, 1, 1, false},
		{QuotaTruncate, 1.2, 2, 2, false},
		{QuotaRound, 1.5, 1, 2, false},
		{QuotaRound, 1.2, 2, 2, false},
		{QuotaRound, 1.3, 2, 3, false},
		{QuotaTruncate, -1, 2, 0, true},
	}
	for _, c := range cases {
		got, err := c.policy.Units(c.hours, c.perHour)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%s %v: expected error", c.policy, c.hours)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("%s %v: got %d %v want %d", c.policy, c.hours, got, err, c.want)
		}
	}
	_, err := QuotaReject.Units(0.25, 2)
	assert.ErrorIs(t, err, ErrFractionalQuota)

	p, err := ParseQuotaPolicy("")
	require.NoError(t, err)
	assert.Equal(t, QuotaReject, p)
	_, err = ParseQuotaPolicy("ceil")
	assert.Error(t, err)
}

func TestGenerateTimeslots(t *testing.T) {
	g := timegrid.MustGrid("07:00", "18:00", 30*time.Minute)
	slots, err := GenerateTimeslots(g, timegrid.Weekdays, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, slots, 5*22)
	assert.Equal(t, "1", slots[0].ID)
	assert.Equal(t, timegrid.Friday, slots[len(slots)-1].Day)
	assert.Equal(t, timegrid.NewClock(18, 0), slots[len(slots)-1].End)

	hourly, err := GenerateTimeslots(g, []timegrid.Weekday{timegrid.Monday}, time.Hour)
	require.NoError(t, err)
	assert.Len(t, hourly, 11)

	_, err = GenerateTimeslots(g, timegrid.Weekdays, 45*time.Minute)
	assert.ErrorIs(t, err, timegrid.ErrMisaligned)
}

func TestGenerateIsReproducible(t *testing.T) {
	g := timegrid.MustGrid("07:00", "18:00", 30*time.Minute)
	a, err := Generate(g, GenerateOptions{Seed: 42})
	require.NoError(t, err)
	b, err := Generate(g, GenerateOptions{Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.NoError(t, a.Validate())
	assert.Len(t, a.Clients, 10)
	assert.Len(t, a.Providers, 4)
	assert.Equal(t, "Speech Therapist", a.Providers[3].Category)

	for _, c := range a.Clients {
		for cat, h := range c.Needs {
			units, err := QuotaReject.Units(h, g.UnitsPerHour())
			require.NoErrorf(t, err, "%s %s", c.ID, cat)
			assert.GreaterOrEqual(t, units, 0)
		}
	}
}
