package timegrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndex(t *testing.T) {
	g := MustGrid("07:00", "19:00", 30*time.Minute)
	x, issues := NewIndex(g, map[string][]string{
		"Monday":   {"09:00", "09:30"},
		"tuesday":  {"10:00-12:00"},
		"Saturday": {"09:00"},
		"Friday":   {"9am", "09:15", "18:00-20:00"},
	})
	require.Len(t, issues, 4)
	assert.Equal(t, "Saturday", issues[3].Day)

	nine, _ := g.UnitAt(NewClock(9, 0))
	half, _ := g.UnitAt(NewClock(9, 30))
	assert.True(t, x.Contains(Monday, nine))
	assert.True(t, x.ContainsAll(Monday, g.Cover(NewClock(9, 0), NewClock(10, 0))))
	assert.False(t, x.ContainsAll(Monday, g.Cover(NewClock(9, 0), NewClock(10, 30))))
	assert.Len(t, x.Units(Tuesday), 4)
	assert.True(t, x.Contains(Monday, half))
	assert.False(t, x.Contains(Wednesday, nine))
	assert.False(t, x.HasDay(Friday))
	assert.Equal(t, 6, x.Count())
}

func TestIndexEmptyAndPartial(t *testing.T) {
	g := MustGrid("07:00", "19:00", 30*time.Minute)
	x, issues := NewIndex(g, nil)
	assert.Empty(t, issues)
	assert.False(t, x.HasDay(Monday))
	assert.False(t, x.ContainsAll(Monday, nil))

	x, _ = NewIndex(g, map[string][]string{"Monday": {"09:00"}, "Tuesday": {}})
	// partial overlap counts as unavailable
	assert.False(t, x.ContainsAll(Monday, g.Cover(NewClock(9, 0), NewClock(10, 0))))
	assert.False(t, x.HasDay(Tuesday))
}

func TestIndexRawRoundTrip(t *testing.T) {
	g := MustGrid("07:00", "19:00", 30*time.Minute)
	x, _ := NewIndex(g, map[string][]string{"Monday": {"09:00", "09:30", "11:00"}})
	raw := x.Raw()
	assert.Equal(t, []string{"09:00-10:00", "11:00-11:30"}, raw["Monday"])
	y, issues := NewIndex(g, raw)
	assert.Empty(t, issues)
	assert.Equal(t, x.Units(Monday), y.Units(Monday))
}

func TestParseAvailabilityText(t *testing.T) {
	g := MustGrid("07:00", "18:00", 30*time.Minute)
	text := "Monday: 09:00, 10:00, 09:00\n" +
		"Funday: 09:00\n" +
		"Tuesday: 9:00, 10:30, 17:00, 18:00, 06:00, xx\n" +
		"garbage line\n" +
		"Wednesday:\n"
	raw := ParseAvailabilityText(text, g)
	assert.Equal(t, []string{"09:00-10:00", "10:00-11:00"}, raw["Monday"])
	assert.Equal(t, []string{"17:00-18:00"}, raw["Tuesday"])
	_, ok := raw["Wednesday"]
	assert.False(t, ok)
	assert.Len(t, raw, 2)

	x, issues := NewIndex(g, raw)
	assert.Empty(t, issues)
	assert.Len(t, x.Units(Monday), 4)
}
