package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSetPage = `<html><body>
<h1 class="set-title">Live at Warehouse</h1>
<time class="event-date">2026-03-01</time>
<div class="venue-name">Warehouse District</div>
<ol class="tracklist">
  <li class="tracklist-entry"><span class="cue-time">00:00</span><span class="track-citation">Above &amp; Beyond - Sun &amp; Moon</span></li>
  <li class="tracklist-entry"><span class="cue-time">04:32</span><span class="track-citation">ID - ID</span></li>
</ol>
</body></html>`

func TestExtractStructured_HappyPath(t *testing.T) {
	result, ok := ExtractStructured([]byte(sampleSetPage), djSetIndexSelectors)
	require.True(t, ok)

	assert.Equal(t, "Live at Warehouse", result.DisplayName)
	assert.Equal(t, "2026-03-01", result.EventDateRaw)
	assert.Equal(t, "Warehouse District", result.Venue)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "Above & Beyond - Sun & Moon", result.Entries[0].Citation)
	require.NotNil(t, result.Entries[0].TimestampMs)
	assert.Equal(t, 0, *result.Entries[0].TimestampMs)
	require.NotNil(t, result.Entries[1].TimestampMs)
	assert.Equal(t, (4*60+32)*1000, *result.Entries[1].TimestampMs)
}

func TestExtractStructured_NoRowsFound(t *testing.T) {
	_, ok := ExtractStructured([]byte(`<html><body><h1>Empty</h1></body></html>`), djSetIndexSelectors)
	assert.False(t, ok)
}

func TestParseTimestampMs(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"04:32", 272000, true},
		{"01:02:03", 3723000, true},
		{"not-a-time", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseTimestampMs(c.raw)
		assert.Equal(t, c.ok, ok, c.raw)
		if c.ok {
			assert.Equal(t, c.want, got, c.raw)
		}
	}
}
