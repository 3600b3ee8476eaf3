package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEpisodePage = `<html><body>
<h1 class="episode-title">Fallback Title</h1>
<script type="application/json" id="episode-data">
{"title":"Episode 142","aired_at":"2026-02-14","stage":"Main Stage","tracks":[
  {"citation":"Tinlicker - Shiver (Push Remix)","cue_ms":1000},
  {"citation":"ID - ID","cue_ms":null}
]}
</script>
</body></html>`

func TestExtractEmbeddedJSON_HappyPath(t *testing.T) {
	result, ok := extractEmbeddedJSON([]byte(sampleEpisodePage))
	require.True(t, ok)

	assert.Equal(t, "Episode 142", result.DisplayName)
	assert.Equal(t, "2026-02-14", result.EventDateRaw)
	assert.Equal(t, "Main Stage", result.Venue)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "Tinlicker - Shiver (Push Remix)", result.Entries[0].Citation)
	require.NotNil(t, result.Entries[0].TimestampMs)
	assert.Equal(t, 1000, *result.Entries[0].TimestampMs)
}

func TestExtractEmbeddedJSON_NoMarker(t *testing.T) {
	_, ok := extractEmbeddedJSON([]byte(`<html><body><h1>No embed here</h1></body></html>`))
	assert.False(t, ok)
}

func TestExtractEmbeddedJSON_MalformedJSON(t *testing.T) {
	page := `<script type="application/json" id="episode-data">{not valid json</script>`
	_, ok := extractEmbeddedJSON([]byte(page))
	assert.False(t, ok)
}
