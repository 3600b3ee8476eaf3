package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RemixWithLabelNote(t *testing.T) {
	citation, ok := Parse("Ilan Bluestone - Frozen Ground (Spencer Brown Remix) [Anjunabeats]")
	require.True(t, ok)

	assert.Equal(t, []string{"Ilan Bluestone"}, citation.PrimaryArtists)
	assert.Equal(t, []string{"Spencer Brown"}, citation.RemixerArtists)
	assert.Equal(t, "Frozen Ground", citation.TrackName)
	assert.Contains(t, citation.ParentheticalNotes, "Anjunabeats")
	assert.True(t, citation.IsRemix)
	assert.True(t, citation.IsIdentified)
}

func TestParse_Mashup(t *testing.T) {
	citation, ok := Parse("MAMI vs. Losing My Mind")
	require.True(t, ok)

	assert.Equal(t, []string{"MAMI", "Losing My Mind"}, citation.MashupComponents)
	assert.Equal(t, "MAMI vs. Losing My Mind", citation.TrackName)
	assert.True(t, citation.IsMashup)
	assert.Empty(t, citation.PrimaryArtists)
	assert.True(t, citation.IsIdentified)
}

func TestParse_UnidentifiedDropped(t *testing.T) {
	_, ok := Parse("ID - ID")
	assert.False(t, ok)
}

func TestParse_IDRemixKeptButNotIdentified(t *testing.T) {
	citation, ok := Parse("Above & Beyond - ID Remix")
	require.True(t, ok)

	assert.Equal(t, []string{"Above", "Beyond"}, citation.PrimaryArtists)
	assert.Equal(t, "ID Remix", citation.TrackName)
	assert.False(t, citation.IsIdentified)
}

func TestParse_FeaturedArtist(t *testing.T) {
	citation, ok := Parse("Armin van Buuren ft. Fiora - Great Spirit")
	require.True(t, ok)

	assert.Equal(t, []string{"Armin van Buuren"}, citation.PrimaryArtists)
	assert.Equal(t, []string{"Fiora"}, citation.FeaturedArtists)
	assert.Equal(t, "Great Spirit", citation.TrackName)
}

func TestParse_MultiplePrimaryArtistsAmpersandAndComma(t *testing.T) {
	citation, ok := Parse("Cosmic Gate & Arnej, JES - Flying High")
	require.True(t, ok)

	assert.Equal(t, []string{"Cosmic Gate", "Arnej", "JES"}, citation.PrimaryArtists)
	assert.Equal(t, "Flying High", citation.TrackName)
}

func TestParse_MashupParentheticalSetsIsRemix(t *testing.T) {
	citation, ok := Parse("Resident - Tunnel Vision (DJ Shadow Mashup)")
	require.True(t, ok)

	assert.Equal(t, []string{"DJ Shadow"}, citation.RemixerArtists)
	assert.True(t, citation.IsRemix)
}

func TestParse_EmptyInputDrops(t *testing.T) {
	_, ok := Parse("   ")
	assert.False(t, ok)
}

func TestParse_NoSeparatorTreatedAsTrackOnly(t *testing.T) {
	citation, ok := Parse("Some Unparsed Blob Of Text")
	require.True(t, ok)
	assert.Equal(t, "Some Unparsed Blob Of Text", citation.TrackName)
	assert.Empty(t, citation.PrimaryArtists)
}

func TestParse_IsPureFunction(t *testing.T) {
	input := "Ilan Bluestone - Frozen Ground (Spencer Brown Remix) [Anjunabeats]"
	a, okA := Parse(input)
	b, okB := Parse(input)
	assert.Equal(t, okA, okB)
	assert.Equal(t, a, b)
}
