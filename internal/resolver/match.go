package resolver

// Match is the normalized shape every Tier 2 waterfall client returns,
// regardless of which upstream API produced it. A zero-value Match with
// Found=false means the client queried successfully but had nothing.
type Match struct {
	Found bool

	ISRC          string
	MusicBrainzID string
	PlatformID    string
	Label         string
	Popularity    *int
	Tags          []string

	Energy           *float64
	Danceability     *float64
	Valence          *float64
	Acousticness     *float64
	Instrumentalness *float64
	Liveness         *float64
	Speechiness      *float64
	Loudness         *float64

	// Confidence is the client's own assessment of match quality, folded
	// into the tier's final decision alongside tier-level priors.
	Confidence float64
	Source     string
}

// LabelHint is what Tier 0 hands back: a candidate label plus the
// confidence and source it was discovered with, per §4.9's three-step
// label-hunter strategy.
type LabelHint struct {
	Found         bool
	Label         string
	Source        string
	Confidence    float64
	MusicBrainzID string
}
