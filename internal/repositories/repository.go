package repositories

import (
	"tracklift/internal/database"
)

// Repository bundles every per-entity repository behind one handle, handed
// explicitly to the pipeline and resolver rather than reached for globally.
type Repository struct {
	Artist      ArtistRepository
	Track       TrackRepository
	TrackArtist TrackArtistRepository
	Setlist     SetlistRepository
	SetlistTrack SetlistTrackRepository
	Adjacency   AdjacencyRepository
	Enrichment  EnrichmentRepository
	Genre       GenreRepository
}

func New(db database.DB) Repository {
	return Repository{
		Artist:       NewArtistRepository(db),
		Track:        NewTrackRepository(db),
		TrackArtist:  NewTrackArtistRepository(db),
		Setlist:      NewSetlistRepository(db),
		SetlistTrack: NewSetlistTrackRepository(db),
		Adjacency:    NewAdjacencyRepository(db),
		Enrichment:   NewEnrichmentRepository(db),
		Genre:        NewGenreRepository(db),
	}
}
