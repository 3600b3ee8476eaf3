package resolver

import (
	"context"
	"tracklift/internal/models"

	"github.com/google/uuid"
)

// gatherCoOccurrenceCandidates builds one FeatureVector per artist that
// shows up anywhere in this track's DJ-set context: the DJ of any set the
// track was played in, and whichever tracks were played immediately
// adjacent to it, locally (via set-list position) and from the aggregated
// adjacency graph, plus whatever an external set-list provider knows that
// this installation never scraped itself.
func (r *Resolver) gatherCoOccurrenceCandidates(ctx context.Context, track *models.Track, artist, title string) (map[uuid.UUID]*FeatureVector, error) {
	candidates := map[uuid.UUID]*FeatureVector{}
	ensure := func(id uuid.UUID) *FeatureVector {
		if id == uuid.Nil {
			return nil
		}
		fv, ok := candidates[id]
		if !ok {
			fv = &FeatureVector{CandidateArtistID: id.String()}
			candidates[id] = fv
		}
		return fv
	}

	occurrences, err := r.repo.SetlistTrack.FindOccurrences(ctx, track.ID)
	if err != nil {
		return nil, err
	}

	for _, occ := range occurrences {
		if occ.Setlist == nil {
			continue
		}

		djArtist, err := r.repo.Artist.GetByNormalizedName(ctx, models.NormalizeArtistName(occ.Setlist.DisplayName))
		if err != nil {
			return nil, err
		}
		var djID uuid.UUID
		if djArtist != nil {
			djID = djArtist.ID
			if fv := ensure(djID); fv != nil {
				fv.IsDJ = true
			}
		}

		before, err := r.repo.SetlistTrack.FindBySetlistAndPosition(ctx, occ.SetlistID, occ.Position-1)
		if err != nil {
			return nil, err
		}
		if before != nil && before.Track != nil {
			if fv := ensure(before.Track.PrimaryArtistID); fv != nil {
				fv.PlayedImmediatelyBefore = true
			}
		}

		after, err := r.repo.SetlistTrack.FindBySetlistAndPosition(ctx, occ.SetlistID, occ.Position+1)
		if err != nil {
			return nil, err
		}
		if after != nil && after.Track != nil {
			if fv := ensure(after.Track.PrimaryArtistID); fv != nil {
				fv.PlayedImmediatelyAfter = true
			}
		}

		// A DJ who has already released on this track's label under their
		// own artist identity is a candidate for having produced this
		// unidentified edit themselves.
		if djID != uuid.Nil && track.Label != nil && *track.Label != "" {
			owned, err := r.repo.Track.FindByLabel(ctx, *track.Label, 25)
			if err != nil {
				return nil, err
			}
			for _, o := range owned {
				if o.PrimaryArtistID == djID {
					if fv := ensure(djID); fv != nil {
						fv.DJOwnsCandidateLabel = true
					}
					break
				}
			}
		}
	}

	edges, err := r.repo.Adjacency.Neighbors(ctx, track.ID)
	if err != nil {
		return nil, err
	}
	for _, edge := range edges {
		neighborID := edge.TrackBID
		if neighborID == track.ID {
			neighborID = edge.TrackAID
		}
		neighbor, err := r.repo.Track.GetByID(ctx, neighborID)
		if err != nil || neighbor == nil {
			continue
		}
		fv := ensure(neighbor.PrimaryArtistID)
		if fv == nil {
			continue
		}
		if track.Label != nil && neighbor.Label != nil && *track.Label == *neighbor.Label {
			fv.SharesLabelWithSurrounding = true
		}
	}

	if r.setlistProvider != nil {
		external, err := r.setlistProvider.Occurrences(ctx, artist, title)
		if err == nil && len(external) > 0 {
			names := make([]string, 0, len(external)*3)
			seen := map[string]bool{}
			add := func(name string) {
				if name == "" {
					return
				}
				n := models.NormalizeArtistName(name)
				if !seen[n] {
					seen[n] = true
					names = append(names, n)
				}
			}
			for _, occ := range external {
				add(occ.DJName)
				add(occ.BeforeArtist)
				add(occ.AfterArtist)
			}

			resolved, err := r.repo.Artist.GetBatchByNormalizedNames(ctx, names)
			if err == nil {
				for _, occ := range external {
					if a, ok := resolved[models.NormalizeArtistName(occ.DJName)]; ok {
						if fv := ensure(a.ID); fv != nil {
							fv.IsDJ = true
						}
					}
					if a, ok := resolved[models.NormalizeArtistName(occ.BeforeArtist)]; ok {
						if fv := ensure(a.ID); fv != nil {
							fv.PlayedImmediatelyBefore = true
						}
					}
					if a, ok := resolved[models.NormalizeArtistName(occ.AfterArtist)]; ok {
						if fv := ensure(a.ID); fv != nil {
							fv.PlayedImmediatelyAfter = true
						}
					}
				}
			}
		}
	}

	return candidates, nil
}

// resolveCoOccurrence implements Tier 2+: score every candidate artist
// gathered from the track's DJ-set context with the Fellegi-Sunter linkage
// model and return them ranked, highest posterior first.
func (r *Resolver) resolveCoOccurrence(ctx context.Context, track *models.Track, artist, title string, highThreshold, mediumThreshold float64) ([]LinkageResult, error) {
	candidates, err := r.gatherCoOccurrenceCandidates(ctx, track, artist, title)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	vectors := make([]FeatureVector, 0, len(candidates))
	for _, fv := range candidates {
		vectors = append(vectors, *fv)
	}

	results := ScoreCandidates(vectors, highThreshold, mediumThreshold)
	sortLinkageResults(results)
	return results, nil
}

func sortLinkageResults(results []LinkageResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Posterior > results[j-1].Posterior; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
