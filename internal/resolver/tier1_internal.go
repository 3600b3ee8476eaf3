package resolver

import (
	"context"
	"strings"
	"tracklift/internal/models"

	"github.com/google/uuid"
)

// tier1Result is what the internal-lookup tier can contribute: a
// corroborated label candidate, and/or a resolved artist for one of the
// track's unidentified mashup components.
type tier1Result struct {
	Label           string
	LabelSource     string
	LabelConfidence float64

	ResolvedArtistID uuid.UUID
	ResolvedArtist   bool
}

// minLabelCorroboration is how many sibling tracks by the same primary
// artist must already carry a label candidate before Tier 1 trusts it as
// an artist-label association, rather than one track's own unverified tag.
const minLabelCorroboration = 2

// resolveInternalLookup implements Tier 1: before going external, check
// whether this installation already knows the answer. labelCandidate is
// whatever Tier 0 found (possibly empty); it's corroborated against every
// other track already carrying that label via FindByLabel, and promoted to
// an artist-association confidence when enough of the artist's own tracks
// share it. unresolvedComponent is a citation fragment the parser couldn't
// attribute (e.g. the remixer in a "Title (??? Remix)" citation), matched
// against the artist table by normalized name.
func (r *Resolver) resolveInternalLookup(ctx context.Context, track *models.Track, labelCandidate, unresolvedComponent string) (tier1Result, error) {
	var result tier1Result

	if labelCandidate != "" {
		siblings, err := r.repo.Track.FindByLabel(ctx, labelCandidate, 50)
		if err != nil {
			return result, err
		}
		corroborating := 0
		for _, sibling := range siblings {
			if sibling.PrimaryArtistID == track.PrimaryArtistID && sibling.ID != track.ID {
				corroborating++
			}
		}
		if corroborating >= minLabelCorroboration {
			result.Label = labelCandidate
			result.LabelSource = "internal_artist_association"
			result.LabelConfidence = 0.80
		}
	}

	if unresolvedComponent == "" || models.IsReservedPlaceholder(unresolvedComponent) {
		return result, nil
	}

	normalized := models.NormalizeArtistName(unresolvedComponent)
	artist, err := r.repo.Artist.GetByNormalizedName(ctx, normalized)
	if err != nil {
		return result, err
	}
	if artist != nil {
		result.ResolvedArtistID = artist.ID
		result.ResolvedArtist = true
		return result, nil
	}

	// Loose fallback: compare the alternate spellings recorded on the
	// artists GetBatchByNormalizedNames returns. That query matches on
	// normalized_name only, with the same value GetByNormalizedName has just
	// found nothing for, so an artist whose alternate spelling matches but
	// whose normalized name does not is not found here.
	candidate := strings.ToLower(unresolvedComponent)
	byNames, err := r.repo.Artist.GetBatchByNormalizedNames(ctx, []string{normalized})
	if err != nil {
		return result, err
	}
	for _, a := range byNames {
		for _, alt := range a.AlternateSpellings {
			if strings.ToLower(alt) == candidate {
				result.ResolvedArtistID = a.ID
				result.ResolvedArtist = true
				return result, nil
			}
		}
	}

	return result, nil
}
