package resolver

import "math"

// FeatureVector encodes, for one candidate artist against one unidentified
// track, the binary signals §4.9's Tier 2+ co-occurrence matcher scores:
// is the DJ this artist; was this artist played immediately before/after;
// did the surrounding tracks share a label with the candidate's known
// releases; does the DJ own the candidate's label.
type FeatureVector struct {
	CandidateArtistID string

	IsDJ                bool
	PlayedImmediatelyBefore bool
	PlayedImmediatelyAfter  bool
	SharesLabelWithSurrounding bool
	DJOwnsCandidateLabel       bool
}

func (f FeatureVector) values() [5]float64 {
	return [5]float64{
		boolToFloat(f.IsDJ),
		boolToFloat(f.PlayedImmediatelyBefore),
		boolToFloat(f.PlayedImmediatelyAfter),
		boolToFloat(f.SharesLabelWithSurrounding),
		boolToFloat(f.DJOwnsCandidateLabel),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

const numFeatures = 5

// linkageModel holds the Fellegi-Sunter per-feature match (m) and
// non-match (u) probabilities, and the match prior (pi), estimated by
// Expectation-Maximization over the unlabeled candidate set for one track.
type linkageModel struct {
	m  [numFeatures]float64
	u  [numFeatures]float64
	pi float64
}

// defaultLinkageModel seeds EM with an informative prior: a true match is
// likely to show every positive signal (m close to 1), a spurious
// candidate rarely shows any of them (u close to 0). These are priors, not
// assumptions the caller must supply manually.
func defaultLinkageModel() linkageModel {
	var model linkageModel
	for i := range model.m {
		model.m[i] = 0.85
		model.u[i] = 0.10
	}
	model.pi = 0.3
	return model
}

const (
	emIterations = 25
	emEpsilon    = 1e-6
)

// fitEM runs Expectation-Maximization to convergence (or emIterations,
// whichever comes first) over vectors, returning the fitted model and the
// per-candidate posterior match probability in the same order as vectors.
func fitEM(vectors []FeatureVector) (linkageModel, []float64) {
	n := len(vectors)
	if n == 0 {
		return defaultLinkageModel(), nil
	}

	data := make([][numFeatures]float64, n)
	for i, v := range vectors {
		data[i] = v.values()
	}

	model := defaultLinkageModel()
	responsibilities := make([]float64, n)

	for iter := 0; iter < emIterations; iter++ {
		prevPi := model.pi

		// E-step: posterior P(match | features) per candidate given the
		// current m/u/pi estimates.
		for i, x := range data {
			responsibilities[i] = posterior(x, model)
		}

		// M-step: re-estimate m, u per feature and the match prior from
		// the responsibility-weighted data.
		var sumResp, sumNonResp float64
		var mNum, uNum [numFeatures]float64
		for i, x := range data {
			r := responsibilities[i]
			sumResp += r
			sumNonResp += 1 - r
			for k := 0; k < numFeatures; k++ {
				mNum[k] += r * x[k]
				uNum[k] += (1 - r) * x[k]
			}
		}

		if sumResp > 0 {
			for k := 0; k < numFeatures; k++ {
				model.m[k] = clamp(mNum[k]/sumResp, 0.01, 0.99)
			}
		}
		if sumNonResp > 0 {
			for k := 0; k < numFeatures; k++ {
				model.u[k] = clamp(uNum[k]/sumNonResp, 0.01, 0.99)
			}
		}
		model.pi = clamp(sumResp/float64(n), 0.01, 0.99)

		if math.Abs(model.pi-prevPi) < emEpsilon {
			break
		}
	}

	final := make([]float64, n)
	for i, x := range data {
		final[i] = posterior(x, model)
	}
	return model, final
}

// posterior computes P(match | x) via Bayes' rule over the Fellegi-Sunter
// conditional-independence likelihood: each feature contributes
// m_k^x(1-m_k)^(1-x) under "match" and u_k^x(1-u_k)^(1-x) under "non-match".
func posterior(x [numFeatures]float64, model linkageModel) float64 {
	logLikMatch := math.Log(model.pi)
	logLikNonMatch := math.Log(1 - model.pi)

	for k := 0; k < numFeatures; k++ {
		if x[k] == 1 {
			logLikMatch += math.Log(model.m[k])
			logLikNonMatch += math.Log(model.u[k])
		} else {
			logLikMatch += math.Log(1 - model.m[k])
			logLikNonMatch += math.Log(1 - model.u[k])
		}
	}

	// log-sum-exp for numerical stability before normalizing to a
	// probability.
	maxLog := math.Max(logLikMatch, logLikNonMatch)
	expMatch := math.Exp(logLikMatch - maxLog)
	expNonMatch := math.Exp(logLikNonMatch - maxLog)
	return expMatch / (expMatch + expNonMatch)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LinkageResult is one candidate's scored outcome from the matcher.
type LinkageResult struct {
	CandidateArtistID string
	Posterior         float64
	Confidence        string // "high", "medium", or "" (rejected)
}

// ScoreCandidates fits the EM model over every candidate's feature vector
// and classifies each against the configured high/medium thresholds
// (§4.9: default 0.85 / 0.70).
func ScoreCandidates(vectors []FeatureVector, highThreshold, mediumThreshold float64) []LinkageResult {
	_, posteriors := fitEM(vectors)

	results := make([]LinkageResult, len(vectors))
	for i, v := range vectors {
		p := posteriors[i]
		confidence := ""
		switch {
		case p >= highThreshold:
			confidence = "high"
		case p >= mediumThreshold:
			confidence = "medium"
		}
		results[i] = LinkageResult{CandidateArtistID: v.CandidateArtistID, Posterior: p, Confidence: confidence}
	}
	return results
}
