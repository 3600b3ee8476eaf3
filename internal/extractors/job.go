package extractors

import (
	"context"
	"time"

	"tracklift/internal/logger"
	"tracklift/internal/orchestrator"
	"tracklift/internal/pipeline"
)

// ExtractorJob adapts an Extractor to orchestrator.Job: Targets delegates
// to the extractor's Discover, and Run drives one target through the
// layered extraction strategy and submits the resulting items to the
// pipeline. This is the only place an Extractor and a *pipeline.Pipeline
// are wired together, keeping both sides of §4.5/§4.8 independently
// testable.
type ExtractorJob struct {
	extractor Extractor
	pipeline  *pipeline.Pipeline
	now       func() time.Time
	log       logger.Logger
}

func NewExtractorJob(extractor Extractor, p *pipeline.Pipeline) *ExtractorJob {
	return &ExtractorJob{
		extractor: extractor,
		pipeline:  p,
		now:       time.Now,
		log:       logger.New("extractors.job"),
	}
}

func (j *ExtractorJob) Source() string { return j.extractor.Source() }

func (j *ExtractorJob) Targets(ctx context.Context) ([]string, error) {
	return j.extractor.Discover(ctx)
}

func (j *ExtractorJob) ConcurrencyCap() int {
	if cap := j.extractor.Session().ConcurrencyCap; cap > 0 {
		return cap
	}
	return 1
}

func (j *ExtractorJob) DailyQuota() int {
	return j.extractor.Session().DailyQuota
}

// Run extracts target and submits every resulting pipeline item in order,
// stopping at the first submission the pipeline itself rejects (a
// StageError already carries enough context for the orchestrator's
// retriable/fatal classification, so Run only needs to decide whether a
// fetch-level failure should be retried).
func (j *ExtractorJob) Run(ctx context.Context, target string) error {
	log := j.log.Function("Run")

	result, err := j.extractor.Extract(ctx, target)
	if err != nil {
		log.Warn("extraction failed, recording as retriable", "source", j.Source(), "target", target, "error", err)
		return &orchestrator.RetriableError{Err: err}
	}

	items := ToPipelineItems(j.Source(), target, result, j.now())
	for _, item := range items {
		if stageErr := j.pipeline.Submit(ctx, item); stageErr != nil {
			log.Err("pipeline rejected item", stageErr, "source", j.Source(), "target", target, "stage", stageErr.Stage)
			return stageErr
		}
	}
	return nil
}
