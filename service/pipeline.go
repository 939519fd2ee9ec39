package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnTengye/contractrisk/config"
	"github.com/AnTengye/contractrisk/model"
	"github.com/AnTengye/contractrisk/pkg/logger"
	"github.com/AnTengye/contractrisk/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

// TextExtractor is satisfied by *Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, int, error)
}

// ReportAnalyzer is satisfied by *Analyzer.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, contractType, text string, pages int) (*model.Report, error)
}

// Pipeline runs one background task per submitted job, at most Workers at
// a time.
type Pipeline struct {
	store     *JobStore
	extractor TextExtractor
	analyzer  ReportAnalyzer
	group     *errgroup.Group
}

func NewPipeline(cfg *config.PipelineConfig, store *JobStore, extractor TextExtractor, analyzer ReportAnalyzer) *Pipeline {
	workers := 4
	if cfg != nil && cfg.Workers > 0 {
		workers = cfg.Workers
	}
	g := &errgroup.Group{}
	g.SetLimit(workers)

	return &Pipeline{
		store:     store,
		extractor: extractor,
		analyzer:  analyzer,
		group:     g,
	}
}

// Submit schedules the job and returns immediately. The pipeline owns path
// from here on and removes it when the job finishes. ErrPipelineBusy means
// nothing was scheduled and the caller still owns path.
func (p *Pipeline) Submit(jobID, contractType, path string) error {
	ok := p.group.TryGo(func() error {
		p.run(jobID, contractType, path)
		return nil
	})
	if !ok {
		telemetry.JobsRejected.Inc()
		return ErrPipelineBusy
	}
	telemetry.JobsSubmitted.Inc()
	return nil
}

// Wait blocks until every scheduled job has finished or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	// Stays blocked past ctx expiry until the jobs finish. Wait is only
	// called at shutdown.
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run(jobID, contractType, path string) {
	// Jobs are not cancellable; the model client carries its own timeout.
	ctx := logger.WithJobID(context.Background(), jobID)
	log := logger.WithContext(ctx)
	start := time.Now()

	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("pipeline.cleanup_failed", "path", path, "error", err)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.job.panic", "panic", r, "stack", string(debug.Stack()))
			p.fail(ctx, jobID, fmt.Errorf("internal error: %v", r))
		}
		telemetry.JobDuration.Observe(time.Since(start).Seconds())
	}()

	log.Info("pipeline.job.start", "contract_type", contractType)

	if err := p.process(ctx, jobID, contractType, path); err != nil {
		p.fail(ctx, jobID, err)
		return
	}

	telemetry.JobsCompleted.Inc()
	log.Info("pipeline.job.done", "elapsed_ms", time.Since(start).Milliseconds())
}

func (p *Pipeline) process(ctx context.Context, jobID, contractType, path string) error {
	if err := p.store.SetStatus(jobID, model.StatusProcessing, model.StepExtracting, ""); err != nil {
		return err
	}
	text, pages, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	if err := p.store.SetStatus(jobID, model.StatusProcessing, model.StepAnalyzing, ""); err != nil {
		return err
	}
	report, err := p.analyzer.Analyze(ctx, contractType, text, pages)
	if err != nil {
		return err
	}
	if report == nil {
		return errors.New("analyzer returned no report")
	}

	if err := p.store.SetStatus(jobID, model.StatusProcessing, model.StepAssembling, ""); err != nil {
		return err
	}
	attachTextMetrics(ctx, report, text)

	return p.store.SetReport(jobID, report)
}

// attachTextMetrics is best effort: a failure here never fails the job.
func attachTextMetrics(ctx context.Context, report *model.Report, text string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn(ctx, "pipeline.metrics_skipped", "panic", r)
		}
	}()
	report.SetTextMetrics(utf8.RuneCountInString(text), len(strings.Fields(text)))
}

func (p *Pipeline) fail(ctx context.Context, jobID string, err error) {
	telemetry.JobsFailed.Inc()
	logger.Error(ctx, "pipeline.job.failed", "error", err)

	if serr := p.store.SetStatus(jobID, model.StatusError, model.StepFailed, err.Error()); serr != nil {
		logger.Warn(ctx, "pipeline.status_update_failed", "error", serr)
	}
}
