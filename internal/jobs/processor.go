package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siftlabs/sift/internal/extract"
	promptx "github.com/siftlabs/sift/internal/prompts/extract"
	"github.com/siftlabs/sift/internal/providers"
	"github.com/siftlabs/sift/internal/textseg"
	"github.com/siftlabs/sift/internal/types"
)

// ProviderResolver turns a provider/model/temperature selection into a
// usable client. Resolution failures are job-fatal: they happen before
// the row loop starts.
type ProviderResolver interface {
	Resolve(provider, model, apiKey, baseURL string, temperature float64) (providers.Client, error)
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Manager  *Manager
	Rows     RowStore
	Results  ResultStore
	Feedback FeedbackStore
	Resolver ProviderResolver
	Logger   *slog.Logger
}

// Processor drives the per-job row loop: fetch rows, segment, build
// the prompt, call the provider, parse and validate, store the result,
// update progress, check cancellation.
type Processor struct {
	manager  *Manager
	rows     RowStore
	results  ResultStore
	feedback FeedbackStore
	resolver ProviderResolver
	logger   *slog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		manager:  cfg.Manager,
		rows:     cfg.Rows,
		results:  cfg.Results,
		feedback: cfg.Feedback,
		resolver: cfg.Resolver,
		logger:   logger,
	}
}

// Request carries everything a job run needs beyond the job record.
type Request struct {
	JobID       string
	Categories  []types.Category
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
}

// Run executes one job to a terminal state. Row-scoped failures
// (provider errors, parse errors, validation errors) are recorded on
// the row result and never abort the loop; only failures of the
// orchestration itself - provider construction, row fetch - are fatal
// and move the job to StatusFailed. On normal completion the job moves
// to StatusCompleted; a cancellation observed between rows stops the
// loop and retains the results produced so far.
func (p *Processor) Run(ctx context.Context, req Request) {
	log := p.logger.With("job_id", req.JobID)

	client, err := p.resolver.Resolve(req.Provider, req.Model, req.APIKey, req.BaseURL, req.Temperature)
	if err != nil {
		p.fail(req.JobID, fmt.Sprintf("provider init: %v", err))
		return
	}

	rows, err := p.rows.GetRows(ctx, req.JobID)
	if err != nil {
		p.fail(req.JobID, fmt.Sprintf("load rows: %v", err))
		return
	}

	// Advisory response-shape schema, compiled once per job.
	schema, err := extract.ResponseSchema(req.Categories)
	if err != nil {
		p.fail(req.JobID, fmt.Sprintf("response schema: %v", err))
		return
	}

	feedback := p.loadFeedback(ctx, req.Categories)

	if !p.manager.UpdateProgress(req.JobID, 0, "") {
		// Unknown job, or cancelled before the first row.
		log.Warn("job not updatable at start, skipping run")
		return
	}
	log.Info("job processing started", "rows", len(rows), "provider", req.Provider, "model", req.Model)

	for i, row := range rows {
		if p.manager.IsCancelled(req.JobID) {
			log.Info("job cancelled, stopping row loop", "processed_rows", i)
			return
		}
		if ctx.Err() != nil {
			// Worker shutdown, not a user cancellation. The job must
			// not be left in a non-terminal state.
			log.Info("worker context cancelled, stopping job", "processed_rows", i)
			p.manager.AppendError(req.JobID, "worker shutdown before completion")
			p.manager.Cancel(req.JobID)
			return
		}

		p.manager.UpdateProgress(req.JobID, i, row.ID)

		result := p.processRow(ctx, client, schema, row, req, feedback)
		if err := p.results.AppendResult(ctx, req.JobID, result); err != nil {
			// Losing results mid-run is an orchestration failure.
			p.fail(req.JobID, fmt.Sprintf("store result for row %s: %v", row.ID, err))
			return
		}

		p.manager.UpdateProgress(req.JobID, i+1, row.ID)
	}

	if p.manager.IsCancelled(req.JobID) {
		return
	}
	p.manager.Complete(req.JobID, StatusCompleted)
}

// processRow runs the extraction pipeline for one row. All failures
// are captured on the returned RowResult.
func (p *Processor) processRow(ctx context.Context, client providers.Client, schema *extract.Schema, row types.Row, req Request, feedback []types.Feedback) types.RowResult {
	row = textseg.Apply(row)

	categories := req.Categories
	prompt := promptx.Build(row, categories, feedback)

	// The job's model/temperature selection travels on every call;
	// the client default only applies when the job left them unset.
	resp, err := client.Generate(ctx, &providers.Request{
		System:      promptx.SystemPrompt(),
		Prompt:      prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil || !resp.Success {
		msg := "provider error"
		if err != nil {
			msg = fmt.Sprintf("provider error: %v", err)
		} else if resp.ErrorMessage != "" {
			msg = "provider error: " + resp.ErrorMessage
		}
		p.logger.Warn("provider call failed", "row_id", row.ID, "error", msg)
		return types.RowResult{
			RowID:     row.ID,
			Extracted: map[string]types.CategoryExtraction{},
			Errors:    []string{msg},
		}
	}

	extractions, validationErrs, parseErr := extract.Parse(resp.Text, row, categories)
	errs := validationErrs
	if parseErr != nil {
		errs = append(errs, parseErr.Error())
		p.logger.Warn("unparseable model output", "row_id", row.ID, "error", parseErr)
	} else {
		errs = append(errs, extract.ValidateShape(schema, resp.Text)...)
		errs = append(errs, extract.ValidateExpectedValues(extractions, categories)...)
	}

	return types.RowResult{
		RowID:     row.ID,
		Extracted: extractions,
		Errors:    errs,
	}
}

// loadFeedback gathers recent accepted feedback for every requested
// category. Feedback-store failures degrade to an unbiased prompt.
func (p *Processor) loadFeedback(ctx context.Context, categories []types.Category) []types.Feedback {
	if p.feedback == nil {
		return nil
	}
	var all []types.Feedback
	for _, cat := range categories {
		items, err := p.feedback.RecentFeedbackByCategory(ctx, cat.Name, promptx.MaxFeedbackPerCategory)
		if err != nil {
			p.logger.Warn("feedback load failed", "category", cat.Name, "error", err)
			continue
		}
		all = append(all, items...)
	}
	return all
}

func (p *Processor) fail(jobID, msg string) {
	p.logger.Error("job failed", "job_id", jobID, "error", msg)
	p.manager.AppendError(jobID, msg)
	p.manager.Complete(jobID, StatusFailed)
}
