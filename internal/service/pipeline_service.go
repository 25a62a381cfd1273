package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fieldset/fieldset-api/internal/artifact"
	"github.com/fieldset/fieldset-api/internal/config"
	"github.com/fieldset/fieldset-api/internal/content"
	"github.com/fieldset/fieldset-api/internal/crawl"
	"github.com/fieldset/fieldset-api/internal/extract"
	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
	"github.com/fieldset/fieldset-api/internal/safeurl"
)

// The pipeline depends on its collaborators through narrow interfaces so
// each stage can be swapped in tests. Production wiring uses the concrete
// safeurl, crawl, and extract types.
type urlValidator interface {
	Validate(ctx context.Context, raw string) (*safeurl.SafeURL, error)
}

type robotsSource interface {
	Fetch(ctx context.Context, origin string) *crawl.Policy
}

type pageDiscoverer interface {
	Discover(ctx context.Context, origin string, policy *crawl.Policy) []crawl.DiscoveredPage
}

type pageFetcher interface {
	Fetch(ctx context.Context, pages []crawl.DiscoveredPage, policy *crawl.Policy) ([]crawl.FetchedPage, []crawl.SkippedURL)
}

type pageExtractor interface {
	ExtractPage(ctx context.Context, fields []models.FieldDefinition, page content.ExtractedContent) ([]extract.Candidate, error)
}

// PipelineService runs the crawl-extract-synthesize pipeline for one
// submission at a time. Submissions are claimed by the worker; Run assumes
// the submission is already in running status.
type PipelineService struct {
	cfg        *config.Config
	repos      *repository.Repositories
	store      artifact.Store
	validator  urlValidator
	robots     robotsSource
	discoverer pageDiscoverer
	fetcher    pageFetcher
	extractor  pageExtractor
	logger     *slog.Logger
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(cfg *config.Config, repos *repository.Repositories, store artifact.Store, llm extract.LLMClient, validator *safeurl.Validator, logger *slog.Logger) *PipelineService {
	return &PipelineService{
		cfg:       cfg,
		repos:     repos,
		store:     store,
		validator: validator,
		robots:    crawl.NewRobotsFetcher(cfg.UserAgent, cfg.RequestTimeout, logger),
		discoverer: crawl.NewDiscoverer(
			validator, cfg.UserAgent, cfg.RequestTimeout, cfg.HeuristicPaths, cfg.MaxPages, logger,
		),
		fetcher: crawl.NewFetcher(crawl.FetcherConfig{
			UserAgent:      cfg.UserAgent,
			Concurrency:    cfg.Concurrency,
			RequestDelay:   cfg.RequestDelay,
			RequestTimeout: cfg.RequestTimeout,
		}, logger),
		extractor: extract.NewPageExtractor(llm, extract.PageExtractorConfig{
			Model:        cfg.LLMModel,
			MaxTokens:    cfg.LLMMaxTokens,
			MaxBodyChars: cfg.MaxBodyChars,
			MinWordCount: cfg.MinWordCount,
		}, logger),
		logger: logger.With("component", "pipeline"),
	}
}

// Run executes the full pipeline for a running submission and leaves it in
// draft or failed. Storage errors abort the run; everything downstream of
// URL validation degrades per page instead of failing the submission.
func (s *PipelineService) Run(ctx context.Context, submission *models.Submission) error {
	version, err := s.repos.Schema.GetVersion(ctx, submission.SchemaID, submission.SchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to load schema version: %w", err)
	}
	if version == nil {
		return s.fail(ctx, submission, "schema version no longer exists")
	}

	safe, err := s.validator.Validate(ctx, submission.SubmittedURL)
	if err != nil {
		return s.fail(ctx, submission, err.Error())
	}
	submission.NormalizedURL = safe.Href
	submission.Origin = safe.Origin

	policy := s.robots.Fetch(ctx, safe.Origin)
	discovered := s.discoverer.Discover(ctx, safe.Origin, policy)
	fetched, skipped := s.fetcher.Fetch(ctx, discovered, policy)

	submission.SkippedPages = submission.SkippedPages[:0]
	for _, sk := range skipped {
		submission.SkippedPages = append(submission.SkippedPages, models.SkippedPage{URL: sk.URL, Reason: sk.Reason})
	}

	if len(fetched) == 0 {
		return s.fail(ctx, submission, "no pages could be fetched")
	}

	contents, err := s.storePages(ctx, submission, fetched)
	if err != nil {
		_ = s.fail(ctx, submission, "artifact storage unavailable")
		return err
	}

	candidates := s.extractAll(ctx, version.Fields, contents)

	values := extract.Synthesize(version.Fields, candidates, extract.SynthesisConfig{
		SourceHintBoost:            s.cfg.SourceHintBoost,
		CorroborationBoost:         s.cfg.CorroborationBoost,
		DefaultConfidenceThreshold: s.cfg.DefaultConfidenceThreshold,
	})
	extract.Normalize(values)
	extract.Validate(version.Fields, values, s.logger)

	submission.Fields = values
	submission.Status = models.SubmissionStatusDraft
	submission.FailureReason = ""
	if err := s.repos.Submission.Update(ctx, submission); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	s.logger.Info("pipeline complete",
		"submission_id", submission.ID,
		"pages_fetched", len(fetched),
		"pages_skipped", len(skipped),
		"candidates", len(candidates),
	)
	return nil
}

// storePages persists raw HTML and extracted text for every fetched page
// and records the artifact rows. Object storage failure is fatal: a record
// without its evidence is worse than no record.
func (s *PipelineService) storePages(ctx context.Context, submission *models.Submission, fetched []crawl.FetchedPage) ([]content.ExtractedContent, error) {
	contents := make([]content.ExtractedContent, 0, len(fetched))
	submission.CrawledPages = submission.CrawledPages[:0]
	submission.ArtifactKeys = submission.ArtifactKeys[:0]

	for _, page := range fetched {
		extracted := content.Extract(page)
		contents = append(contents, extracted)

		pageHash := safeurl.Hash(page.URL)
		rawKey, err := artifact.PutRawHTML(ctx, s.store, submission.ID, pageHash, page.HTML)
		if err != nil {
			return nil, fmt.Errorf("failed to store raw html for %s: %w", page.URL, err)
		}
		textKey, err := artifact.PutExtractedContent(ctx, s.store, submission.ID, pageHash, extracted)
		if err != nil {
			return nil, fmt.Errorf("failed to store extracted content for %s: %w", page.URL, err)
		}

		if err := s.repos.CrawlArtifact.Create(ctx, &models.CrawlArtifact{
			SubmissionID:        submission.ID,
			URL:                 page.URL,
			StatusCode:          page.StatusCode,
			ContentType:         page.ContentType,
			FetchedAt:           page.FetchedAt,
			RawHTMLKey:          rawKey,
			ExtractedContentKey: textKey,
		}); err != nil {
			return nil, fmt.Errorf("failed to record artifact for %s: %w", page.URL, err)
		}

		submission.CrawledPages = append(submission.CrawledPages, page.URL)
		submission.ArtifactKeys = append(submission.ArtifactKeys, rawKey)
	}
	return contents, nil
}

// extractAll runs the LLM pass over every page in bounded batches. A page
// whose extraction fails contributes no candidates; the run continues.
func (s *PipelineService) extractAll(ctx context.Context, fields []models.FieldDefinition, contents []content.ExtractedContent) []extract.Candidate {
	perPage := make([][]extract.Candidate, len(contents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ExtractionConcurrency)
	for i, page := range contents {
		i, page := i, page
		g.Go(func() error {
			candidates, err := s.extractor.ExtractPage(gctx, fields, page)
			if err != nil {
				s.logger.Warn("page extraction failed", "url", page.URL, "error", err)
				return nil
			}
			perPage[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	var all []extract.Candidate
	for _, candidates := range perPage {
		all = append(all, candidates...)
	}
	return all
}

func (s *PipelineService) fail(ctx context.Context, submission *models.Submission, reason string) error {
	submission.Status = models.SubmissionStatusFailed
	submission.FailureReason = reason
	if err := s.repos.Submission.Update(ctx, submission); err != nil {
		return fmt.Errorf("failed to mark submission failed: %w", err)
	}
	s.logger.Warn("submission failed", "submission_id", submission.ID, "reason", reason)
	return nil
}
