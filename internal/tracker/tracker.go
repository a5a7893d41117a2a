// Package tracker is the implementation of the orchestrator component.
// The tracker drives fetch, normalize and publish for every configured
// repository, isolates per-repository failures, and aggregates a run summary.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/traffic-insights/traffic-insights/internal/registry"
	"github.com/traffic-insights/traffic-insights/internal/traffic"
)

var (
	// ErrNoRepositories is returned when the registry resolves an empty repository list.
	ErrNoRepositories = errors.New("no repositories configured")
	// ErrInvalidRepository is returned when a configured repository is not of the owner/name form.
	ErrInvalidRepository = errors.New("invalid repository format")
	// ErrNoDefaultToken is returned when the token secret has no default access token.
	ErrNoDefaultToken = errors.New("no default access token configured")
)

// Registry is an interface for resolving the tracked repositories and their tokens.
type Registry interface {
	Repositories(ctx context.Context) ([]string, error)
	Tokens(ctx context.Context) (registry.Tokens, error)
}

// Fetcher is an interface for pulling a raw traffic series from the upstream API.
type Fetcher interface {
	FetchTraffic(ctx context.Context, repository, token string, kind traffic.Kind) (traffic.Series, error)
}

// Publisher is an interface for writing raw payloads and normalized metrics to the sinks.
type Publisher interface {
	PublishRaw(ctx context.Context, repository string, kind traffic.Kind, payload []byte, now time.Time) error
	PublishMetrics(ctx context.Context, metrics []traffic.Metric) error
}

type timeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time {
	return time.Now()
}

// Tracker is an abstraction of the orchestrator component.
type Tracker struct {
	registry  Registry
	fetcher   Fetcher
	publisher Publisher

	timeProvider timeProvider
	newRunID     func() string
}

type options struct {
	// Private members exported for tests.
	timeProvider timeProvider
	newRunID     func() string
}

// Options represents an optional function to override Tracker default values.
type Options func(*options)

// New returns a new Tracker wired to the given collaborators.
func New(reg Registry, fetcher Fetcher, pub Publisher, args ...Options) (Tracker, error) {
	if reg == nil {
		return Tracker{}, fmt.Errorf("registry cannot be nil")
	}
	if fetcher == nil {
		return Tracker{}, fmt.Errorf("fetcher cannot be nil")
	}
	if pub == nil {
		return Tracker{}, fmt.Errorf("publisher cannot be nil")
	}

	opts := options{
		timeProvider: realTimeProvider{},
		newRunID:     uuid.NewString,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return Tracker{
		registry:  reg,
		fetcher:   fetcher,
		publisher: pub,

		timeProvider: opts.timeProvider,
		newRunID:     opts.newRunID,
	}, nil
}

// RunResult is the outcome for a single repository.
type RunResult struct {
	Repository string
	Succeeded  bool
}

// Summary is the aggregate outcome of one run across all repositories.
type Summary struct {
	RunID                  string   `json:"run_id"`
	TotalRepositories      int      `json:"total_repositories"`
	SuccessfulRepositories int      `json:"successful_repositories"`
	FailedRepositories     int      `json:"failed_repositories"`
	FailedRepos            []string `json:"failed_repos,omitempty"`
}

// Run processes every configured repository sequentially and returns the run summary.
//
// Precondition failures (empty repository list, malformed repository
// identifiers, missing default token) abort the run before any repository is
// processed. Per-repository failures never do: they are tallied in the
// summary and processing moves on to the next repository.
func (t Tracker) Run(ctx context.Context) (Summary, error) {
	runID := t.newRunID()
	slog.Info("Starting traffic tracking run", "run_id", runID)

	repos, err := t.registry.Repositories(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(repos) == 0 {
		return Summary{}, ErrNoRepositories
	}

	var invalid []string
	for _, repo := range repos {
		if !registry.ValidateRepository(repo) {
			invalid = append(invalid, repo)
		}
	}
	if len(invalid) > 0 {
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidRepository, invalid)
	}

	tokens, err := t.registry.Tokens(ctx)
	if err != nil {
		return Summary{}, err
	}
	if tokens.DefaultToken == "" {
		return Summary{}, ErrNoDefaultToken
	}

	// A single reference clock keeps the freshness window identical for every repository in the run.
	now := t.timeProvider.Now().UTC()

	results := make([]RunResult, 0, len(repos))
	for _, repo := range repos {
		results = append(results, RunResult{
			Repository: repo,
			Succeeded:  t.processRepository(ctx, repo, tokens.ForRepository(repo), now),
		})
	}

	summary := summarize(runID, results)
	slog.Info("Traffic tracking run completed", "run_id", runID,
		"total", summary.TotalRepositories, "successful", summary.SuccessfulRepositories, "failed", summary.FailedRepositories)

	return summary, nil
}

// processRepository handles both traffic kinds for one repository.
//
// The first error aborts processing for this repository only: partial
// telemetry for a repository is not worth tracking which kinds made it.
func (t Tracker) processRepository(ctx context.Context, repository, token string, now time.Time) bool {
	slog.Debug("Processing repository", "repository", repository)

	for _, kind := range traffic.Kinds {
		if err := t.processKind(ctx, repository, token, kind, now); err != nil {
			slog.Error("Failed to process repository", "repository", repository, "kind", kind, "error", err)
			return false
		}
	}

	return true
}

// processKind runs fetch, raw publish, normalize and metric publish for one
// (repository, kind) pair.
func (t Tracker) processKind(ctx context.Context, repository, token string, kind traffic.Kind, now time.Time) error {
	series, err := t.fetcher.FetchTraffic(ctx, repository, token, kind)
	if err != nil {
		return err
	}

	if err := t.publisher.PublishRaw(ctx, repository, kind, series.Raw, now); err != nil {
		return err
	}

	return t.publisher.PublishMetrics(ctx, traffic.Normalize(repository, series, now))
}

// summarize tallies per-repository results into a run summary.
func summarize(runID string, results []RunResult) Summary {
	summary := Summary{
		RunID:             runID,
		TotalRepositories: len(results),
	}
	for _, r := range results {
		if r.Succeeded {
			summary.SuccessfulRepositories++
			continue
		}
		summary.FailedRepositories++
		summary.FailedRepos = append(summary.FailedRepos, r.Repository)
	}

	return summary
}

// IsPreconditionError reports whether err is one of the failures that abort a
// run before any repository is processed.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrNoRepositories) || errors.Is(err, ErrInvalidRepository) || errors.Is(err, ErrNoDefaultToken)
}
