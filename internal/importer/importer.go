// Package importer reconciles upstream events against the store: it upserts
// everything currently reported, soft-deletes future events that stopped
// being reported, and records one run log per invocation.
package importer

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/domain"
	"github.com/Open-SGF/sgf-meetup-api/internal/token"
)

// Error names recorded in the run log, one per failure site.
const (
	errNameToken    = "TokenError"
	errNameSnapshot = "SnapshotError"
	errNameFetch    = "FetchError"
	errNameStore    = "StoreError"
	errNameDelete   = "DeleteError"
)

// EventFetcher pulls a group's complete upstream view.
type EventFetcher interface {
	FetchGroupEvents(ctx context.Context, groupURLName, token string) ([]domain.Event, error)
}

// EventStore is the slice of the store the reconciler writes through.
type EventStore interface {
	FutureEvents(ctx context.Context, now time.Time) ([]domain.Event, error)
	UpsertEvents(ctx context.Context, events []domain.Event) (int, error)
	SoftDeleteEvents(ctx context.Context, ids []string, at time.Time) error
}

// RunLogAppender persists the run summary.
type RunLogAppender interface {
	Append(ctx context.Context, runLog domain.RunLog) error
}

// ServiceConfig lists the groups to import.
type ServiceConfig struct {
	GroupNames []string
}

// Service runs the reconciliation. Groups are processed sequentially; each
// group's outcome is returned as a value and merged into the run accumulator
// centrally, so no mutable state is shared across groups.
type Service struct {
	config  ServiceConfig
	tokens  token.Supplier
	fetcher EventFetcher
	store   EventStore
	runLogs RunLogAppender
	now     func() time.Time
	log     *zap.Logger
}

// NewService creates a new reconciler.
func NewService(
	config ServiceConfig,
	tokens token.Supplier,
	fetcher EventFetcher,
	store EventStore,
	runLogs RunLogAppender,
	log *zap.Logger,
) *Service {
	return &Service{
		config:  config,
		tokens:  tokens,
		fetcher: fetcher,
		store:   store,
		runLogs: runLogs,
		now:     time.Now,
		log:     log,
	}
}

// groupResult is the outcome of one group's import. FetchedIDs holds ids the
// group reported regardless of whether persisting them later failed: a
// successful fetch is positive evidence the events still exist upstream.
type groupResult struct {
	fetchedIDs []string
	saved      int
	err        error
	errName    string
}

// Run executes one reconciliation and always writes exactly one run log
// record, even on fatal token failure, so operators keep a continuous audit
// trail. The returned error reflects the fatal case only; per-group failures
// are reported through the run log.
func (s *Service) Run(ctx context.Context) (domain.RunLog, error) {
	startedAt := s.now().UTC()
	run := domain.RunLog{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
	}

	s.log.Info("reconciliation run starting",
		zap.String("run_id", run.ID),
		zap.Strings("groups", s.config.GroupNames))

	bearerToken, err := s.tokens.Token(ctx)
	if err != nil {
		run.FailedGroupNames = slices.Clone(s.config.GroupNames)
		run.Errors = append(run.Errors, domain.RunError{
			ErrorName:    errNameToken,
			ErrorMessage: err.Error(),
		})
		run.FinishedAt = s.now().UTC()
		s.appendRunLog(ctx, run)
		s.log.Error("token acquisition failed, aborting run", zap.Error(err))
		return run, err
	}

	// Deletion candidates: every event still known to be upcoming before
	// this run, across all groups in storage. Past events age out naturally
	// and are never candidates. Losing the snapshot only degrades the
	// deletion pass, so the run continues with an empty candidate set.
	candidates := make(map[string]struct{})
	known, err := s.store.FutureEvents(ctx, startedAt)
	if err != nil {
		s.log.Warn("failed to load known future events, skipping deletion pass", zap.Error(err))
		run.Errors = append(run.Errors, domain.RunError{
			ErrorName:    errNameSnapshot,
			ErrorMessage: err.Error(),
		})
	} else {
		for _, event := range known {
			candidates[event.ID] = struct{}{}
		}
	}

	for _, group := range s.config.GroupNames {
		result := s.importGroup(ctx, group, bearerToken)

		// A fetched id is proof of life whether or not the upsert worked,
		// while a failed fetch proves nothing: those events stay candidates
		// only if the group never reported them.
		for _, id := range result.fetchedIDs {
			delete(candidates, id)
		}
		run.TotalEventsSaved += result.saved

		if result.err != nil {
			run.FailedGroupNames = append(run.FailedGroupNames, group)
			run.Errors = append(run.Errors, domain.RunError{
				ErrorName:    result.errName,
				ErrorMessage: result.err.Error(),
				GroupName:    group,
			})
			s.log.Error("group import failed",
				zap.String("group", group),
				zap.Error(result.err))
			continue
		}

		run.SuccessGroupNames = append(run.SuccessGroupNames, group)
	}

	finishedAt := s.now().UTC()

	if len(candidates) > 0 {
		ids := make([]string, 0, len(candidates))
		for id := range candidates {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		s.log.Info("soft-deleting events no longer reported upstream",
			zap.Int("count", len(ids)))

		if err := s.store.SoftDeleteEvents(ctx, ids, finishedAt); err != nil {
			run.Errors = append(run.Errors, domain.RunError{
				ErrorName:    errNameDelete,
				ErrorMessage: err.Error(),
			})
			s.log.Error("soft-delete pass failed", zap.Error(err))
		}
	}

	run.FinishedAt = finishedAt
	s.appendRunLog(ctx, run)

	s.log.Info("reconciliation run finished",
		zap.String("run_id", run.ID),
		zap.Int("events_saved", run.TotalEventsSaved),
		zap.Strings("failed_groups", run.FailedGroupNames))

	return run, nil
}

func (s *Service) importGroup(ctx context.Context, group, bearerToken string) groupResult {
	events, err := s.fetcher.FetchGroupEvents(ctx, group, bearerToken)
	if err != nil {
		return groupResult{err: err, errName: errNameFetch}
	}

	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}

	saved, err := s.store.UpsertEvents(ctx, events)
	if err != nil {
		return groupResult{fetchedIDs: ids, saved: saved, err: err, errName: errNameStore}
	}

	s.log.Info("imported events for group",
		zap.String("group", group),
		zap.Int("count", saved))

	return groupResult{fetchedIDs: ids, saved: saved}
}

// appendRunLog reports but never propagates failures: the reconciliation
// work is already committed and must not be invalidated by a bookkeeping
// write.
func (s *Service) appendRunLog(ctx context.Context, run domain.RunLog) {
	if err := s.runLogs.Append(ctx, run); err != nil {
		s.log.Error("failed to write run log",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
}
