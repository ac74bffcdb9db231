// Package pipeline orchestrates one run: fetch the reference changeset,
// derive differences, confirm them with the user, apply the confirmed
// batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tildaslashalef/prtwin/internal/apply"
	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/difference"
	"github.com/tildaslashalef/prtwin/internal/llm"
	"github.com/tildaslashalef/prtwin/internal/loggy"
	"github.com/tildaslashalef/prtwin/internal/ulid"
)

// ErrCancelled indicates the run was aborted before completion. A
// cancelled run is a distinct outcome, not a failure of any stage.
var ErrCancelled = errors.New("run cancelled")

// ErrNoDifferences indicates derivation produced an empty batch: the
// intent is already satisfied by the reference
var ErrNoDifferences = errors.New("no differences derived")

// Action is the user's decision for one proposed difference
type Action string

const (
	// ActionAccept confirms the difference as presented
	ActionAccept Action = "accept"
	// ActionReject discards the difference
	ActionReject Action = "reject"
	// ActionEdit replaces the instruction and re-presents the difference
	ActionEdit Action = "edit"
)

// Decision carries one confirmation choice
type Decision struct {
	Action   Action
	Override string // replacement instruction for ActionEdit
}

// ConfirmRequest carries one pending difference together with the
// context needed to present it
type ConfirmRequest struct {
	Reference  *changeset.ChangeSet
	Difference *difference.Difference
	Position   int // 1-based count of prompts shown so far this run
	Total      int // number of derived differences
}

// ConfirmFunc resolves one pending difference. It is called once per
// pending difference per confirmation round; edited differences come
// back in the next round.
type ConfirmFunc func(ctx context.Context, req ConfirmRequest) (Decision, error)

// ChangeSetFetcher retrieves the reference changeset
type ChangeSetFetcher interface {
	FetchChangeSet(ctx context.Context, prURL string) (*changeset.ChangeSet, error)
}

// Deriver produces proposed differences from the reference and intent
type Deriver interface {
	Derive(ctx context.Context, cs *changeset.ChangeSet, intent string) ([]*difference.Difference, error)
}

// Applier materializes confirmed differences into a new changeset
type Applier interface {
	Apply(ctx context.Context, ref *changeset.ChangeSet, confirmed []*difference.Difference, opts apply.Options) (*apply.Result, error)
}

// Outcome is the full result of one run
type Outcome struct {
	RunID       string
	Reference   *changeset.ChangeSet
	Differences []*difference.Difference // every derived difference with its final status
	Result      *apply.Result
}

// Service drives runs end to end
type Service struct {
	fetcher ChangeSetFetcher
	deriver Deriver
	applier Applier
	cost    *llm.Tracker
	config  *config.Config
	logger  *loggy.Logger
}

// NewService creates a new pipeline service
func NewService(fetcher ChangeSetFetcher, deriver Deriver, applier Applier, cost *llm.Tracker, cfg *config.Config, logger *loggy.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		deriver: deriver,
		applier: applier,
		cost:    cost,
		config:  cfg,
		logger:  logger,
	}
}

// Usage returns the cumulative LLM spend recorded so far
func (s *Service) Usage() llm.Usage {
	if s.cost == nil {
		return llm.Usage{}
	}
	return s.cost.Usage()
}

// Calls returns the number of LLM calls recorded so far
func (s *Service) Calls() int {
	if s.cost == nil {
		return 0
	}
	return s.cost.Calls()
}

// Run executes one full pipeline pass. Aborts at any stage surface as
// ErrCancelled; an empty derivation surfaces as ErrNoDifferences with
// the fetched reference attached to the outcome.
func (s *Service) Run(ctx context.Context, prURL, intent string, confirm ConfirmFunc) (*Outcome, error) {
	runID := ulid.RunID()
	ctx = loggy.WithRunID(ctx, runID)

	s.logger.Info("Starting run", "run_id", runID, "ref", prURL)

	outcome := &Outcome{RunID: runID}

	ref, err := s.fetcher.FetchChangeSet(ctx, prURL)
	if err != nil {
		return nil, s.wrapStageErr("fetching reference changeset", err)
	}
	outcome.Reference = ref

	diffs, err := s.deriver.Derive(ctx, ref, intent)
	if err != nil {
		return nil, s.wrapStageErr("deriving differences", err)
	}
	outcome.Differences = diffs

	if len(diffs) == 0 {
		s.logger.Info("Reference already satisfies intent", "run_id", runID)
		return outcome, ErrNoDifferences
	}

	s.logger.Info("Derived differences", "run_id", runID, "count", len(diffs))

	tracker := difference.NewTracker(diffs)
	if err := s.confirmAll(ctx, ref, tracker, len(diffs), confirm); err != nil {
		return nil, err
	}

	confirmed, err := tracker.Finalize()
	if err != nil {
		return nil, fmt.Errorf("finalizing confirmation: %w", err)
	}

	result, err := s.applier.Apply(ctx, ref, confirmed, apply.Options{
		IncludeUnchanged: s.config.Apply.IncludeUnchanged,
		Concurrency:      s.config.Apply.Concurrency,
	})
	if err != nil {
		return nil, s.wrapStageErr("applying confirmed differences", err)
	}
	outcome.Result = result

	s.logger.Info("Run complete",
		"run_id", runID,
		"accepted", len(confirmed),
		"applied", len(result.Applied),
		"conflicts", len(result.Conflicts))

	return outcome, nil
}

// confirmAll walks pending differences until every one is terminal.
// Edits keep a difference pending, so it is re-presented with its
// override in place on the next round.
func (s *Service) confirmAll(ctx context.Context, ref *changeset.ChangeSet, tracker *difference.Tracker, total int, confirm ConfirmFunc) error {
	position := 0
	for {
		pending := tracker.Pending()
		if len(pending) == 0 {
			return nil
		}

		for _, d := range pending {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrCancelled, err)
			}

			position++
			decision, err := confirm(ctx, ConfirmRequest{
				Reference:  ref,
				Difference: d,
				Position:   position,
				Total:      total,
			})
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
					return fmt.Errorf("%w: confirmation aborted", ErrCancelled)
				}
				return fmt.Errorf("confirming difference %s: %w", d.ID, err)
			}

			switch decision.Action {
			case ActionAccept:
				err = tracker.Accept(d.ID)
			case ActionReject:
				err = tracker.Reject(d.ID)
			case ActionEdit:
				err = tracker.Edit(d.ID, decision.Override)
			default:
				err = fmt.Errorf("unknown action %q", decision.Action)
			}
			if err != nil {
				return fmt.Errorf("confirming difference %s: %w", d.ID, err)
			}

			s.logger.Debug("Difference decided",
				"difference", d.ID,
				"action", decision.Action,
				"status", d.Status)
		}
	}
}

// wrapStageErr converts context cancellation into the cancelled outcome
// and annotates everything else with its stage
func (s *Service) wrapStageErr(stage string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrCancelled, stage)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
