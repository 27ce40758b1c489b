// Package release coordinates the all-or-nothing release of an
// ensemble's scheduled submissions: grade resolution, required judge
// slots, per-submission validation, the grade-I resolution gate, and a
// single atomic status flip.
package release

import (
	"context"
	"errors"
	"time"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
	"github.com/ensemble-works/mpa-server/internal/event"
	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/rubric"
	"github.com/ensemble-works/mpa-server/internal/submission"
)

type Orchestrator struct {
	store docstore.Store
	now   func() time.Time
}

func NewOrchestrator(store docstore.Store) *Orchestrator {
	return &Orchestrator{store: store, now: time.Now}
}

// Result is the success payload of a release or unrelease.
type Result struct {
	EventID      string                 `json:"event_id"`
	EnsembleID   string                 `json:"ensemble_id"`
	Grade        rubric.Grade           `json:"grade"`
	Positions    []rubric.JudgePosition `json:"positions"`
	OverallLabel string                 `json:"overall_label,omitempty"`
	ReleasedAt   int64                  `json:"released_at,omitempty"`
}

// Release validates and releases every required submission of the
// ensemble in one transaction. Any failure leaves every submission
// untouched; partial release cannot happen.
func (o *Orchestrator) Release(ctx context.Context, actor rbac.Actor, eventID, ensembleID string) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.PermissionDenied, "release is admin-only")
	}
	if eventID == "" || ensembleID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "event id and ensemble id required")
	}
	var res *Result
	err := o.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		grade, err := event.ResolveGrade(ctx, tx, eventID, ensembleID)
		if err != nil {
			return err
		}
		positions := rubric.RequiredPositions(grade)
		subs, err := loadRequired(ctx, tx, eventID, ensembleID, positions)
		if err != nil {
			return err
		}

		for _, sub := range subs {
			if ok, reason := submission.ReleaseReady(sub); !ok {
				return apperr.Newf(apperr.FailedPrecondition,
					"submission %s is not release-ready: %s", sub.ID, reason)
			}
		}

		overall := ""
		if grade == rubric.GradeOne {
			ratings := make([]int, 0, 3)
			for _, pos := range rubric.StagePositions {
				sub := subs[pos]
				if sub.ComputedFinalRatingJudge == nil {
					return apperr.Newf(apperr.FailedPrecondition,
						"grade I ensemble missing %s rating", pos)
				}
				ratings = append(ratings, *sub.ComputedFinalRatingJudge)
			}
			label, ok := rubric.ResolveGradeOne(ratings[0], ratings[1], ratings[2])
			if !ok {
				return apperr.Newf(apperr.FailedPrecondition,
					"grade I rating combination %s has no defined overall rating",
					rubric.GradeOneKey(ratings[0], ratings[1], ratings[2]))
			}
			overall = label
		}

		now := o.now().Unix()
		for _, pos := range positions {
			sub := subs[pos]
			sub.Status = submission.StatusReleased
			sub.ReleasedAt = now
			sub.ReleasedBy = actor.UID
			sub.UpdatedAt = now
			if err := tx.Set(submission.Collection, sub.ID, sub); err != nil {
				return err
			}
		}
		if err := stampEntry(ctx, tx, eventID, ensembleID, grade, overall, now); err != nil {
			return err
		}
		res = &Result{
			EventID:      eventID,
			EnsembleID:   ensembleID,
			Grade:        grade,
			Positions:    positions,
			OverallLabel: overall,
			ReleasedAt:   now,
		}
		return nil
	})
	return res, err
}

// Unrelease is the structural inverse: every required submission must
// currently be released; all revert to submitted atomically and the
// release stamps are cleared.
func (o *Orchestrator) Unrelease(ctx context.Context, actor rbac.Actor, eventID, ensembleID string) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.PermissionDenied, "unrelease is admin-only")
	}
	if eventID == "" || ensembleID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "event id and ensemble id required")
	}
	var res *Result
	err := o.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		grade, err := event.ResolveGrade(ctx, tx, eventID, ensembleID)
		if err != nil {
			return err
		}
		positions := rubric.RequiredPositions(grade)
		subs, err := loadRequired(ctx, tx, eventID, ensembleID, positions)
		if err != nil {
			return err
		}
		for _, pos := range positions {
			if subs[pos].Status != submission.StatusReleased {
				return apperr.Newf(apperr.FailedPrecondition,
					"submission %s is not released", subs[pos].ID)
			}
		}

		now := o.now().Unix()
		for _, pos := range positions {
			sub := subs[pos]
			sub.Status = submission.StatusSubmitted
			sub.ReleasedAt = 0
			sub.ReleasedBy = ""
			sub.UpdatedAt = now
			if err := tx.Set(submission.Collection, sub.ID, sub); err != nil {
				return err
			}
		}
		if err := stampEntry(ctx, tx, eventID, ensembleID, grade, "", 0); err != nil {
			return err
		}
		res = &Result{EventID: eventID, EnsembleID: ensembleID, Grade: grade, Positions: positions}
		return nil
	})
	return res, err
}

// loadRequired fetches every required submission by deterministic id.
// Any missing slot is fatal: partial release is never permitted.
func loadRequired(ctx context.Context, tx docstore.Tx, eventID, ensembleID string, positions []rubric.JudgePosition) (map[rubric.JudgePosition]*submission.Submission, error) {
	subs := make(map[rubric.JudgePosition]*submission.Submission, len(positions))
	for _, pos := range positions {
		id := submission.DocID(eventID, ensembleID, pos)
		var sub submission.Submission
		if err := tx.Get(ctx, submission.Collection, id, &sub); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil, apperr.Newf(apperr.FailedPrecondition,
					"required submission %s is missing", id)
			}
			return nil, apperr.Wrap(apperr.Internal, "load submission "+id, err)
		}
		subs[pos] = &sub
	}
	return subs, nil
}

func stampEntry(ctx context.Context, tx docstore.Tx, eventID, ensembleID string, grade rubric.Grade, overall string, releasedAt int64) error {
	id := event.EntryID(eventID, ensembleID)
	var entry event.Entry
	if err := tx.Get(ctx, "entries", id, &entry); err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			return apperr.Wrap(apperr.Internal, "load entry", err)
		}
		entry = event.Entry{EventID: eventID, EnsembleID: ensembleID, PerformanceGrade: grade}
	}
	entry.OverallLabel = overall
	entry.ReleasedAt = releasedAt
	return tx.Set("entries", id, entry)
}
