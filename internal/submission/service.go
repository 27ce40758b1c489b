package submission

import (
	"context"
	"errors"
	"time"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/rubric"
)

type Service struct {
	store docstore.Store
	now   func() time.Time
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SaveInput carries a judge's scoresheet. The aggregate fields are
// client-computed and stored as given; the release validator recomputes
// them before anything becomes visible.
type SaveInput struct {
	Captions                 rubric.CaptionSet `json:"captions"`
	CaptionScoreTotal        *int              `json:"caption_score_total,omitempty"`
	ComputedFinalRatingJudge *int              `json:"computed_final_rating_judge,omitempty"`
	ComputedFinalRatingLabel string            `json:"computed_final_rating_label,omitempty"`
	AudioURL                 string            `json:"audio_url,omitempty"`
	Transcript               string            `json:"transcript,omitempty"`
}

// SaveCaptions upserts the judge's working copy. The first save creates
// the submission as a draft owned by the acting judge.
func (s *Service) SaveCaptions(ctx context.Context, actor rbac.Actor, eventID, ensembleID string, pos rubric.JudgePosition, in SaveInput) (*Submission, error) {
	form := rubric.FormFor(pos)
	if err := in.Captions.Validate(form); err != nil {
		return nil, err
	}
	id := DocID(eventID, ensembleID, pos)
	var out *Submission
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		sub, err := getTx(ctx, tx, id)
		switch {
		case err == nil:
			if err := mayEdit(actor, sub); err != nil {
				return err
			}
		case apperr.IsCode(err, apperr.NotFound):
			sub = &Submission{
				ID:            id,
				EventID:       eventID,
				EnsembleID:    ensembleID,
				JudgePosition: pos,
				JudgeUID:      actor.UID,
				FormType:      form,
				Status:        StatusDraft,
				CreatedAt:     s.now().Unix(),
			}
		default:
			return err
		}
		sub.Captions = in.Captions
		sub.CaptionScoreTotal = in.CaptionScoreTotal
		sub.ComputedFinalRatingJudge = in.ComputedFinalRatingJudge
		sub.ComputedFinalRatingLabel = in.ComputedFinalRatingLabel
		if in.AudioURL != "" {
			sub.AudioURL = in.AudioURL
		}
		if in.Transcript != "" {
			sub.Transcript = in.Transcript
		}
		sub.UpdatedAt = s.now().Unix()
		out = sub
		return tx.Set(Collection, id, sub)
	})
	return out, err
}

// Submit moves the submission to submitted. A first-ever submit always
// locks; a resubmit of an existing submission keeps whatever lock state
// it had, so an admin unlock survives the judge's corrected resubmit.
func (s *Service) Submit(ctx context.Context, actor rbac.Actor, eventID, ensembleID string, pos rubric.JudgePosition, in SaveInput) (*Submission, error) {
	form := rubric.FormFor(pos)
	if err := in.Captions.Validate(form); err != nil {
		return nil, err
	}
	id := DocID(eventID, ensembleID, pos)
	var out *Submission
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		sub, err := getTx(ctx, tx, id)
		switch {
		case err == nil:
			if err := mayEdit(actor, sub); err != nil {
				return err
			}
		case apperr.IsCode(err, apperr.NotFound):
			sub = &Submission{
				ID:            id,
				EventID:       eventID,
				EnsembleID:    ensembleID,
				JudgePosition: pos,
				JudgeUID:      actor.UID,
				FormType:      form,
				Status:        StatusDraft,
				CreatedAt:     s.now().Unix(),
			}
		default:
			return err
		}
		if sub.Status == StatusReleased {
			return apperr.New(apperr.FailedPrecondition, "submission is released; unrelease first")
		}

		sub.Captions = in.Captions
		sub.CaptionScoreTotal = in.CaptionScoreTotal
		sub.ComputedFinalRatingJudge = in.ComputedFinalRatingJudge
		sub.ComputedFinalRatingLabel = in.ComputedFinalRatingLabel
		if in.CaptionScoreTotal == nil {
			total := rubric.CaptionTotal(in.Captions)
			rating := rubric.FinalRating(total)
			sub.CaptionScoreTotal = &total
			sub.ComputedFinalRatingJudge = &rating.Value
			sub.ComputedFinalRatingLabel = rating.Label
		}
		if in.AudioURL != "" {
			sub.AudioURL = in.AudioURL
		}
		if in.Transcript != "" {
			sub.Transcript = in.Transcript
		}

		// A submission that has never been submitted locks now, whether
		// it was created here or saved earlier as a draft. Only a
		// resubmit of an already-submitted sheet keeps its lock state,
		// so an admin unlock survives the judge's correction.
		if sub.SubmittedAt == 0 {
			sub.Locked = true
		}
		sub.Status = StatusSubmitted
		now := s.now().Unix()
		sub.SubmittedAt = now
		sub.UpdatedAt = now
		out = sub
		return tx.Set(Collection, id, sub)
	})
	return out, err
}

// Lock is the admin re-lock of a submission after review.
func (s *Service) Lock(ctx context.Context, actor rbac.Actor, id string) (*Submission, error) {
	return s.setLocked(ctx, actor, id, true)
}

// Unlock lets the owning judge edit and resubmit without changing
// status. Admin only.
func (s *Service) Unlock(ctx context.Context, actor rbac.Actor, id string) (*Submission, error) {
	return s.setLocked(ctx, actor, id, false)
}

func (s *Service) setLocked(ctx context.Context, actor rbac.Actor, id string, locked bool) (*Submission, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.PermissionDenied, "lock state is admin-only")
	}
	var out *Submission
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		sub, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.Status == StatusReleased {
			return apperr.New(apperr.FailedPrecondition, "submission is released; unrelease first")
		}
		sub.Locked = locked
		sub.UpdatedAt = s.now().Unix()
		out = sub
		return tx.Set(Collection, id, sub)
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, actor rbac.Actor, id string) (*Submission, error) {
	var sub Submission
	if err := s.store.Get(ctx, Collection, id, &sub); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "submission %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Internal, "load submission", err)
	}
	if !actor.IsAdmin() && sub.JudgeUID != actor.UID {
		// directors see released scores through the release surface only
		if !(actor.Role == rbac.RoleDirector && sub.Status == StatusReleased && actor.School != "") {
			return nil, apperr.New(apperr.PermissionDenied, "not your submission")
		}
	}
	return &sub, nil
}

func getTx(ctx context.Context, tx docstore.Tx, id string) (*Submission, error) {
	var sub Submission
	if err := tx.Get(ctx, Collection, id, &sub); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "submission %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Internal, "load submission", err)
	}
	return &sub, nil
}

func mayEdit(actor rbac.Actor, sub *Submission) error {
	if actor.IsAdmin() {
		return nil
	}
	if sub.JudgeUID != actor.UID {
		return apperr.New(apperr.PermissionDenied, "not your submission")
	}
	if sub.Locked {
		return apperr.New(apperr.FailedPrecondition, "submission is locked; ask an admin to unlock")
	}
	if sub.Status == StatusReleased {
		return apperr.New(apperr.FailedPrecondition, "submission is released")
	}
	return nil
}
