// Package submission holds scheduled submissions: one scoresheet per
// event/ensemble/judge-position triple, created on the judge's first
// save and released only through the release orchestrator.
package submission

import (
	"github.com/ensemble-works/mpa-server/internal/rubric"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusReleased  Status = "released"
)

const Collection = "submissions"

// Submission is keyed by eventID_ensembleID_judgePosition. Locked is
// independent of Status: it governs whether the owning judge may still
// edit, and admins flip it without touching Status.
type Submission struct {
	ID            string               `json:"id"`
	EventID       string               `json:"event_id"`
	EnsembleID    string               `json:"ensemble_id"`
	JudgePosition rubric.JudgePosition `json:"judge_position"`
	JudgeUID      string               `json:"judge_uid"`
	FormType      rubric.FormType      `json:"form_type"`

	Status Status `json:"status"`
	Locked bool   `json:"locked"`

	Captions                 rubric.CaptionSet `json:"captions"`
	CaptionScoreTotal        *int              `json:"caption_score_total,omitempty"`
	ComputedFinalRatingJudge *int              `json:"computed_final_rating_judge,omitempty"`
	ComputedFinalRatingLabel string            `json:"computed_final_rating_label,omitempty"`

	AudioURL   string `json:"audio_url,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	SubmittedAt int64  `json:"submitted_at,omitempty"`
	ReleasedAt  int64  `json:"released_at,omitempty"`
	ReleasedBy  string `json:"released_by,omitempty"`
}

// DocID builds the deterministic document id for a submission.
func DocID(eventID, ensembleID string, pos rubric.JudgePosition) string {
	return eventID + "_" + ensembleID + "_" + string(pos)
}
