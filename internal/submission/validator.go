package submission

import (
	"github.com/ensemble-works/mpa-server/internal/rubric"
)

// Reason says which release-readiness check failed. Reasons are
// diagnostics for admins; directors only ever see "incomplete".
type Reason string

const (
	ReasonReady         Reason = ""
	ReasonNotSubmitted  Reason = "not_submitted"
	ReasonNotLocked     Reason = "not_locked"
	ReasonNoAudio       Reason = "no_audio"
	ReasonCaptionsShort Reason = "captions_incomplete"
	ReasonNoTotal       Reason = "total_missing"
	ReasonNoRating      Reason = "rating_missing"
	ReasonFormMismatch  Reason = "form_position_mismatch"
	ReasonTotalTampered Reason = "total_mismatch"
	ReasonTotalRange    Reason = "total_out_of_range"
	ReasonRatingStale   Reason = "rating_mismatch"
	ReasonLabelStale    Reason = "label_mismatch"
)

// ReleaseReady recomputes the submission's score from its captions and
// confirms the stored aggregates agree. Stored totals and ratings are
// client-supplied at save time and cannot be trusted at release time:
// this is the tamper/staleness gate in front of every release.
func ReleaseReady(s *Submission) (bool, Reason) {
	if s.Status != StatusSubmitted {
		return false, ReasonNotSubmitted
	}
	if !s.Locked {
		return false, ReasonNotLocked
	}
	if s.AudioURL == "" {
		return false, ReasonNoAudio
	}
	if !s.Captions.Complete() {
		return false, ReasonCaptionsShort
	}
	if s.CaptionScoreTotal == nil {
		return false, ReasonNoTotal
	}
	if s.ComputedFinalRatingJudge == nil {
		return false, ReasonNoRating
	}
	if rubric.FormFor(s.JudgePosition) != s.FormType {
		return false, ReasonFormMismatch
	}

	total := rubric.CaptionTotal(s.Captions)
	if total != *s.CaptionScoreTotal {
		return false, ReasonTotalTampered
	}
	if total < rubric.MinTotal || total > rubric.MaxTotal {
		return false, ReasonTotalRange
	}

	rating := rubric.FinalRating(total)
	if rating.Value != *s.ComputedFinalRatingJudge {
		return false, ReasonRatingStale
	}
	if s.ComputedFinalRatingLabel != "" && s.ComputedFinalRatingLabel != rating.Label {
		return false, ReasonLabelStale
	}
	return true, ReasonReady
}
