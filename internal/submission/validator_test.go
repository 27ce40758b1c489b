package submission_test

import (
	"testing"

	"github.com/ensemble-works/mpa-server/internal/rubric"
	"github.com/ensemble-works/mpa-server/internal/submission"
)

// validSubmission builds a submission whose aggregates are derived from
// its own captions, i.e. exactly what an honest client stores.
func validSubmission(pos rubric.JudgePosition, letters [rubric.NumCaptions]string) *submission.Submission {
	form := rubric.FormFor(pos)
	cs := rubric.NewCaptionSet(form)
	for i := range cs {
		cs[i].GradeLetter = letters[i]
	}
	total := rubric.CaptionTotal(cs)
	rating := rubric.FinalRating(total)
	return &submission.Submission{
		ID:                       submission.DocID("ev1", "ens1", pos),
		EventID:                  "ev1",
		EnsembleID:               "ens1",
		JudgePosition:            pos,
		JudgeUID:                 "judge-1",
		FormType:                 form,
		Status:                   submission.StatusSubmitted,
		Locked:                   true,
		Captions:                 cs,
		CaptionScoreTotal:        &total,
		ComputedFinalRatingJudge: &rating.Value,
		ComputedFinalRatingLabel: rating.Label,
		AudioURL:                 "file:///audio/ev1/ens1.webm",
	}
}

var allB = [7]string{"B", "B", "B", "B", "B", "B", "B"}

func TestReleaseReadyRoundTrip(t *testing.T) {
	for _, pos := range []rubric.JudgePosition{rubric.PositionStage1, rubric.PositionSight} {
		s := validSubmission(pos, allB)
		if ok, reason := submission.ReleaseReady(s); !ok {
			t.Errorf("position %s: self-consistent submission not ready: %s", pos, reason)
		}
	}
}

func TestReleaseReadyTamperDetection(t *testing.T) {
	s := validSubmission(rubric.PositionStage1, allB)
	for _, bogus := range []int{0, 7, 13, 35, 99, -1} {
		if bogus == *s.CaptionScoreTotal {
			continue
		}
		tampered := *s
		tampered.CaptionScoreTotal = &bogus
		if ok, reason := submission.ReleaseReady(&tampered); ok {
			t.Errorf("tampered total %d accepted", bogus)
		} else if reason != submission.ReasonTotalTampered {
			t.Errorf("tampered total %d: reason %s, want %s", bogus, reason, submission.ReasonTotalTampered)
		}
	}
}

func TestReleaseReadyReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *submission.Submission)
		want   submission.Reason
	}{
		{"draft", func(s *submission.Submission) { s.Status = submission.StatusDraft }, submission.ReasonNotSubmitted},
		{"released", func(s *submission.Submission) { s.Status = submission.StatusReleased }, submission.ReasonNotSubmitted},
		{"unlocked", func(s *submission.Submission) { s.Locked = false }, submission.ReasonNotLocked},
		{"no audio", func(s *submission.Submission) { s.AudioURL = "" }, submission.ReasonNoAudio},
		{"missing caption", func(s *submission.Submission) { s.Captions[3].GradeLetter = "" }, submission.ReasonCaptionsShort},
		{"no total", func(s *submission.Submission) { s.CaptionScoreTotal = nil }, submission.ReasonNoTotal},
		{"no rating", func(s *submission.Submission) { s.ComputedFinalRatingJudge = nil }, submission.ReasonNoRating},
		{"form mismatch", func(s *submission.Submission) { s.FormType = rubric.FormSight }, submission.ReasonFormMismatch},
		{"stale rating", func(s *submission.Submission) { v := 5; s.ComputedFinalRatingJudge = &v }, submission.ReasonRatingStale},
		{"stale label", func(s *submission.Submission) { s.ComputedFinalRatingLabel = "V" }, submission.ReasonLabelStale},
	}
	for _, c := range cases {
		s := validSubmission(rubric.PositionStage2, allB)
		c.mutate(s)
		ok, reason := submission.ReleaseReady(s)
		if ok {
			t.Errorf("%s: expected not ready", c.name)
			continue
		}
		if reason != c.want {
			t.Errorf("%s: reason %s, want %s", c.name, reason, c.want)
		}
	}
}

func TestReleaseReadyAcceptsEmptyLabel(t *testing.T) {
	// the label is optional; only a stored, wrong label fails
	s := validSubmission(rubric.PositionStage3, allB)
	s.ComputedFinalRatingLabel = ""
	if ok, reason := submission.ReleaseReady(s); !ok {
		t.Fatalf("empty label should pass: %s", reason)
	}
}
