package rubric

import "github.com/ensemble-works/mpa-server/internal/apperr"

// NumCaptions is the number of scored categories on every form.
const NumCaptions = 7

type CaptionKey string

var stageCaptionKeys = [NumCaptions]CaptionKey{
	"tone",
	"intonation",
	"balance_blend",
	"technique",
	"rhythm",
	"interpretation",
	"musical_effect",
}

var sightCaptionKeys = [NumCaptions]CaptionKey{
	"preparation",
	"pitch_accuracy",
	"rhythm_accuracy",
	"articulation",
	"dynamics",
	"style_tempo",
	"adaptability",
}

// KeysFor returns the closed, ordered key list for a form.
func KeysFor(form FormType) [NumCaptions]CaptionKey {
	if form == FormSight {
		return sightCaptionKeys
	}
	return stageCaptionKeys
}

// Caption is one scored category: a letter grade, an optional modifier
// (+/-, cosmetic only), and the judge's comment.
type Caption struct {
	Key           CaptionKey `json:"key"`
	GradeLetter   string     `json:"grade_letter"`
	GradeModifier string     `json:"grade_modifier,omitempty"`
	Comment       string     `json:"comment,omitempty"`
}

// CaptionSet is a complete sheet. The fixed size makes the
// "exactly seven known categories" invariant structural.
type CaptionSet [NumCaptions]Caption

// NewCaptionSet returns an empty sheet with the form's keys in place.
func NewCaptionSet(form FormType) CaptionSet {
	var cs CaptionSet
	for i, k := range KeysFor(form) {
		cs[i].Key = k
	}
	return cs
}

// Validate checks that the sheet carries the form's keys in canonical
// order and only recognized letters (empty = not yet scored).
func (cs CaptionSet) Validate(form FormType) error {
	keys := KeysFor(form)
	for i, c := range cs {
		if c.Key != keys[i] {
			return apperr.Newf(apperr.InvalidArgument,
				"caption %d: expected key %q, got %q", i, keys[i], c.Key)
		}
		switch c.GradeLetter {
		case "", "A", "B", "C", "D", "F":
		default:
			return apperr.Newf(apperr.InvalidArgument,
				"caption %q: unknown grade letter %q", c.Key, c.GradeLetter)
		}
	}
	return nil
}

// Complete reports whether every caption carries a scorable letter.
func (cs CaptionSet) Complete() bool {
	for _, c := range cs {
		if LetterValue(c.GradeLetter) == 0 {
			return false
		}
	}
	return true
}
