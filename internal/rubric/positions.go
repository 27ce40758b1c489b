// Package rubric holds the scoring domain: judge positions, caption
// sheets, the letter-grade scorer, and the grade-one resolution table.
// Everything here is pure; persistence and permissions live elsewhere.
package rubric

import "github.com/ensemble-works/mpa-server/internal/apperr"

type JudgePosition string

const (
	PositionStage1 JudgePosition = "stage1"
	PositionStage2 JudgePosition = "stage2"
	PositionStage3 JudgePosition = "stage3"
	PositionSight  JudgePosition = "sight"
)

var StagePositions = []JudgePosition{PositionStage1, PositionStage2, PositionStage3}

func ParsePosition(s string) (JudgePosition, error) {
	switch JudgePosition(s) {
	case PositionStage1, PositionStage2, PositionStage3, PositionSight:
		return JudgePosition(s), nil
	}
	return "", apperr.Newf(apperr.InvalidArgument, "unknown judge position %q", s)
}

type FormType string

const (
	FormStage FormType = "stage"
	FormSight FormType = "sight"
)

// FormFor maps a judge position to the form it scores on: the sight
// position uses the sight-reading sheet, every stage position the
// stage sheet.
func FormFor(pos JudgePosition) FormType {
	if pos == PositionSight {
		return FormSight
	}
	return FormStage
}

// Grade is an ensemble's competitive difficulty tier, "I" through "VI".
type Grade string

const GradeOne Grade = "I"

// RequiredPositions lists the judge slots that must have a complete
// submission before an ensemble's scores can be released. Grade-I
// ensembles are not sight-read; everyone else is.
func RequiredPositions(g Grade) []JudgePosition {
	if g == GradeOne {
		return []JudgePosition{PositionStage1, PositionStage2, PositionStage3}
	}
	return []JudgePosition{PositionStage1, PositionStage2, PositionStage3, PositionSight}
}
