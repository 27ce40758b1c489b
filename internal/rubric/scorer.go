package rubric

// Caption totals run from 7 (straight A's) to 35 (straight F's);
// lower is better.
const (
	MinTotal = 7
	MaxTotal = 35
)

// LetterValue maps a caption letter grade to its numeric value.
// Anything outside A–F counts as absent and contributes zero; absence
// is not an error here, it simply yields N/A downstream.
func LetterValue(letter string) int {
	switch letter {
	case "A":
		return 1
	case "B":
		return 2
	case "C":
		return 3
	case "D":
		return 4
	case "F":
		return 5
	default:
		return 0
	}
}

// CaptionTotal sums the letter values over the whole sheet.
func CaptionTotal(cs CaptionSet) int {
	total := 0
	for _, c := range cs {
		total += LetterValue(c.GradeLetter)
	}
	return total
}

// Rating is a judge's final ordinal rating. Value 0 means no rating
// (label "N/A"); valid ratings are 1 ("I") through 5 ("V").
type Rating struct {
	Label string
	Value int
}

var RatingNA = Rating{Label: "N/A", Value: 0}

// FinalRating maps a caption total onto the rating bands. The bands
// are contiguous and exhaustive over [7,35]; anything outside is N/A.
func FinalRating(total int) Rating {
	switch {
	case total >= 7 && total <= 10:
		return Rating{Label: "I", Value: 1}
	case total >= 11 && total <= 17:
		return Rating{Label: "II", Value: 2}
	case total >= 18 && total <= 24:
		return Rating{Label: "III", Value: 3}
	case total >= 25 && total <= 31:
		return Rating{Label: "IV", Value: 4}
	case total >= 32 && total <= 35:
		return Rating{Label: "V", Value: 5}
	default:
		return RatingNA
	}
}
