package rubric

import (
	"fmt"
	"sort"
)

// Grade-I ensembles are scored by the three stage judges only; their
// overall rating comes from this fixed table instead of an average.
// Keys are the three ratings sorted ascending and concatenated. The
// seven widest-spread combinations (any 1 paired with a 5, plus the
// all-distinct "235" and "245") have no defined outcome: a lookup miss
// means the combination is undefined, not that data is corrupt.
var gradeOneTable = map[string]string{
	// superior
	"111": "I",
	"112": "I",
	"113": "I",
	"114": "I",
	// excellent
	"122": "II",
	"123": "II",
	"124": "II",
	"222": "II",
	"223": "II",
	"224": "II",
	"225": "II",
	// good
	"133": "III",
	"134": "III",
	"233": "III",
	"234": "III",
	"333": "III",
	"334": "III",
	"335": "III",
	// fair
	"144": "IV",
	"244": "IV",
	"344": "IV",
	"345": "IV",
	"444": "IV",
	"445": "IV",
	// poor
	"255": "V",
	"355": "V",
	"455": "V",
	"555": "V",
}

// GradeOneKey builds the table key from three stage ratings: sort
// ascending, concatenate digits. Order of arguments never matters.
func GradeOneKey(r1, r2, r3 int) string {
	rs := []int{r1, r2, r3}
	sort.Ints(rs)
	return fmt.Sprintf("%d%d%d", rs[0], rs[1], rs[2])
}

// ResolveGradeOne looks up the overall label for three stage ratings.
// ok is false when the combination has no defined outcome.
func ResolveGradeOne(r1, r2, r3 int) (label string, ok bool) {
	label, ok = gradeOneTable[GradeOneKey(r1, r2, r3)]
	return label, ok
}

// GradeOneTableSize reports the number of defined combinations.
func GradeOneTableSize() int { return len(gradeOneTable) }

// GradeOneLabels returns a copy of the table for inspection.
func GradeOneLabels() map[string]string {
	out := make(map[string]string, len(gradeOneTable))
	for k, v := range gradeOneTable {
		out[k] = v
	}
	return out
}
