package rubric_test

import (
	"testing"

	"github.com/ensemble-works/mpa-server/internal/rubric"
)

func TestGradeOneKeySortsArguments(t *testing.T) {
	perms := [][3]int{{3, 2, 1}, {1, 2, 3}, {2, 3, 1}, {3, 1, 2}, {1, 3, 2}, {2, 1, 3}}
	for _, p := range perms {
		if got := rubric.GradeOneKey(p[0], p[1], p[2]); got != "123" {
			t.Errorf("GradeOneKey(%v) = %q, want \"123\"", p, got)
		}
	}
	if got := rubric.GradeOneKey(5, 5, 5); got != "555" {
		t.Errorf("GradeOneKey(5,5,5) = %q", got)
	}
}

func TestGradeOneTableShape(t *testing.T) {
	if n := rubric.GradeOneTableSize(); n != 28 {
		t.Fatalf("table has %d entries, want 28", n)
	}
	valid := map[string]bool{"I": true, "II": true, "III": true, "IV": true, "V": true}
	for key, label := range rubric.GradeOneLabels() {
		if len(key) != 3 {
			t.Errorf("malformed key %q", key)
		}
		if !valid[label] {
			t.Errorf("key %q maps to unknown label %q", key, label)
		}
	}
}

func TestGradeOneUndefinedCombinations(t *testing.T) {
	undefined := [][3]int{
		{1, 1, 5}, {1, 2, 5}, {1, 3, 5}, {1, 4, 5}, {1, 5, 5},
		{2, 3, 5}, {2, 4, 5},
	}
	for _, u := range undefined {
		if label, ok := rubric.ResolveGradeOne(u[0], u[1], u[2]); ok {
			t.Errorf("combination %v should be undefined, got %q", u, label)
		}
	}
	// "135" in any order is the canonical undefined case
	if _, ok := rubric.ResolveGradeOne(1, 5, 3); ok {
		t.Error("ratings {1,5,3} must have no defined outcome")
	}
}

func TestGradeOneDefinedCombinations(t *testing.T) {
	cases := []struct {
		ratings [3]int
		want    string
	}{
		{[3]int{1, 1, 1}, "I"},
		{[3]int{1, 1, 4}, "I"},
		{[3]int{2, 2, 2}, "II"},
		{[3]int{1, 2, 2}, "II"},
		{[3]int{3, 3, 3}, "III"},
		{[3]int{2, 3, 4}, "III"},
		{[3]int{4, 4, 4}, "IV"},
		{[3]int{3, 4, 5}, "IV"},
		{[3]int{5, 5, 5}, "V"},
		{[3]int{2, 5, 5}, "V"},
	}
	for _, c := range cases {
		got, ok := rubric.ResolveGradeOne(c.ratings[0], c.ratings[1], c.ratings[2])
		if !ok || got != c.want {
			t.Errorf("ResolveGradeOne(%v) = %q,%v, want %q", c.ratings, got, ok, c.want)
		}
	}
}

func TestRequiredPositions(t *testing.T) {
	if got := rubric.RequiredPositions(rubric.GradeOne); len(got) != 3 {
		t.Fatalf("grade I requires %d positions, want 3", len(got))
	}
	for _, g := range []rubric.Grade{"II", "III", "IV", "V", "VI"} {
		got := rubric.RequiredPositions(g)
		if len(got) != 4 {
			t.Fatalf("grade %s requires %d positions, want 4", g, len(got))
		}
		if got[3] != rubric.PositionSight {
			t.Fatalf("grade %s must include the sight position", g)
		}
	}
}
