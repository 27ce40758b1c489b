package release_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
	"github.com/ensemble-works/mpa-server/internal/event"
	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/release"
	"github.com/ensemble-works/mpa-server/internal/rubric"
	"github.com/ensemble-works/mpa-server/internal/submission"
)

var admin = rbac.Actor{UID: "admin-1", Role: rbac.RoleAdmin}

// seedSubmission writes a release-ready submission whose caption sheet
// yields the requested judge rating.
func seedSubmission(t *testing.T, store docstore.Store, eventID, ensembleID string, pos rubric.JudgePosition, rating int) *submission.Submission {
	t.Helper()
	letters := map[int]string{1: "A", 2: "B", 3: "C", 4: "D", 5: "F"}
	form := rubric.FormFor(pos)
	cs := rubric.NewCaptionSet(form)
	for i := range cs {
		cs[i].GradeLetter = letters[rating]
	}
	total := rubric.CaptionTotal(cs)
	r := rubric.FinalRating(total)
	if r.Value != rating {
		t.Fatalf("fixture bug: uniform %s sheet rates %d, want %d", letters[rating], r.Value, rating)
	}
	sub := &submission.Submission{
		ID:                       submission.DocID(eventID, ensembleID, pos),
		EventID:                  eventID,
		EnsembleID:               ensembleID,
		JudgePosition:            pos,
		JudgeUID:                 "judge-" + string(pos),
		FormType:                 form,
		Status:                   submission.StatusSubmitted,
		Locked:                   true,
		Captions:                 cs,
		CaptionScoreTotal:        &total,
		ComputedFinalRatingJudge: &r.Value,
		ComputedFinalRatingLabel: r.Label,
		AudioURL:                 "file:///audio/" + string(pos) + ".webm",
	}
	if err := store.RunBatch(context.Background(), []docstore.Write{
		{Collection: submission.Collection, ID: sub.ID, Data: sub},
	}); err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	return sub
}

func seedEnsemble(t *testing.T, store docstore.Store, ensembleID string, grade rubric.Grade) {
	t.Helper()
	err := store.RunBatch(context.Background(), []docstore.Write{
		{Collection: "ensembles", ID: ensembleID, Data: event.Ensemble{ID: ensembleID, PerformanceGrade: grade}},
	})
	if err != nil {
		t.Fatalf("seed ensemble: %v", err)
	}
}

func getSub(t *testing.T, store docstore.Store, id string) *submission.Submission {
	t.Helper()
	var sub submission.Submission
	if err := store.Get(context.Background(), submission.Collection, id, &sub); err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return &sub
}

func TestReleaseHappyPathGradeThree(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedEnsemble(t, store, "ens1", "III")
	ratings := map[rubric.JudgePosition]int{
		rubric.PositionStage1: 2,
		rubric.PositionStage2: 2,
		rubric.PositionStage3: 3,
		rubric.PositionSight:  3,
	}
	for pos, rating := range ratings {
		seedSubmission(t, store, "ev1", "ens1", pos, rating)
	}

	res, err := release.NewOrchestrator(store).Release(ctx, admin, "ev1", "ens1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Grade != "III" || len(res.Positions) != 4 {
		t.Fatalf("result = %+v", res)
	}
	for pos := range ratings {
		sub := getSub(t, store, submission.DocID("ev1", "ens1", pos))
		if sub.Status != submission.StatusReleased {
			t.Errorf("%s: status %s, want released", pos, sub.Status)
		}
		if sub.ReleasedAt == 0 || sub.ReleasedBy != admin.UID {
			t.Errorf("%s: release stamps missing", pos)
		}
	}
}

func TestReleaseAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedEnsemble(t, store, "ens1", "III")
	for _, pos := range []rubric.JudgePosition{rubric.PositionStage1, rubric.PositionStage2, rubric.PositionStage3} {
		seedSubmission(t, store, "ev1", "ens1", pos, 2)
	}
	// the sight submission fails validation: stored total tampered
	bad := seedSubmission(t, store, "ev1", "ens1", rubric.PositionSight, 2)
	tampered := *bad
	bogus := 35
	tampered.CaptionScoreTotal = &bogus
	if err := store.RunBatch(ctx, []docstore.Write{
		{Collection: submission.Collection, ID: tampered.ID, Data: &tampered},
	}); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err := release.NewOrchestrator(store).Release(ctx, admin, "ev1", "ens1")
	if !apperr.IsCode(err, apperr.FailedPrecondition) {
		t.Fatalf("release: got %v, want failed_precondition", err)
	}
	if !strings.Contains(err.Error(), string(submission.ReasonTotalTampered)) {
		t.Errorf("error does not name the failing check: %v", err)
	}
	// nothing moved: all four remain submitted
	for _, pos := range rubric.RequiredPositions("III") {
		sub := getSub(t, store, submission.DocID("ev1", "ens1", pos))
		if sub.Status != submission.StatusSubmitted {
			t.Errorf("%s: status %s after failed release, want submitted", pos, sub.Status)
		}
	}
}

func TestReleaseMissingSubmissionIsFatal(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedEnsemble(t, store, "ens1", "II")
	// sight missing
	for _, pos := range rubric.StagePositions {
		seedSubmission(t, store, "ev1", "ens1", pos, 1)
	}
	_, err := release.NewOrchestrator(store).Release(ctx, admin, "ev1", "ens1")
	if !apperr.IsCode(err, apperr.FailedPrecondition) {
		t.Fatalf("got %v, want failed_precondition", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the missing submission: %v", err)
	}
}

func TestGradeOneUsesResolutionTable(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedEnsemble(t, store, "ens1", rubric.GradeOne)
	seedSubmission(t, store, "ev1", "ens1", rubric.PositionStage1, 1)
	seedSubmission(t, store, "ev1", "ens1", rubric.PositionStage2, 2)
	seedSubmission(t, store, "ev1", "ens1", rubric.PositionStage3, 2)

	res, err := release.NewOrchestrator(store).Release(ctx, admin, "ev1", "ens1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(res.Positions) != 3 {
		t.Fatalf("grade I released %d positions, want 3 (no sight)", len(res.Positions))
	}
	if res.OverallLabel != "II" {
		t.Fatalf("overall label = %q, want II for key 122", res.OverallLabel)
	}
	var entry event.Entry
	if err := store.Get(ctx, "entries", event.EntryID("ev1", "ens1"), &entry); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.OverallLabel != "II" || entry.ReleasedAt == 0 {
		t.Fatalf("entry not stamped: %+v", entry)
	}
}

func TestGradeOneUndefinedCombinationBlocksRelease(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedEnsemble(t, store, "ens1", rubric.GradeOne)
	// ratings {1,5,3}: every submission is individually valid, but the
	// sorted key "135" has no defined outcome
	seedSubmission(t, store, "ev1", "ens1", rubric.PositionStage1, 1)
	seedSubmission(t, store, "ev1", "ens1", rubric.PositionStage2, 5)
	seedSubmission(t, store, "ev1", "ens1", rubric.PositionStage3, 3)

	_, err := release.NewOrchestrator(store).Release(ctx, admin, "ev1", "ens1")
	if !apperr.IsCode(err, apperr.FailedPrecondition) {
		t.Fatalf("got %v, want failed_precondition", err)
	}
	if !strings.Contains(err.Error(), "135") {
		t.Errorf("error should name the undefined key: %v", err)
	}
	for _, pos := range rubric.StagePositions {
		if sub := getSub(t, store, submission.DocID("ev1", "ens1", pos)); sub.Status != submission.StatusSubmitted {
			t.Errorf("%s released despite undefined combination", pos)
		}
	}
}

func TestUnreleaseInverse(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedEnsemble(t, store, "ens1", "IV")
	for _, pos := range rubric.RequiredPositions("IV") {
		seedSubmission(t, store, "ev1", "ens1", pos, 3)
	}
	orch := release.NewOrchestrator(store)
	if _, err := orch.Release(ctx, admin, "ev1", "ens1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := orch.Unrelease(ctx, admin, "ev1", "ens1"); err != nil {
		t.Fatalf("unrelease: %v", err)
	}
	for _, pos := range rubric.RequiredPositions("IV") {
		sub := getSub(t, store, submission.DocID("ev1", "ens1", pos))
		if sub.Status != submission.StatusSubmitted {
			t.Errorf("%s: status %s, want submitted", pos, sub.Status)
		}
		if sub.ReleasedAt != 0 || sub.ReleasedBy != "" {
			t.Errorf("%s: release stamps not cleared", pos)
		}
	}
}

func TestUnreleaseRequiresReleased(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedEnsemble(t, store, "ens1", "IV")
	for _, pos := range rubric.RequiredPositions("IV") {
		seedSubmission(t, store, "ev1", "ens1", pos, 3)
	}
	_, err := release.NewOrchestrator(store).Unrelease(ctx, admin, "ev1", "ens1")
	if !apperr.IsCode(err, apperr.FailedPrecondition) {
		t.Fatalf("got %v, want failed_precondition", err)
	}
}

func TestGradeResolutionOrder(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	// entry record wins over ensemble record
	seedEnsemble(t, store, "ens1", "III")
	if err := store.RunBatch(ctx, []docstore.Write{
		{Collection: "entries", ID: event.EntryID("ev1", "ens1"), Data: event.Entry{
			EventID: "ev1", EnsembleID: "ens1", PerformanceGrade: rubric.GradeOne,
		}},
	}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	for _, pos := range rubric.StagePositions {
		seedSubmission(t, store, "ev1", "ens1", pos, 1)
	}
	res, err := release.NewOrchestrator(store).Release(ctx, admin, "ev1", "ens1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Grade != rubric.GradeOne {
		t.Fatalf("grade = %s, want I (entry overrides ensemble)", res.Grade)
	}
}

func TestNoGradeAnywhereIsFatal(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	for _, pos := range rubric.RequiredPositions("II") {
		seedSubmission(t, store, "ev1", "ens1", pos, 2)
	}
	_, err := release.NewOrchestrator(store).Release(ctx, admin, "ev1", "ens1")
	if !apperr.IsCode(err, apperr.FailedPrecondition) {
		t.Fatalf("got %v, want failed_precondition", err)
	}
	if !strings.Contains(err.Error(), "performance grade") {
		t.Errorf("error should say the grade is unresolvable: %v", err)
	}
}

func TestReleaseIsAdminOnly(t *testing.T) {
	store := docstore.NewMemoryStore()
	judge := rbac.Actor{UID: "judge-1", Role: rbac.RoleJudge}
	_, err := release.NewOrchestrator(store).Release(context.Background(), judge, "ev1", "ens1")
	if !apperr.IsCode(err, apperr.PermissionDenied) {
		t.Fatalf("got %v, want permission_denied", err)
	}
}
