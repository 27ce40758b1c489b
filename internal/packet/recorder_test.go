package packet_test

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/packet"
	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/storage"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return s.text, s.err
}

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return n
}

func newRecorderFixture(t *testing.T, client stubTranscriber) (*packet.Recorder, *packet.Service, *packet.Packet, string) {
	t.Helper()
	svc, _, p := newPacketFixture(t)
	dir := t.TempDir()
	blobs, err := storage.NewAudioStore(dir)
	if err != nil {
		t.Fatalf("audio store: %v", err)
	}
	return packet.NewRecorder(svc, blobs, client), svc, p, dir
}

func TestRecordAccumulatesSessions(t *testing.T) {
	rec, _, p, dir := newRecorderFixture(t, stubTranscriber{text: "good balance in the trio"})
	ctx := context.Background()

	got, err := rec.Record(ctx, judge, p.ID, packet.RecordInput{
		Audio: []byte("take-1"), DurationSec: 40, Segments: 2,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.AudioSessionCount != 1 || got.SegmentCount != 2 || got.TapeDurationSec != 40 {
		t.Fatalf("counters = %d/%d/%d", got.AudioSessionCount, got.SegmentCount, got.TapeDurationSec)
	}
	if got.Transcript != "good balance in the trio" || got.AudioURL == "" {
		t.Fatalf("take not attached: transcript=%q url=%q", got.Transcript, got.AudioURL)
	}
	if blobCount(t, dir) != 1 {
		t.Fatalf("blob count = %d, want 1", blobCount(t, dir))
	}

	got, err = rec.Record(ctx, judge, p.ID, packet.RecordInput{
		Audio: []byte("take-2"), DurationSec: 25, Segments: 1,
	})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if got.AudioSessionCount != 2 || got.TapeDurationSec != 65 {
		t.Fatalf("counters after second take = %d/%d", got.AudioSessionCount, got.TapeDurationSec)
	}
}

func TestRecordRejectedRequestLeavesNoBlob(t *testing.T) {
	rec, _, p, dir := newRecorderFixture(t, stubTranscriber{text: "ok"})
	ctx := context.Background()

	other := rbac.Actor{UID: "judge-2", Role: rbac.RoleJudge}
	if _, err := rec.Record(ctx, other, p.ID, packet.RecordInput{Audio: []byte("x")}); !apperr.IsCode(err, apperr.PermissionDenied) {
		t.Fatalf("foreign record: got %v, want permission_denied", err)
	}
	if _, err := rec.Record(ctx, judge, "missing", packet.RecordInput{Audio: []byte("x")}); !apperr.IsCode(err, apperr.NotFound) {
		t.Fatalf("record on missing packet: got %v, want not_found", err)
	}
	if n := blobCount(t, dir); n != 0 {
		t.Fatalf("rejected requests left %d blobs on disk", n)
	}
}

func TestRecordTranscriptionFailureKeepsTake(t *testing.T) {
	rec, svc, p, dir := newRecorderFixture(t, stubTranscriber{err: errors.New("service unavailable")})
	ctx := context.Background()

	got, err := rec.Record(ctx, judge, p.ID, packet.RecordInput{Audio: []byte("take"), Segments: 1})
	if !apperr.IsCode(err, apperr.Internal) {
		t.Fatalf("got %v, want internal", err)
	}
	if got == nil || got.AudioSessionCount != 1 || got.AudioURL == "" {
		t.Fatalf("take not committed despite transcription failure: %+v", got)
	}
	if got.Transcript != "" {
		t.Fatalf("transcript = %q, want empty", got.Transcript)
	}
	if blobCount(t, dir) != 1 {
		t.Fatalf("blob count = %d, want 1", blobCount(t, dir))
	}

	// the committed state is durable, not just the returned copy
	stored, err := svc.Get(ctx, judge, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.AudioSessionCount != 1 {
		t.Fatalf("stored session count = %d, want 1", stored.AudioSessionCount)
	}
}
