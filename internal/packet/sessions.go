package packet

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/storage"
	"github.com/ensemble-works/mpa-server/internal/transcribe"
)

// Recorder attaches recording takes to packets: stores the blob, asks
// the transcription service for text, and accumulates the packet's
// session counters.
type Recorder struct {
	svc    *Service
	blobs  *storage.AudioStore
	client transcribe.Client
}

func NewRecorder(svc *Service, blobs *storage.AudioStore, client transcribe.Client) *Recorder {
	return &Recorder{svc: svc, blobs: blobs, client: client}
}

type RecordInput struct {
	Audio       []byte
	ContentType string
	DurationSec int
	Segments    int
}

// Record stores the take and transcribes it. Transcription failure is
// not fatal to the take: the audio reference and counters are still
// committed, and the failure is surfaced to the caller afterwards.
func (r *Recorder) Record(ctx context.Context, actor rbac.Actor, packetID string, in RecordInput) (*Packet, error) {
	if len(in.Audio) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "audio payload required")
	}
	if in.ContentType == "" {
		in.ContentType = "audio/webm"
	}

	// Authorize before touching disk; a rejected request must not leave
	// an orphan blob. The transaction re-checks against its own snapshot.
	var pre Packet
	if err := r.svc.store.Get(ctx, Collection, packetID, &pre); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "packet %s not found", packetID)
		}
		return nil, apperr.Wrap(apperr.Internal, "load packet", err)
	}
	if err := mayEdit(actor, &pre); err != nil {
		return nil, err
	}

	sessionID := r.svc.newID()
	key := fmt.Sprintf("packets/%s/%s", packetID, sessionID)
	if _, err := r.blobs.Put(key, bytes.NewReader(in.Audio)); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "store audio", err)
	}

	transcript, trErr := r.client.Transcribe(ctx, in.Audio, in.ContentType)

	var out *Packet
	err := r.svc.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		p, err := getTx(ctx, tx, packetID)
		if err != nil {
			return err
		}
		if err := mayEdit(actor, p); err != nil {
			return err
		}
		audioURL, err := r.blobs.URL(key)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "audio url", err)
		}
		p.AudioURL = audioURL
		if transcript != "" {
			if p.Transcript != "" {
				p.Transcript += "\n"
			}
			p.Transcript += transcript
		}
		p.AudioSessionCount++
		p.SegmentCount += in.Segments
		p.TapeDurationSec += in.DurationSec
		p.UpdatedAt = r.svc.now().Unix()
		out = p
		if err := tx.Set(Collection, packetID, p); err != nil {
			return err
		}
		return tx.Set(sessionCollection(packetID), sessionID, Session{
			ID:          sessionID,
			AudioKey:    key,
			DurationSec: in.DurationSec,
			Segments:    in.Segments,
			CreatedAt:   r.svc.now().Unix(),
		})
	})
	if err != nil {
		_ = r.blobs.Delete(key)
		return nil, err
	}
	if trErr != nil {
		return out, apperr.Wrap(apperr.Internal, "take saved but transcription failed", trErr)
	}
	return out, nil
}
