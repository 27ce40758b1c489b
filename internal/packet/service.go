package packet

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
	"github.com/ensemble-works/mpa-server/internal/event"
	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/rubric"
)

type Service struct {
	store docstore.Store
	now   func() time.Time
	newID func() string
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store, now: time.Now, newID: uuid.NewString}
}

type CreateInput struct {
	AssignmentMode    AssignmentMode       `json:"assignment_mode,omitempty"`
	JudgePosition     rubric.JudgePosition `json:"judge_position,omitempty"`
	AssignmentEventID string               `json:"assignment_event_id,omitempty"`
	EnsembleName      string               `json:"ensemble_name,omitempty"`
}

// Create opens a new draft packet owned by the acting judge.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CreateInput) (*Packet, error) {
	mode := in.AssignmentMode
	if mode == "" {
		mode = ModeOpen
	}
	switch mode {
	case ModeOpen, ModeActiveEventDefault:
	case ModeAdminOverride:
		if !actor.IsAdmin() {
			return nil, apperr.New(apperr.PermissionDenied, "adminOverride is admin-only")
		}
	default:
		return nil, apperr.Newf(apperr.InvalidArgument, "unknown assignment mode %q", mode)
	}
	form := rubric.FormStage
	if in.JudgePosition != "" {
		if _, err := rubric.ParsePosition(string(in.JudgePosition)); err != nil {
			return nil, err
		}
		form = rubric.FormFor(in.JudgePosition)
	}
	now := s.now().Unix()
	p := &Packet{
		ID:                s.newID(),
		CreatedByJudgeUID: actor.UID,
		AssignmentMode:    mode,
		JudgePosition:     in.JudgePosition,
		AssignmentEventID: in.AssignmentEventID,
		EnsembleName:      in.EnsembleName,
		Status:            StatusDraft,
		FormType:          form,
		Captions:          rubric.NewCaptionSet(form),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Set(Collection, p.ID, p); err != nil {
			return err
		}
		return s.appendAudit(tx, p.ID, actor, "create", "", StatusDraft)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

type SaveInput struct {
	Captions                 rubric.CaptionSet `json:"captions"`
	CaptionScoreTotal        *int              `json:"caption_score_total,omitempty"`
	ComputedFinalRatingJudge *int              `json:"computed_final_rating_judge,omitempty"`
	ComputedFinalRatingLabel string            `json:"computed_final_rating_label,omitempty"`
	EnsembleName             string            `json:"ensemble_name,omitempty"`
}

// SaveCaptions updates the working scoresheet of an editable packet.
func (s *Service) SaveCaptions(ctx context.Context, actor rbac.Actor, id string, in SaveInput) (*Packet, error) {
	var out *Packet
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		p, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mayEdit(actor, p); err != nil {
			return err
		}
		if err := in.Captions.Validate(p.FormType); err != nil {
			return err
		}
		p.Captions = in.Captions
		p.CaptionScoreTotal = in.CaptionScoreTotal
		p.ComputedFinalRatingJudge = in.ComputedFinalRatingJudge
		p.ComputedFinalRatingLabel = in.ComputedFinalRatingLabel
		if in.EnsembleName != "" {
			p.EnsembleName = in.EnsembleName
		}
		p.UpdatedAt = s.now().Unix()
		out = p
		return tx.Set(Collection, id, p)
	})
	return out, err
}

type SubmitInput struct {
	// Judge-asserted assignment; honored only in open mode.
	JudgePosition     rubric.JudgePosition `json:"judge_position,omitempty"`
	AssignmentEventID string               `json:"assignment_event_id,omitempty"`
}

// Submit finalizes a draft or reopened packet: assignment is resolved
// per the packet's mode, aggregates are recomputed server-side from the
// stored captions, and the packet moves to locked.
func (s *Service) Submit(ctx context.Context, actor rbac.Actor, id string, in SubmitInput) (*Packet, error) {
	var out *Packet
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		p, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && p.CreatedByJudgeUID != actor.UID {
			return apperr.New(apperr.PermissionDenied, "not your packet")
		}
		if p.Status != StatusDraft && p.Status != StatusReopened {
			return apperr.Newf(apperr.FailedPrecondition, "cannot submit a %s packet", p.Status)
		}

		switch p.AssignmentMode {
		case ModeAdminOverride:
			// sticky: a judge submit never displaces an admin-pinned assignment
		case ModeActiveEventDefault:
			ev, pos, err := event.ActivePositionIn(ctx, tx, p.CreatedByJudgeUID)
			if err != nil {
				return err
			}
			if err := s.reassign(p, pos, ev.ID); err != nil {
				return err
			}
		case ModeOpen:
			if in.JudgePosition != "" {
				if _, err := rubric.ParsePosition(string(in.JudgePosition)); err != nil {
					return err
				}
				if err := s.reassign(p, in.JudgePosition, in.AssignmentEventID); err != nil {
					return err
				}
			}
		}

		total := rubric.CaptionTotal(p.Captions)
		rating := rubric.FinalRating(total)
		p.CaptionScoreTotal = &total
		p.ComputedFinalRatingJudge = &rating.Value
		p.ComputedFinalRatingLabel = rating.Label

		from := p.Status
		p.Status = StatusLocked
		p.Locked = true
		p.UpdatedAt = s.now().Unix()
		out = p
		if err := tx.Set(Collection, id, p); err != nil {
			return err
		}
		return s.appendAudit(tx, id, actor, "submit", from, StatusLocked)
	})
	return out, err
}

// Lock force-locks a packet. Admin only.
func (s *Service) Lock(ctx context.Context, actor rbac.Actor, id string) (*Packet, error) {
	return s.transition(ctx, actor, id, "lock", func(p *Packet) error {
		if p.Status == StatusDraft || p.Status == StatusReopened {
			p.Status = StatusLocked
		}
		p.Locked = true
		return nil
	})
}

// Unlock reopens a locked packet for editing. On a released packet it
// clears the lock flag only; the status change goes through Unrelease.
func (s *Service) Unlock(ctx context.Context, actor rbac.Actor, id string) (*Packet, error) {
	return s.transition(ctx, actor, id, "unlock", func(p *Packet) error {
		if p.Status == StatusLocked {
			p.Status = StatusReopened
		}
		p.Locked = false
		return nil
	})
}

// Release makes a locked packet visible to directors. The stored
// aggregates are recomputed first so a tampered total can never ship.
func (s *Service) Release(ctx context.Context, actor rbac.Actor, id string) (*Packet, error) {
	return s.transition(ctx, actor, id, "release", func(p *Packet) error {
		if p.Status != StatusLocked || !p.Locked {
			return apperr.Newf(apperr.FailedPrecondition, "packet must be locked before release (status %s)", p.Status)
		}
		if !p.Captions.Complete() {
			return apperr.New(apperr.FailedPrecondition, "packet captions are incomplete")
		}
		total := rubric.CaptionTotal(p.Captions)
		if p.CaptionScoreTotal == nil || *p.CaptionScoreTotal != total {
			return apperr.New(apperr.FailedPrecondition, "stored caption total does not match captions")
		}
		rating := rubric.FinalRating(total)
		if p.ComputedFinalRatingJudge == nil || *p.ComputedFinalRatingJudge != rating.Value {
			return apperr.New(apperr.FailedPrecondition, "stored rating does not match captions")
		}
		p.Status = StatusReleased
		p.ReleasedAt = s.now().Unix()
		p.ReleasedBy = actor.UID
		return nil
	})
}

// Unrelease revokes a release. The target state is re-derived from the
// lock flag at unrelease time, so it is not a pure inverse of Release.
func (s *Service) Unrelease(ctx context.Context, actor rbac.Actor, id string) (*Packet, error) {
	return s.transition(ctx, actor, id, "unrelease", func(p *Packet) error {
		if p.Status != StatusReleased {
			return apperr.Newf(apperr.FailedPrecondition, "packet is not released (status %s)", p.Status)
		}
		if p.Locked {
			p.Status = StatusLocked
		} else {
			p.Status = StatusReopened
		}
		p.ReleasedAt = 0
		p.ReleasedBy = ""
		return nil
	})
}

// SetJudgePosition reassigns a packet. An admin pin makes the
// assignment sticky; a released packet cannot be reassigned at all.
func (s *Service) SetJudgePosition(ctx context.Context, actor rbac.Actor, id string, pos rubric.JudgePosition, eventID string) (*Packet, error) {
	if _, err := rubric.ParsePosition(string(pos)); err != nil {
		return nil, err
	}
	var out *Packet
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		p, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusReleased {
			return apperr.New(apperr.FailedPrecondition, "packet is released; unrelease before reassigning")
		}
		if actor.IsAdmin() {
			if err := s.reassign(p, pos, eventID); err != nil {
				return err
			}
			p.AssignmentMode = ModeAdminOverride
		} else {
			if p.CreatedByJudgeUID != actor.UID {
				return apperr.New(apperr.PermissionDenied, "not your packet")
			}
			if p.AssignmentMode == ModeAdminOverride {
				return apperr.New(apperr.PermissionDenied, "assignment is admin-pinned")
			}
			if p.Locked {
				return apperr.New(apperr.FailedPrecondition, "packet is locked")
			}
			if err := s.reassign(p, pos, eventID); err != nil {
				return err
			}
			p.AssignmentMode = ModeOpen
		}
		p.UpdatedAt = s.now().Unix()
		out = p
		if err := tx.Set(Collection, id, p); err != nil {
			return err
		}
		return s.appendAudit(tx, id, actor, "set_position", p.Status, p.Status)
	})
	return out, err
}

// Delete removes a packet and cascades to its sessions and audit log.
func (s *Service) Delete(ctx context.Context, actor rbac.Actor, id string) error {
	return s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		p, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() {
			if p.CreatedByJudgeUID != actor.UID {
				return apperr.New(apperr.PermissionDenied, "not your packet")
			}
			if p.Locked || p.Status == StatusReleased {
				return apperr.New(apperr.FailedPrecondition, "locked packets can only be deleted by an admin")
			}
		}
		for _, col := range []string{sessionCollection(id), auditCollection(id)} {
			docs, err := tx.List(ctx, col)
			if err != nil {
				return err
			}
			for _, d := range docs {
				if err := tx.Delete(col, d.ID); err != nil {
					return err
				}
			}
		}
		return tx.Delete(Collection, id)
	})
}

func (s *Service) Get(ctx context.Context, actor rbac.Actor, id string) (*Packet, error) {
	var p Packet
	if err := s.store.Get(ctx, Collection, id, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "packet %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Internal, "load packet", err)
	}
	if !actor.IsAdmin() && p.CreatedByJudgeUID != actor.UID {
		if !(actor.Role == rbac.RoleDirector && p.Status == StatusReleased) {
			return nil, apperr.New(apperr.PermissionDenied, "not your packet")
		}
	}
	return &p, nil
}

// List returns the caller's packets; admins see everything.
func (s *Service) List(ctx context.Context, actor rbac.Actor) ([]Packet, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list packets", err)
	}
	out := make([]Packet, 0, len(docs))
	for _, d := range docs {
		var p Packet
		if err := json.Unmarshal(d.Data, &p); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "decode packet "+d.ID, err)
		}
		if actor.IsAdmin() || p.CreatedByJudgeUID == actor.UID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Audit returns the packet's audit log, oldest first. Admin only.
func (s *Service) Audit(ctx context.Context, actor rbac.Actor, id string) ([]AuditEntry, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.PermissionDenied, "audit log is admin-only")
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, auditCollection(id))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list audit", err)
	}
	out := make([]AuditEntry, 0, len(docs))
	for _, d := range docs {
		var e AuditEntry
		if err := json.Unmarshal(d.Data, &e); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "decode audit "+d.ID, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out, nil
}

// transition runs an admin-only single-packet state change with its
// audit entry in one transaction.
func (s *Service) transition(ctx context.Context, actor rbac.Actor, id, action string, apply func(p *Packet) error) (*Packet, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Newf(apperr.PermissionDenied, "%s is admin-only", action)
	}
	var out *Packet
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		p, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		from := p.Status
		if err := apply(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now().Unix()
		out = p
		if err := tx.Set(Collection, id, p); err != nil {
			return err
		}
		return s.appendAudit(tx, id, actor, action, from, p.Status)
	})
	return out, err
}

// reassign moves a packet to a new position/event, re-keying the
// caption sheet when the form changes. A scored sheet never changes
// form silently.
func (s *Service) reassign(p *Packet, pos rubric.JudgePosition, eventID string) error {
	form := rubric.FormFor(pos)
	if form != p.FormType {
		if p.Captions.Complete() {
			return apperr.Newf(apperr.FailedPrecondition,
				"position %s uses the %s form; clear the scored captions first", pos, form)
		}
		p.FormType = form
		p.Captions = rubric.NewCaptionSet(form)
	}
	p.JudgePosition = pos
	if eventID != "" {
		p.AssignmentEventID = eventID
	}
	return nil
}

func (s *Service) appendAudit(tx docstore.Tx, packetID string, actor rbac.Actor, action string, from, to Status) error {
	id := s.newID()
	return tx.Set(auditCollection(packetID), id, AuditEntry{
		ID:         id,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		ActorUID:   actor.UID,
		ActorRole:  actor.Role,
		At:         s.now().Unix(),
	})
}

func getTx(ctx context.Context, tx docstore.Tx, id string) (*Packet, error) {
	var p Packet
	if err := tx.Get(ctx, Collection, id, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "packet %s not found", id)
		}
		return nil, apperr.Wrap(apperr.Internal, "load packet", err)
	}
	return &p, nil
}

func mayEdit(actor rbac.Actor, p *Packet) error {
	if actor.IsAdmin() {
		return nil
	}
	if p.CreatedByJudgeUID != actor.UID {
		return apperr.New(apperr.PermissionDenied, "not your packet")
	}
	if p.Locked || p.Status == StatusLocked || p.Status == StatusReleased {
		return apperr.New(apperr.FailedPrecondition, "packet is locked; ask an admin to unlock")
	}
	return nil
}
