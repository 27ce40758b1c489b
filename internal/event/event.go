// Package event models adjudication events and the judge position
// assignments of the single active event.
package event

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
	"github.com/ensemble-works/mpa-server/internal/rubric"
)

const (
	eventsCollection      = "events"
	assignmentsCollection = "assignments"
	ensemblesCollection   = "ensembles"
	entriesCollection     = "entries"
	schedulesCollection   = "schedules"
)

type Event struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Date     string `json:"date,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Assignments maps the four judge positions of one event to user ids.
type Assignments struct {
	EventID   string                          `json:"event_id"`
	Positions map[rubric.JudgePosition]string `json:"positions"`
}

type Ensemble struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	School           string       `json:"school,omitempty"`
	PerformanceGrade rubric.Grade `json:"performance_grade,omitempty"`
}

// Entry is the event-scoped registration of an ensemble. Its
// PerformanceGrade, when set, overrides the ensemble's own. Release
// stamps land here.
type Entry struct {
	EventID          string       `json:"event_id"`
	EnsembleID       string       `json:"ensemble_id"`
	PerformanceGrade rubric.Grade `json:"performance_grade,omitempty"`
	OverallLabel     string       `json:"overall_label,omitempty"`
	ReleasedAt       int64        `json:"released_at,omitempty"`
}

// Schedule is the event's performance schedule; rows can carry a
// last-resort performance grade.
type Schedule struct {
	EventID string                 `json:"event_id"`
	Rows    map[string]ScheduleRow `json:"rows"` // keyed by ensemble id
}

type ScheduleRow struct {
	PerformanceTime  string       `json:"performance_time,omitempty"`
	PerformanceGrade rubric.Grade `json:"performance_grade,omitempty"`
}

func EntryID(eventID, ensembleID string) string { return eventID + "_" + ensembleID }

// ActiveIn returns the single active event. Zero or more than one
// active event is an invariant violation and surfaces as an error,
// never a silent pick. It takes any reader so orchestrators can resolve
// the active event inside their own transaction snapshot.
func ActiveIn(ctx context.Context, r docstore.Reader) (Event, error) {
	docs, err := r.List(ctx, eventsCollection)
	if err != nil {
		return Event{}, apperr.Wrap(apperr.Internal, "list events", err)
	}
	var active []Event
	for _, d := range docs {
		var e Event
		if err := unmarshalDoc(d, &e); err != nil {
			return Event{}, err
		}
		if e.IsActive {
			active = append(active, e)
		}
	}
	switch len(active) {
	case 0:
		return Event{}, apperr.New(apperr.FailedPrecondition, "no active event")
	case 1:
		return active[0], nil
	default:
		return Event{}, apperr.Newf(apperr.FailedPrecondition,
			"%d events are marked active; exactly one is allowed", len(active))
	}
}

// ActivePositionIn resolves the judge position assigned to uid at the
// active event.
func ActivePositionIn(ctx context.Context, r docstore.Reader, uid string) (Event, rubric.JudgePosition, error) {
	ev, err := ActiveIn(ctx, r)
	if err != nil {
		return Event{}, "", err
	}
	var asg Assignments
	if err := r.Get(ctx, assignmentsCollection, ev.ID, &asg); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Event{}, "", apperr.Newf(apperr.FailedPrecondition,
				"event %s has no judge assignments", ev.ID)
		}
		return Event{}, "", apperr.Wrap(apperr.Internal, "load assignments", err)
	}
	for pos, assignedUID := range asg.Positions {
		if assignedUID == uid {
			return ev, pos, nil
		}
	}
	return Event{}, "", apperr.Newf(apperr.FailedPrecondition,
		"user %s holds no judge position at event %s", uid, ev.ID)
}

// ResolveGrade finds an ensemble's performance grade for an event,
// checking the entry record, the ensemble record, then the schedule.
// First non-empty wins; no grade anywhere is fatal.
func ResolveGrade(ctx context.Context, r docstore.Reader, eventID, ensembleID string) (rubric.Grade, error) {
	var entry Entry
	err := r.Get(ctx, entriesCollection, EntryID(eventID, ensembleID), &entry)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return "", apperr.Wrap(apperr.Internal, "load entry", err)
	}
	if entry.PerformanceGrade != "" {
		return entry.PerformanceGrade, nil
	}

	var ens Ensemble
	err = r.Get(ctx, ensemblesCollection, ensembleID, &ens)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return "", apperr.Wrap(apperr.Internal, "load ensemble", err)
	}
	if ens.PerformanceGrade != "" {
		return ens.PerformanceGrade, nil
	}

	var sched Schedule
	err = r.Get(ctx, schedulesCollection, eventID, &sched)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return "", apperr.Wrap(apperr.Internal, "load schedule", err)
	}
	if row, ok := sched.Rows[ensembleID]; ok && row.PerformanceGrade != "" {
		return row.PerformanceGrade, nil
	}

	return "", apperr.Newf(apperr.FailedPrecondition,
		"no performance grade on record for ensemble %s at event %s", ensembleID, eventID)
}

func unmarshalDoc(d docstore.Doc, out any) error {
	if err := json.Unmarshal(d.Data, out); err != nil {
		return apperr.Wrap(apperr.Internal, "decode "+d.Collection+"/"+d.ID, err)
	}
	return nil
}
