// Package packet holds judge-created open packets: free-standing
// scoresheets not tied to a pre-scheduled assignment, with their own
// lifecycle, recording sessions, and an append-only audit log.
package packet

import (
	"github.com/ensemble-works/mpa-server/internal/rubric"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusReopened Status = "reopened"
	StatusLocked   Status = "locked"
	StatusReleased Status = "released"
)

// AssignmentMode says where a packet's judge position and event come
// from: asserted by the judge, derived from the active event's
// assignments, or pinned by an admin. adminOverride is sticky — judge
// submits never displace an admin-pinned assignment.
type AssignmentMode string

const (
	ModeOpen               AssignmentMode = "open"
	ModeActiveEventDefault AssignmentMode = "activeEventDefault"
	ModeAdminOverride      AssignmentMode = "adminOverride"
)

const Collection = "packets"

func auditCollection(packetID string) string   { return Collection + "/" + packetID + "/audit" }
func sessionCollection(packetID string) string { return Collection + "/" + packetID + "/sessions" }

type Packet struct {
	ID                string `json:"id"`
	CreatedByJudgeUID string `json:"created_by_judge_uid"`

	AssignmentMode    AssignmentMode       `json:"assignment_mode"`
	JudgePosition     rubric.JudgePosition `json:"judge_position,omitempty"`
	AssignmentEventID string               `json:"assignment_event_id,omitempty"`
	EnsembleName      string               `json:"ensemble_name,omitempty"`

	Status Status `json:"status"`
	Locked bool   `json:"locked"`

	FormType                 rubric.FormType   `json:"form_type"`
	Captions                 rubric.CaptionSet `json:"captions"`
	CaptionScoreTotal        *int              `json:"caption_score_total,omitempty"`
	ComputedFinalRatingJudge *int              `json:"computed_final_rating_judge,omitempty"`
	ComputedFinalRatingLabel string            `json:"computed_final_rating_label,omitempty"`

	AudioURL   string `json:"audio_url,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	SegmentCount      int `json:"segment_count"`
	TapeDurationSec   int `json:"tape_duration_sec"`
	AudioSessionCount int `json:"audio_session_count"`

	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
	ReleasedAt int64  `json:"released_at,omitempty"`
	ReleasedBy string `json:"released_by,omitempty"`
}

// AuditEntry records one state change. The log is append-only; entries
// are removed only when the whole packet is deleted.
type AuditEntry struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	FromStatus Status `json:"from_status"`
	ToStatus   Status `json:"to_status"`
	ActorUID   string `json:"actor_uid"`
	ActorRole  string `json:"actor_role"`
	At         int64  `json:"at"`
}

// Session is one recording take feeding the packet's counters.
type Session struct {
	ID          string `json:"id"`
	AudioKey    string `json:"audio_key"`
	DurationSec int    `json:"duration_sec"`
	Segments    int    `json:"segments"`
	CreatedAt   int64  `json:"created_at"`
}
