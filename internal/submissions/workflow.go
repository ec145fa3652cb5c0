package submissions

import (
	"fmt"
	"strings"
	"time"

	"submission-backend/internal/spreadsheet"
)

// Event is something that may move a submission to another status.
type Event string

const (
	EventParseSucceeded Event = "parse_succeeded"
	EventParseFailed    Event = "parse_failed"
	EventSubmit         Event = "submit"
	EventManagerApprove Event = "manager_approve"
	EventManagerReject  Event = "manager_reject"
	EventSeniorApprove  Event = "senior_approve"
	EventSeniorReject   Event = "senior_reject"
)

// Actor is whoever triggers an event. System actors are background jobs.
type Actor struct {
	ID     string
	Roles  []string
	System bool
}

// SystemActor is used by the parse job.
var SystemActor = Actor{ID: "system", System: true}

// HasRole reports whether the actor belongs to role.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if strings.EqualFold(strings.TrimSpace(r), string(role)) {
			return true
		}
	}
	return false
}

// Command is one event applied by one actor, with its payload.
type Command struct {
	Event   Event
	Actor   Actor
	Comment string
	Result  *spreadsheet.Result
}

// Notification templates named by effects.
const (
	TemplateSubmitted       = "submission_submitted"
	TemplateManagerApproved = "submission_manager_approved"
	TemplateManagerRejected = "submission_manager_rejected"
	TemplateSeniorRejected  = "submission_senior_rejected"
	TemplateReminderManager = "reminder_manager"
	TemplateReminderSenior  = "reminder_senior"
)

// Effect is a notification the caller must send once the transition has
// been committed. Exactly one of Role or UserID is set.
type Effect struct {
	Template string
	Role     Role
	UserID   string
	Comment  string
}

// Outcome is the result of a legal transition. Next is the full record to
// persist, guarded by From.
type Outcome struct {
	From    Status
	To      Status
	Next    Submission
	Effects []Effect
}

type edge struct {
	from          Status
	to            Status
	role          Role
	system        bool
	ownerOnly     bool
	needsComment  bool
	notifyRole    Role
	notifyOwner   bool
	notifyWith    string
	storesComment bool
}

var edges = map[Event]edge{
	EventParseSucceeded: {from: StatusParsing, to: StatusDraft, system: true},
	EventParseFailed:    {from: StatusParsing, to: StatusError, system: true, needsComment: true, storesComment: true},
	EventSubmit: {
		from: StatusDraft, to: StatusSubmitted, role: RoleDataProvider, ownerOnly: true,
		notifyRole: RoleManager, notifyWith: TemplateSubmitted,
	},
	EventManagerApprove: {
		from: StatusSubmitted, to: StatusManagerApproved, role: RoleManager,
		notifyRole: RoleSenior, notifyWith: TemplateManagerApproved,
	},
	EventManagerReject: {
		from: StatusSubmitted, to: StatusManagerRejected, role: RoleManager,
		needsComment: true, storesComment: true,
		notifyOwner: true, notifyWith: TemplateManagerRejected,
	},
	EventSeniorApprove: {from: StatusManagerApproved, to: StatusFinalized, role: RoleSenior},
	EventSeniorReject: {
		from: StatusManagerApproved, to: StatusSeniorRejected, role: RoleSenior,
		needsComment: true, storesComment: true,
		notifyRole: RoleManager, notifyWith: TemplateSeniorRejected,
	},
}

// Transition applies cmd to sub and returns the next record plus the
// notifications it owes. It never mutates sub and has no side effects.
//
// Guards run in a fixed order so a caller lacking the role is refused
// whatever the submission's state: role, ownership, current status, payload.
func Transition(sub Submission, cmd Command, now time.Time) (Outcome, error) {
	e, ok := edges[cmd.Event]
	if !ok {
		return Outcome{}, validationError(fmt.Sprintf("unknown event %q", cmd.Event))
	}

	if e.system {
		if !cmd.Actor.System {
			return Outcome{}, ErrForbidden
		}
	} else if cmd.Actor.System || !cmd.Actor.HasRole(e.role) {
		return Outcome{}, ErrForbidden
	}
	if e.ownerOnly && cmd.Actor.ID != sub.OwnerID {
		return Outcome{}, ErrForbidden
	}

	if sub.Status != e.from {
		return Outcome{}, preconditionError(sub.ID, sub.Status, e.from)
	}

	comment := strings.TrimSpace(cmd.Comment)
	if e.needsComment && comment == "" {
		return Outcome{}, validationError("comment is required")
	}
	if cmd.Event == EventParseSucceeded && (cmd.Result == nil || len(cmd.Result.Series) == 0) {
		return Outcome{}, validationError("parse result is required")
	}

	next := sub
	next.Status = e.to
	next.UpdatedAt = now
	if e.storesComment {
		next.Comment = comment
	}
	if cmd.Event == EventParseSucceeded {
		meta := cmd.Result.Metadata
		next.Metadata = &meta
		next.Series = append([]spreadsheet.Point(nil), cmd.Result.Series...)
	}

	out := Outcome{From: sub.Status, To: e.to, Next: next}
	switch {
	case e.notifyRole != "":
		out.Effects = []Effect{{Template: e.notifyWith, Role: e.notifyRole, Comment: next.Comment}}
	case e.notifyOwner:
		out.Effects = []Effect{{Template: e.notifyWith, UserID: sub.OwnerID, Comment: next.Comment}}
	}
	return out, nil
}

// CanView reports whether the actor may read sub. Owners see their own
// submissions in every status; managers see everything from submitted on;
// seniors see everything from manager approval on.
func CanView(sub Submission, actor Actor) bool {
	if actor.ID != "" && actor.ID == sub.OwnerID {
		return true
	}
	if actor.HasRole(RoleManager) {
		switch sub.Status {
		case StatusSubmitted, StatusManagerApproved, StatusManagerRejected, StatusFinalized, StatusSeniorRejected:
			return true
		}
	}
	if actor.HasRole(RoleSenior) {
		switch sub.Status {
		case StatusManagerApproved, StatusFinalized, StatusSeniorRejected:
			return true
		}
	}
	return false
}
