package submissions

import (
	"errors"
	"testing"
	"time"

	"submission-backend/internal/spreadsheet"
)

var transitionTime = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

func parsedResult() *spreadsheet.Result {
	return &spreadsheet.Result{
		Metadata: spreadsheet.Metadata{Title: "Enrollment", Unit: "students", Sector: "Health"},
		Series:   []spreadsheet.Point{{Timestamp: "2024-01-01T00:00:00", Value: 10}},
	}
}

func TestTransitionLegalEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from Status
		cmd  Command
		want Status
	}{
		{name: "parse succeeded", from: StatusParsing, cmd: Command{Event: EventParseSucceeded, Actor: SystemActor, Result: parsedResult()}, want: StatusDraft},
		{name: "parse failed", from: StatusParsing, cmd: Command{Event: EventParseFailed, Actor: SystemActor, Comment: "missing headers: [value]"}, want: StatusError},
		{name: "submit", from: StatusDraft, cmd: Command{Event: EventSubmit, Actor: provider}, want: StatusSubmitted},
		{name: "manager approve", from: StatusSubmitted, cmd: Command{Event: EventManagerApprove, Actor: manager}, want: StatusManagerApproved},
		{name: "manager reject", from: StatusSubmitted, cmd: Command{Event: EventManagerReject, Actor: manager, Comment: "wrong unit"}, want: StatusManagerRejected},
		{name: "senior approve", from: StatusManagerApproved, cmd: Command{Event: EventSeniorApprove, Actor: senior}, want: StatusFinalized},
		{name: "senior reject", from: StatusManagerApproved, cmd: Command{Event: EventSeniorReject, Actor: senior, Comment: "numbers off"}, want: StatusSeniorRejected},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: tt.from}
			out, err := Transition(sub, tt.cmd, transitionTime)
			if err != nil {
				t.Fatalf("Transition: %v", err)
			}
			if out.From != tt.from || out.To != tt.want || out.Next.Status != tt.want {
				t.Fatalf("unexpected outcome: %+v", out)
			}
			if !out.Next.UpdatedAt.Equal(transitionTime) {
				t.Fatalf("expected updated_at to be set, got %v", out.Next.UpdatedAt)
			}
			if sub.Status != tt.from {
				t.Fatalf("input submission was mutated")
			}
		})
	}
}

func TestTransitionRejectsEveryIllegalState(t *testing.T) {
	t.Parallel()

	cmds := []Command{
		{Event: EventParseSucceeded, Actor: SystemActor, Result: parsedResult()},
		{Event: EventParseFailed, Actor: SystemActor, Comment: "bad"},
		{Event: EventSubmit, Actor: provider},
		{Event: EventManagerApprove, Actor: manager},
		{Event: EventManagerReject, Actor: manager, Comment: "no"},
		{Event: EventSeniorApprove, Actor: senior},
		{Event: EventSeniorReject, Actor: senior, Comment: "no"},
	}
	for _, cmd := range cmds {
		legalFrom := edges[cmd.Event].from
		for _, status := range AllStatuses {
			if status == legalFrom {
				continue
			}
			sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: status}
			_, err := Transition(sub, cmd, transitionTime)
			if !errors.Is(err, ErrPreconditionFailed) {
				t.Fatalf("%s from %s: expected precondition failure, got %v", cmd.Event, status, err)
			}
		}
	}
}

func TestTransitionTerminalStatesHaveNoExits(t *testing.T) {
	t.Parallel()

	for _, status := range AllStatuses {
		if !status.Terminal() {
			continue
		}
		for event, e := range edges {
			if e.from == status {
				t.Fatalf("terminal status %s has exit via %s", status, event)
			}
		}
	}
}

func TestTransitionWrongRoleIsForbiddenInAnyState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  Command
	}{
		{name: "provider approves", cmd: Command{Event: EventManagerApprove, Actor: provider}},
		{name: "senior approves at manager gate", cmd: Command{Event: EventManagerApprove, Actor: senior}},
		{name: "manager approves at senior gate", cmd: Command{Event: EventSeniorApprove, Actor: manager}},
		{name: "manager submits", cmd: Command{Event: EventSubmit, Actor: manager}},
		{name: "user reports parse result", cmd: Command{Event: EventParseSucceeded, Actor: provider, Result: parsedResult()}},
		{name: "system submits", cmd: Command{Event: EventSubmit, Actor: SystemActor}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, status := range AllStatuses {
				sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: status}
				if _, err := Transition(sub, tt.cmd, transitionTime); !errors.Is(err, ErrForbidden) {
					t.Fatalf("status %s: expected forbidden, got %v", status, err)
				}
			}
		})
	}
}

func TestTransitionSubmitRequiresOwner(t *testing.T) {
	t.Parallel()

	sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: StatusDraft}
	if _, err := Transition(sub, Command{Event: EventSubmit, Actor: otherProvider}, transitionTime); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	// ownership is checked before state
	sub.Status = StatusFinalized
	if _, err := Transition(sub, Command{Event: EventSubmit, Actor: otherProvider}, transitionTime); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestTransitionRejectRequiresComment(t *testing.T) {
	t.Parallel()

	for _, comment := range []string{"", "   \t"} {
		sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: StatusSubmitted}
		_, err := Transition(sub, Command{Event: EventManagerReject, Actor: manager, Comment: comment}, transitionTime)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("comment %q: expected validation error, got %v", comment, err)
		}
	}
}

func TestTransitionStateCheckedBeforeComment(t *testing.T) {
	t.Parallel()

	sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: StatusDraft}
	_, err := Transition(sub, Command{Event: EventManagerReject, Actor: manager}, transitionTime)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestTransitionParseSucceededRequiresSeries(t *testing.T) {
	t.Parallel()

	sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: StatusParsing}
	for _, result := range []*spreadsheet.Result{nil, {Metadata: spreadsheet.Metadata{Title: "x"}}} {
		if _, err := Transition(sub, Command{Event: EventParseSucceeded, Actor: SystemActor, Result: result}, transitionTime); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	}
}

func TestTransitionParseSucceededStoresResult(t *testing.T) {
	t.Parallel()

	result := parsedResult()
	sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: StatusParsing}
	out, err := Transition(sub, Command{Event: EventParseSucceeded, Actor: SystemActor, Result: result}, transitionTime)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if out.Next.Metadata == nil || out.Next.Metadata.Sector != "Health" {
		t.Fatalf("metadata not stored: %+v", out.Next.Metadata)
	}
	if len(out.Next.Series) != 1 || out.Next.Series[0].Value != 10 {
		t.Fatalf("series not stored: %+v", out.Next.Series)
	}
	result.Series[0].Value = 99
	if out.Next.Series[0].Value != 10 {
		t.Fatalf("series shares storage with the command")
	}
	if len(out.Effects) != 0 {
		t.Fatalf("parse success should not notify, got %+v", out.Effects)
	}
}

func TestTransitionEffects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from Status
		cmd  Command
		want []Effect
	}{
		{
			name: "submit notifies managers",
			from: StatusDraft,
			cmd:  Command{Event: EventSubmit, Actor: provider},
			want: []Effect{{Template: TemplateSubmitted, Role: RoleManager}},
		},
		{
			name: "manager approve notifies seniors",
			from: StatusSubmitted,
			cmd:  Command{Event: EventManagerApprove, Actor: manager},
			want: []Effect{{Template: TemplateManagerApproved, Role: RoleSenior}},
		},
		{
			name: "manager reject notifies owner with comment",
			from: StatusSubmitted,
			cmd:  Command{Event: EventManagerReject, Actor: manager, Comment: "  wrong unit "},
			want: []Effect{{Template: TemplateManagerRejected, UserID: provider.ID, Comment: "wrong unit"}},
		},
		{
			name: "senior reject notifies managers",
			from: StatusManagerApproved,
			cmd:  Command{Event: EventSeniorReject, Actor: senior, Comment: "numbers off"},
			want: []Effect{{Template: TemplateSeniorRejected, Role: RoleManager, Comment: "numbers off"}},
		},
		{
			name: "senior approve is silent",
			from: StatusManagerApproved,
			cmd:  Command{Event: EventSeniorApprove, Actor: senior},
		},
		{
			name: "parse failure is silent",
			from: StatusParsing,
			cmd:  Command{Event: EventParseFailed, Actor: SystemActor, Comment: "no valid rows"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: tt.from}
			out, err := Transition(sub, tt.cmd, transitionTime)
			if err != nil {
				t.Fatalf("Transition: %v", err)
			}
			if len(out.Effects) != len(tt.want) {
				t.Fatalf("expected %d effects, got %+v", len(tt.want), out.Effects)
			}
			for i := range tt.want {
				if out.Effects[i] != tt.want[i] {
					t.Fatalf("effect %d = %+v, want %+v", i, out.Effects[i], tt.want[i])
				}
			}
		})
	}
}

func TestTransitionRejectStoresTrimmedComment(t *testing.T) {
	t.Parallel()

	sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: StatusManagerApproved}
	out, err := Transition(sub, Command{Event: EventSeniorReject, Actor: senior, Comment: "\n numbers off \n"}, transitionTime)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if out.Next.Comment != "numbers off" {
		t.Fatalf("unexpected comment: %q", out.Next.Comment)
	}
}

func TestTransitionUnknownEvent(t *testing.T) {
	t.Parallel()

	sub := Submission{ID: "sub-1", Status: StatusDraft}
	if _, err := Transition(sub, Command{Event: "archive", Actor: provider}, transitionTime); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCanView(t *testing.T) {
	t.Parallel()

	visible := map[string]map[Status]bool{
		"owner": {
			StatusParsing: true, StatusDraft: true, StatusSubmitted: true, StatusManagerApproved: true,
			StatusManagerRejected: true, StatusFinalized: true, StatusSeniorRejected: true, StatusError: true,
		},
		"other provider": {},
		"manager": {
			StatusSubmitted: true, StatusManagerApproved: true, StatusManagerRejected: true,
			StatusFinalized: true, StatusSeniorRejected: true,
		},
		"senior": {
			StatusManagerApproved: true, StatusFinalized: true, StatusSeniorRejected: true,
		},
	}
	actors := map[string]Actor{
		"owner":          provider,
		"other provider": otherProvider,
		"manager":        manager,
		"senior":         senior,
	}

	for name, actor := range actors {
		for _, status := range AllStatuses {
			sub := Submission{ID: "sub-1", OwnerID: provider.ID, Status: status}
			if got, want := CanView(sub, actor), visible[name][status]; got != want {
				t.Fatalf("%s viewing %s: got %v, want %v", name, status, got, want)
			}
		}
	}
}

func TestActorHasRoleIgnoresCase(t *testing.T) {
	t.Parallel()

	a := Actor{ID: "u", Roles: []string{" institutionmanager "}}
	if !a.HasRole(RoleManager) {
		t.Fatalf("expected role match")
	}
	if a.HasRole(RoleSenior) {
		t.Fatalf("unexpected role match")
	}
}
