package submissions

import (
	"time"

	"submission-backend/internal/spreadsheet"
)

// Status is a submission's position in the approval workflow.
type Status string

const (
	StatusParsing         Status = "parsing"
	StatusDraft           Status = "draft"
	StatusSubmitted       Status = "submitted"
	StatusManagerApproved Status = "manager_approved"
	StatusManagerRejected Status = "manager_rejected"
	StatusFinalized       Status = "finalized"
	StatusSeniorRejected  Status = "senior_rejected"
	StatusError           Status = "error"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusParsing,
	StatusDraft,
	StatusSubmitted,
	StatusManagerApproved,
	StatusManagerRejected,
	StatusFinalized,
	StatusSeniorRejected,
	StatusError,
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinalized, StatusManagerRejected, StatusSeniorRejected, StatusError:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Role names a workflow group.
type Role string

const (
	RoleDataProvider Role = "DataProvider"
	RoleManager      Role = "InstitutionManager"
	RoleSenior       Role = "SeniorMoEOfficial"
)

// Submission is one uploaded workbook and its workflow state. Metadata and
// Series are set together when parsing succeeds and are nil before that.
type Submission struct {
	ID        string
	OwnerID   string
	Status    Status
	Metadata  *spreadsheet.Metadata
	Series    []spreadsheet.Point
	Comment   string
	FileName  string
	FileKey   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Parsed reports whether the submission carries a parse result.
func (s Submission) Parsed() bool {
	return s.Metadata != nil
}
