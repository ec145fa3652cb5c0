package submissions

import (
	"time"

	"github.com/gin-gonic/gin"

	"submission-backend/internal/spreadsheet"
)

// SubmissionView is the full read model returned to callers.
type SubmissionView struct {
	ID        string                `json:"id"`
	OwnerID   string                `json:"ownerId"`
	Status    Status                `json:"status"`
	Metadata  *spreadsheet.Metadata `json:"metadata"`
	Series    []spreadsheet.Point   `json:"series"`
	Comment   string                `json:"comment,omitempty"`
	FileName  string                `json:"fileName,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// SummaryView is one row of a listing; the series is left out.
type SummaryView struct {
	ID        string                `json:"id"`
	OwnerID   string                `json:"ownerId"`
	Status    Status                `json:"status"`
	Metadata  *spreadsheet.Metadata `json:"metadata"`
	Points    int                   `json:"points"`
	Comment   string                `json:"comment,omitempty"`
	FileName  string                `json:"fileName,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

type rejectRequest struct {
	Comment string `json:"comment"`
}

// ToView builds the full view.
func ToView(sub Submission) SubmissionView {
	return SubmissionView{
		ID:        sub.ID,
		OwnerID:   sub.OwnerID,
		Status:    sub.Status,
		Metadata:  sub.Metadata,
		Series:    sub.Series,
		Comment:   sub.Comment,
		FileName:  sub.FileName,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

// ToSummaries builds listing rows.
func ToSummaries(subs []Submission) []SummaryView {
	out := make([]SummaryView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, SummaryView{
			ID:        sub.ID,
			OwnerID:   sub.OwnerID,
			Status:    sub.Status,
			Metadata:  sub.Metadata,
			Points:    len(sub.Series),
			Comment:   sub.Comment,
			FileName:  sub.FileName,
			CreatedAt: sub.CreatedAt,
			UpdatedAt: sub.UpdatedAt,
		})
	}
	return out
}

// previewBody shapes a preview by status: parsing and error get a short
// body, everything else the full view.
func previewBody(sub Submission) any {
	switch sub.Status {
	case StatusParsing:
		return gin.H{"id": sub.ID, "status": sub.Status, "message": "Parsing in progress"}
	case StatusError:
		return gin.H{"id": sub.ID, "status": sub.Status, "error": sub.Comment}
	default:
		return ToView(sub)
	}
}
