package types

type VisitStatus string

const (
	VisitStatusInProgress          VisitStatus = "in_progress"
	VisitStatusPendingConfirmation VisitStatus = "pending_confirmation"
	VisitStatusConfirmed           VisitStatus = "confirmed"
	VisitStatusRejected            VisitStatus = "rejected"
)

type FindingStatus string

const (
	FindingStatusPass            FindingStatus = "pass"
	FindingStatusNeedsAttention  FindingStatus = "needs_attention"
	FindingStatusUrgentAttention FindingStatus = "urgent_attention"
)

func (s FindingStatus) Valid() bool {
	switch s {
	case FindingStatusPass, FindingStatusNeedsAttention, FindingStatusUrgentAttention:
		return true
	}
	return false
}

// RequiresNote reports whether a finding with this status must say what is needed.
func (s FindingStatus) RequiresNote() bool {
	return s == FindingStatusNeedsAttention || s == FindingStatusUrgentAttention
}

// SystemFinding is the status of one vehicle system observed during a visit.
type SystemFinding struct {
	System string        `json:"system" binding:"required"`
	Status FindingStatus `json:"status" binding:"required"`
	Note   string        `json:"note,omitempty"`
}

type PartUsed struct {
	Name      string `json:"name" binding:"required"`
	PartNo    string `json:"part_no,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price,omitempty"`
}

// InspectionItem is one checklist line recorded when a visit is submitted.
type InspectionItem struct {
	Item     string `json:"item" binding:"required"`
	Category string `json:"category,omitempty"`
	Result   string `json:"result"`
	Comment  string `json:"comment,omitempty"`
}

// MediaRef points at an uploaded evidence file.
type MediaRef struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Caption     string `json:"caption,omitempty"`
}
