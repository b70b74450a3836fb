package entity

import (
	"time"
)

const (
	CaseStatusActive    = "active"
	CaseStatusCompleted = "completed"
	CaseStatusCancelled = "cancelled"
	CaseStatusDisputed  = "disputed"
	CaseStatusOnHold    = "on-hold"
)

const (
	MilestoneStatusPending    = "pending"
	MilestoneStatusInProgress = "in-progress"
	MilestoneStatusCompleted  = "completed"
	MilestoneStatusApproved   = "approved"
	MilestoneStatusRejected   = "rejected"
)

// Timeline events written on cases.
const (
	EventCaseCreated        = "case_created"
	EventMilestoneUpdated   = "milestone_updated"
	EventMilestoneApproved  = "milestone_approved"
	EventMilestoneRejected  = "milestone_rejected"
	EventPaymentReleased    = "payment_released"
	EventCaseCompleted      = "case_completed"
	EventNoteAdded          = "note_added"
	EventDocumentUploaded   = "document_uploaded"
	EventCaseStatusUpdated  = "status_changed"
	EventCaseDisputeRaised  = "dispute_raised"
	EventCaseDisputeSettled = "dispute_resolved"
)

type Case struct {
	ID            string `json:"id" firestore:"id"`
	Title         string `json:"title" firestore:"title"`
	ClientID      string `json:"client_id" firestore:"clientId"`
	AgentID       string `json:"agent_id" firestore:"agentId"`
	ProposalID    string `json:"proposal_id" firestore:"proposalId"`
	VisaRequestID string `json:"visa_request_id" firestore:"visaRequestId"`
	EscrowID      string `json:"escrow_id,omitempty" firestore:"escrowId,omitempty"`

	Status           string          `json:"status" firestore:"status"`
	Milestones       []CaseMilestone `json:"milestones" firestore:"milestones"`
	CurrentMilestone int             `json:"current_milestone" firestore:"currentMilestone"`
	Progress         int             `json:"progress" firestore:"progress"`
	TotalAmount      float64         `json:"total_amount" firestore:"totalAmount"`
	PaidAmount       float64         `json:"paid_amount" firestore:"paidAmount"`

	ClientNotes string         `json:"client_notes,omitempty" firestore:"clientNotes,omitempty"`
	AgentNotes  string         `json:"agent_notes,omitempty" firestore:"agentNotes,omitempty"`
	Documents   []CaseDocument `json:"documents" firestore:"documents"`

	Timeline []TimelineEntry `json:"timeline" firestore:"timeline"`

	StartDate              time.Time  `json:"start_date" firestore:"startDate"`
	ExpectedCompletionDate *time.Time `json:"expected_completion_date,omitempty" firestore:"expectedCompletionDate,omitempty"`
	ActualCompletionDate   *time.Time `json:"actual_completion_date,omitempty" firestore:"actualCompletionDate,omitempty"`

	Version   int64     `json:"version" firestore:"version"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

type CaseMilestone struct {
	// EscrowMilestoneID links the milestone to the escrow milestone it mirrors.
	EscrowMilestoneID string     `json:"escrow_milestone_id,omitempty" firestore:"escrowMilestoneId,omitempty"`
	Title             string     `json:"title" firestore:"title"`
	Description       string     `json:"description" firestore:"description"`
	Amount            float64    `json:"amount" firestore:"amount"`
	Order             int        `json:"order" firestore:"order"`
	Status            string     `json:"status" firestore:"status"`
	IsActive          bool       `json:"is_active" firestore:"isActive"`
	DueDate           *time.Time `json:"due_date,omitempty" firestore:"dueDate,omitempty"`
	SubmittedFiles    []string   `json:"submitted_files" firestore:"submittedFiles"`
	ClientFeedback    string     `json:"client_feedback,omitempty" firestore:"clientFeedback,omitempty"`
	AgentNotes        string     `json:"agent_notes,omitempty" firestore:"agentNotes,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty" firestore:"startedAt,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" firestore:"completedAt,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty" firestore:"approvedAt,omitempty"`
}

type CaseDocument struct {
	ID             string    `json:"id" firestore:"id"`
	Name           string    `json:"name" firestore:"name"`
	URL            string    `json:"url" firestore:"url"`
	Type           string    `json:"type" firestore:"type"`
	Size           int64     `json:"size" firestore:"size"`
	MilestoneIndex *int      `json:"milestone_index,omitempty" firestore:"milestoneIndex,omitempty"`
	UploadedBy     string    `json:"uploaded_by" firestore:"uploadedBy"`
	UploadedAt     time.Time `json:"uploaded_at" firestore:"uploadedAt"`
}

func (c *Case) IsParty(userID string) bool {
	return userID != "" && (userID == c.ClientID || userID == c.AgentID)
}

func (c *Case) CounterParty(userID string) string {
	switch userID {
	case c.ClientID:
		return c.AgentID
	case c.AgentID:
		return c.ClientID
	}
	return ""
}

// MilestoneByEscrowID finds the case milestone mirroring an escrow milestone.
func (c *Case) MilestoneByEscrowID(escrowMilestoneID string) (int, *CaseMilestone) {
	for i := range c.Milestones {
		if c.Milestones[i].EscrowMilestoneID == escrowMilestoneID {
			return i, &c.Milestones[i]
		}
	}
	return -1, nil
}

func (c *Case) ActiveCount() int {
	n := 0
	for _, m := range c.Milestones {
		if m.IsActive {
			n++
		}
	}
	return n
}

func (c *Case) AddTimeline(event, description, by string, at time.Time) {
	c.Timeline = append(c.Timeline, TimelineEntry{
		Event:       event,
		Description: description,
		Date:        at,
		By:          by,
	})
}
