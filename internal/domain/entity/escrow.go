package entity

import (
	"time"
)

const (
	EscrowStatusPending    = "pending"
	EscrowStatusDeposited  = "deposited"
	EscrowStatusInProgress = "in_progress"
	EscrowStatusDisputed   = "disputed"
	EscrowStatusCompleted  = "completed"
	EscrowStatusRefunded   = "refunded"
	EscrowStatusCancelled  = "cancelled"
)

const (
	EscrowMilestonePending   = "pending"
	EscrowMilestoneCompleted = "completed"
	EscrowMilestoneDisputed  = "disputed"
)

const (
	DisputeStatusOpen      = "open"
	DisputeStatusResolved  = "resolved"
	DisputeStatusEscalated = "escalated"
)

const (
	DisputeResolutionContinue = "continue"
	DisputeResolutionRelease  = "release"
	DisputeResolutionRefund   = "refund"
)

// Timeline events written on escrows.
const (
	EventEscrowFunded     = "escrow_funded"
	EventMilestoneRelease = "milestone_released"
	EventEscrowReleased   = "escrow_released"
	EventDisputeRaised    = "dispute_raised"
	EventDisputeEscalated = "dispute_escalated"
	EventDisputeResolved  = "dispute_resolved"
	EventEscrowRefunded   = "escrow_refunded"
	EventEscrowCancelled  = "escrow_cancelled"
)

type Escrow struct {
	ID            string `json:"id" firestore:"id"`
	ClientID      string `json:"client_id" firestore:"clientId"`
	AgentID       string `json:"agent_id" firestore:"agentId"`
	ProposalID    string `json:"proposal_id" firestore:"proposalId"`
	VisaRequestID string `json:"visa_request_id" firestore:"visaRequestId"`
	CaseID        string `json:"case_id,omitempty" firestore:"caseId,omitempty"`

	Amount           float64 `json:"amount" firestore:"amount"`
	RefundedAmount   float64 `json:"refunded_amount,omitempty" firestore:"refundedAmount,omitempty"`
	Currency         string  `json:"currency" firestore:"currency"`
	PaymentMethod    string  `json:"payment_method" firestore:"paymentMethod"`
	PaymentReference string  `json:"payment_reference,omitempty" firestore:"paymentReference,omitempty"`
	Fees             Fees    `json:"fees" firestore:"fees"`

	Status     string            `json:"status" firestore:"status"`
	Milestones []EscrowMilestone `json:"milestones" firestore:"milestones"`
	Dispute    *Dispute          `json:"dispute,omitempty" firestore:"dispute,omitempty"`
	Timeline   []TimelineEntry   `json:"timeline" firestore:"timeline"`

	Version   int64     `json:"version" firestore:"version"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

type EscrowMilestone struct {
	ID          string     `json:"id" firestore:"id"`
	Order       int        `json:"order" firestore:"order"`
	Description string     `json:"description" firestore:"description"`
	Amount      float64    `json:"amount" firestore:"amount"`
	Status      string     `json:"status" firestore:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty" firestore:"completedAt,omitempty"`
}

// Fees are fixed at funding time.
type Fees struct {
	Platform float64 `json:"platform" firestore:"platform"`
	Payment  float64 `json:"payment" firestore:"payment"`
	Total    float64 `json:"total" firestore:"total"`
}

type Dispute struct {
	Reason         string     `json:"reason" firestore:"reason"`
	Description    string     `json:"description" firestore:"description"`
	Evidence       []string   `json:"evidence" firestore:"evidence"`
	CreatedBy      string     `json:"created_by" firestore:"createdBy"`
	CreatedAt      time.Time  `json:"created_at" firestore:"createdAt"`
	Status         string     `json:"status" firestore:"status"`
	PreviousStatus string     `json:"previous_status" firestore:"previousStatus"`
	Resolution     string     `json:"resolution,omitempty" firestore:"resolution,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty" firestore:"resolutionNote,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty" firestore:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" firestore:"resolvedAt,omitempty"`
}

func (e *Escrow) IsParty(userID string) bool {
	return userID != "" && (userID == e.ClientID || userID == e.AgentID)
}

// CounterParty returns the other party of the escrow, or "" for non-parties.
func (e *Escrow) CounterParty(userID string) string {
	switch userID {
	case e.ClientID:
		return e.AgentID
	case e.AgentID:
		return e.ClientID
	}
	return ""
}

func (e *Escrow) Milestone(id string) (int, *EscrowMilestone) {
	for i := range e.Milestones {
		if e.Milestones[i].ID == id {
			return i, &e.Milestones[i]
		}
	}
	return -1, nil
}

func (e *Escrow) AllMilestonesCompleted() bool {
	if len(e.Milestones) == 0 {
		return false
	}
	for _, m := range e.Milestones {
		if m.Status != EscrowMilestoneCompleted {
			return false
		}
	}
	return true
}

func (e *Escrow) CanRelease() bool {
	return e.Status == EscrowStatusDeposited || e.Status == EscrowStatusInProgress
}

func (e *Escrow) IsTerminal() bool {
	switch e.Status {
	case EscrowStatusCompleted, EscrowStatusRefunded, EscrowStatusCancelled:
		return true
	}
	return false
}

func (e *Escrow) AddTimeline(event, description, by string, at time.Time) {
	e.Timeline = append(e.Timeline, TimelineEntry{
		Event:       event,
		Description: description,
		Date:        at,
		By:          by,
	})
}
