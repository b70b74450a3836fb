package entity

import (
	"time"
)

const (
	ProposalStatusPending   = "pending"
	ProposalStatusAccepted  = "accepted"
	ProposalStatusRejected  = "rejected"
	ProposalStatusWithdrawn = "withdrawn"
)

type Proposal struct {
	ID            string `json:"id" firestore:"id"`
	VisaRequestID string `json:"visa_request_id" firestore:"visaRequestId"`
	ClientID      string `json:"client_id" firestore:"clientId"`
	AgentID       string `json:"agent_id" firestore:"agentId"`

	CoverLetter   string              `json:"cover_letter" firestore:"coverLetter"`
	TotalAmount   float64             `json:"total_amount" firestore:"totalAmount"`
	Currency      string              `json:"currency" firestore:"currency"`
	EstimatedDays int                 `json:"estimated_days" firestore:"estimatedDays"`
	Milestones    []ProposalMilestone `json:"milestones" firestore:"milestones"`

	Status          string     `json:"status" firestore:"status"`
	EscrowID        string     `json:"escrow_id,omitempty" firestore:"escrowId,omitempty"`
	CaseID          string     `json:"case_id,omitempty" firestore:"caseId,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty" firestore:"acceptedAt,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" firestore:"rejectionReason,omitempty"`

	Version   int64     `json:"version" firestore:"version"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

type ProposalMilestone struct {
	Title       string  `json:"title" firestore:"title"`
	Description string  `json:"description" firestore:"description"`
	Amount      float64 `json:"amount" firestore:"amount"`
	DueInDays   int     `json:"due_in_days" firestore:"dueInDays"`
}

// Fundable reports whether an escrow can still be created for the proposal.
func (p *Proposal) Fundable() bool {
	if p.EscrowID != "" {
		return false
	}
	return p.Status == ProposalStatusPending || p.Status == ProposalStatusAccepted
}
