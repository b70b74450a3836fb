package entity

import (
	"time"
)

// Real-time events pushed to users.
const (
	EventEscrowFundedNotice      = "escrow:funded"
	EventEscrowReleasedNotice    = "escrow:released"
	EventEscrowDisputedNotice    = "escrow:disputed"
	EventEscrowRefundedNotice    = "escrow:refunded"
	EventEscrowCancelledNotice   = "escrow:cancelled"
	EventMilestoneNeedsApproval  = "milestone:needs_approval"
	EventMilestonePaymentRelease = "milestone:payment_released"
	EventMilestoneRejectedNotice = "milestone:rejected"
	EventDocumentNew             = "document:new"
	EventCaseStatusChanged       = "case:status_changed"
	EventCaseNoteAdded           = "case:note_added"
	EventProposalNew             = "proposal:new"
	EventProposalUpdated         = "proposal:updated"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryWarning = "warning"
	CategoryError   = "error"
)

type Notification struct {
	ID          string                 `json:"id" firestore:"id"`
	RecipientID string                 `json:"recipient_id" firestore:"recipientId"`
	Event       string                 `json:"event" firestore:"event"`
	Title       string                 `json:"title" firestore:"title"`
	Message     string                 `json:"message" firestore:"message"`
	Priority    string                 `json:"priority" firestore:"priority"`
	Category    string                 `json:"category" firestore:"category"`
	EntityID    string                 `json:"entity_id" firestore:"entityId"`
	Data        map[string]interface{} `json:"data,omitempty" firestore:"data,omitempty"`
	Read        bool                   `json:"read" firestore:"read"`
	ReadAt      *time.Time             `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	CreatedAt   time.Time              `json:"created_at" firestore:"createdAt"`
}
