package entity

import (
	"time"
)

const (
	VisaRequestStatusOpen       = "open"
	VisaRequestStatusInProgress = "in_progress"
	VisaRequestStatusClosed     = "closed"
)

type VisaRequest struct {
	ID                 string   `json:"id" firestore:"id"`
	ClientID           string   `json:"client_id" firestore:"clientId"`
	Title              string   `json:"title" firestore:"title"`
	VisaType           string   `json:"visa_type" firestore:"visaType"`
	DestinationCountry string   `json:"destination_country" firestore:"destinationCountry"`
	Description        string   `json:"description" firestore:"description"`
	Budget             float64  `json:"budget" firestore:"budget"`
	Currency           string   `json:"currency" firestore:"currency"`
	Timeline           string   `json:"timeline,omitempty" firestore:"timeline,omitempty"`
	Tags               []string `json:"tags,omitempty" firestore:"tags,omitempty"`
	Status             string   `json:"status" firestore:"status"`
	ProposalCount      int      `json:"proposal_count" firestore:"proposalCount"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}
