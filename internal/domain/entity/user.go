package entity

import (
	"time"
)

const (
	RoleClient = "client"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

type User struct {
	ID           string `json:"id" firestore:"id"`
	Email        string `json:"email" firestore:"email"`
	FullName     string `json:"full_name" firestore:"fullName"`
	Phone        string `json:"phone,omitempty" firestore:"phone,omitempty"`
	Role         string `json:"role" firestore:"role"`
	Status       string `json:"status" firestore:"status"`
	Organization string `json:"organization,omitempty" firestore:"organization,omitempty"`
	Country      string `json:"country,omitempty" firestore:"country,omitempty"`
	Bio          string `json:"bio,omitempty" firestore:"bio,omitempty"`

	// Agent profile
	Specializations []string `json:"specializations,omitempty" firestore:"specializations,omitempty"`
	LicenseNumber   string   `json:"license_number,omitempty" firestore:"licenseNumber,omitempty"`

	PhotoURL string    `json:"photo_url,omitempty" firestore:"photoURL,omitempty"`
	LastSeen time.Time `json:"last_seen" firestore:"lastSeen"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleAgent, RoleAdmin:
		return true
	}
	return false
}
