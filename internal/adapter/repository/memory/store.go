// Package memory keeps every collection in process. It backs the use case
// tests and the STORE_DRIVER=memory mode used for local development.
package memory

import (
	"sort"
	"sync"
	"time"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
)

type Store struct {
	// txMu serializes ledger transactions; mu guards the maps.
	txMu sync.Mutex
	mu   sync.RWMutex

	users         map[string]*entity.User
	escrows       map[string]*entity.Escrow
	cases         map[string]*entity.Case
	proposals     map[string]*entity.Proposal
	visaRequests  map[string]*entity.VisaRequest
	notifications map[string]*entity.Notification
	files         map[string]*entity.FileMetadata

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]*entity.User),
		escrows:       make(map[string]*entity.Escrow),
		cases:         make(map[string]*entity.Case),
		proposals:     make(map[string]*entity.Proposal),
		visaRequests:  make(map[string]*entity.VisaRequest),
		notifications: make(map[string]*entity.Notification),
		files:         make(map[string]*entity.FileMetadata),
		now:           time.Now,
	}
}

func (s *Store) Ledger() repository.Ledger                { return &ledger{s: s} }
func (s *Store) Users() repository.UserRepository         { return &userRepo{s: s} }
func (s *Store) Escrows() repository.EscrowRepository     { return &escrowRepo{s: s} }
func (s *Store) Cases() repository.CaseRepository         { return &caseRepo{s: s} }
func (s *Store) Proposals() repository.ProposalRepository { return &proposalRepo{s: s} }
func (s *Store) VisaRequests() repository.VisaRequestRepository {
	return &visaRequestRepo{s: s}
}
func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepo{s: s}
}
func (s *Store) FileMetadata() repository.FileMetadataRepository {
	return &fileMetadataRepo{s: s}
}

func cloneEscrow(e *entity.Escrow) *entity.Escrow {
	cp := *e
	cp.Milestones = append([]entity.EscrowMilestone(nil), e.Milestones...)
	cp.Timeline = append([]entity.TimelineEntry(nil), e.Timeline...)
	if e.Dispute != nil {
		d := *e.Dispute
		d.Evidence = append([]string(nil), e.Dispute.Evidence...)
		cp.Dispute = &d
	}
	return &cp
}

func cloneCase(c *entity.Case) *entity.Case {
	cp := *c
	cp.Milestones = make([]entity.CaseMilestone, len(c.Milestones))
	for i, m := range c.Milestones {
		m.SubmittedFiles = append([]string(nil), m.SubmittedFiles...)
		cp.Milestones[i] = m
	}
	cp.Documents = append([]entity.CaseDocument(nil), c.Documents...)
	cp.Timeline = append([]entity.TimelineEntry(nil), c.Timeline...)
	return &cp
}

func cloneProposal(p *entity.Proposal) *entity.Proposal {
	cp := *p
	cp.Milestones = append([]entity.ProposalMilestone(nil), p.Milestones...)
	return &cp
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func newestFirst[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
}

// matchesParty filters by the party field that corresponds to role. Admins see
// everything.
func matchesParty(userID, role, clientID, agentID string) bool {
	switch role {
	case entity.RoleAdmin:
		return true
	case entity.RoleAgent:
		return agentID == userID
	default:
		return clientID == userID
	}
}
