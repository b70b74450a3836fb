package repository

import (
	"context"

	"visaconnect/internal/domain/entity"
)

type ProposalRepository interface {
	Create(ctx context.Context, proposal *entity.Proposal) error
	GetByID(ctx context.Context, id string) (*entity.Proposal, error)
	Update(ctx context.Context, proposal *entity.Proposal) error
	ListByVisaRequest(ctx context.Context, visaRequestID string, limit, offset int) ([]*entity.Proposal, int64, error)
	ListByAgent(ctx context.Context, agentID, status string, limit, offset int) ([]*entity.Proposal, int64, error)
	ExistsForAgent(ctx context.Context, visaRequestID, agentID string) (bool, error)
}

type VisaRequestRepository interface {
	Create(ctx context.Context, request *entity.VisaRequest) error
	GetByID(ctx context.Context, id string) (*entity.VisaRequest, error)
	Update(ctx context.Context, request *entity.VisaRequest) error
	ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*entity.VisaRequest, int64, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*entity.VisaRequest, int64, error)
}
