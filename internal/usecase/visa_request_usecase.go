package usecase

import (
	"context"
	"strings"
	"time"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/money"
)

type VisaRequestUseCase struct {
	visaRequestRepo repository.VisaRequestRepository
}

func NewVisaRequestUseCase(visaRequestRepo repository.VisaRequestRepository) *VisaRequestUseCase {
	return &VisaRequestUseCase{
		visaRequestRepo: visaRequestRepo,
	}
}

type CreateVisaRequestInput struct {
	Title              string
	VisaType           string
	DestinationCountry string
	Description        string
	Budget             float64
	Currency           string
	Timeline           string
	Tags               []string
}

func (uc *VisaRequestUseCase) Create(ctx context.Context, actor Actor, input CreateVisaRequestInput) (*entity.VisaRequest, error) {
	if actor.Role != entity.RoleClient {
		return nil, errors.Forbidden("Only clients can post visa requests", nil)
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.VisaType) == "" || strings.TrimSpace(input.DestinationCountry) == "" {
		return nil, errors.Validation("Title, visa type and destination country are required")
	}
	if !money.Valid(input.Budget) {
		return nil, errors.Validation("Budget must be a non-negative value with at most two decimals")
	}

	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := time.Now()
	request := &entity.VisaRequest{
		ClientID:           actor.ID,
		Title:              strings.TrimSpace(input.Title),
		VisaType:           input.VisaType,
		DestinationCountry: input.DestinationCountry,
		Description:        input.Description,
		Budget:             input.Budget,
		Currency:           currency,
		Timeline:           input.Timeline,
		Tags:               input.Tags,
		Status:             entity.VisaRequestStatusOpen,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.visaRequestRepo.Create(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// Get returns a request to its owner, to admins, and to agents while it is
// still open for proposals.
func (uc *VisaRequestUseCase) Get(ctx context.Context, actor Actor, id string) (*entity.VisaRequest, error) {
	request, err := uc.visaRequestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case request.ClientID == actor.ID, actor.IsAdmin():
	case actor.Role == entity.RoleAgent && request.Status == entity.VisaRequestStatusOpen:
	default:
		return nil, errors.Forbidden("You don't have permission to view this visa request", nil)
	}
	return request, nil
}

func (uc *VisaRequestUseCase) ListMine(ctx context.Context, actor Actor, limit, offset int) ([]*entity.VisaRequest, int64, error) {
	return uc.visaRequestRepo.ListByClient(ctx, actor.ID, limit, offset)
}

func (uc *VisaRequestUseCase) ListOpen(ctx context.Context, actor Actor, limit, offset int) ([]*entity.VisaRequest, int64, error) {
	if actor.Role != entity.RoleAgent && !actor.IsAdmin() {
		return nil, 0, errors.Forbidden("Only agents can browse open visa requests", nil)
	}
	return uc.visaRequestRepo.ListByStatus(ctx, entity.VisaRequestStatusOpen, limit, offset)
}
