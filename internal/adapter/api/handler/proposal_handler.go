package handler

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/usecase"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/response"
	"visaconnect/pkg/utils"
)

type ProposalHandler struct {
	proposalUseCase *usecase.ProposalUseCase
}

func NewProposalHandler(proposalUseCase *usecase.ProposalUseCase) *ProposalHandler {
	return &ProposalHandler{
		proposalUseCase: proposalUseCase,
	}
}

type proposalMilestoneRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	DueInDays   int     `json:"due_in_days" validate:"gte=0"`
}

type createProposalRequest struct {
	VisaRequestID string                     `json:"visa_request_id" validate:"required"`
	CoverLetter   string                     `json:"cover_letter" validate:"max=5000"`
	TotalAmount   float64                    `json:"total_amount" validate:"required,gt=0"`
	Currency      string                     `json:"currency" validate:"omitempty,len=3"`
	EstimatedDays int                        `json:"estimated_days" validate:"gte=0"`
	Milestones    []proposalMilestoneRequest `json:"milestones" validate:"omitempty,max=20,dive"`
}

func (h *ProposalHandler) Create(c echo.Context) error {
	var req createProposalRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	milestones := make([]entity.ProposalMilestone, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		milestones = append(milestones, entity.ProposalMilestone{
			Title:       m.Title,
			Description: m.Description,
			Amount:      m.Amount,
			DueInDays:   m.DueInDays,
		})
	}

	proposal, err := h.proposalUseCase.Create(c.Request().Context(), actor, usecase.CreateProposalInput{
		VisaRequestID: req.VisaRequestID,
		CoverLetter:   req.CoverLetter,
		TotalAmount:   req.TotalAmount,
		Currency:      req.Currency,
		EstimatedDays: req.EstimatedDays,
		Milestones:    milestones,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, proposal)
}

func (h *ProposalHandler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	proposal, err := h.proposalUseCase.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, proposal)
}

func (h *ProposalHandler) ListForVisaRequest(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c)
	proposals, total, err := h.proposalUseCase.ListForVisaRequest(c.Request().Context(), actor, c.Param("id"), p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, proposals, total, p.Page, p.PageSize)
}

func (h *ProposalHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c)
	proposals, total, err := h.proposalUseCase.ListMine(c.Request().Context(), actor, c.QueryParam("status"), p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, proposals, total, p.Page, p.PageSize)
}

func (h *ProposalHandler) Reject(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	proposal, err := h.proposalUseCase.Reject(c.Request().Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Proposal rejected", proposal)
}

func (h *ProposalHandler) Withdraw(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	proposal, err := h.proposalUseCase.Withdraw(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Proposal withdrawn", proposal)
}
