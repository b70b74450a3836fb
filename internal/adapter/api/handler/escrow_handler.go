package handler

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/usecase"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
	"visaconnect/pkg/response"
	"visaconnect/pkg/utils"
)

type EscrowHandler struct {
	escrowUseCase *usecase.EscrowUseCase
}

func NewEscrowHandler(escrowUseCase *usecase.EscrowUseCase) *EscrowHandler {
	return &EscrowHandler{
		escrowUseCase: escrowUseCase,
	}
}

type fundEscrowRequest struct {
	ProposalID     string  `json:"proposal_id" validate:"required"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod  string  `json:"payment_method" validate:"required"`
	Currency       string  `json:"currency" validate:"omitempty,len=3"`
	IdempotencyKey string  `json:"idempotency_key" validate:"omitempty,max=64"`
}

type releaseEscrowRequest struct {
	MilestoneID string   `json:"milestone_id"`
	Amount      *float64 `json:"amount" validate:"omitempty,gt=0"`
	Reason      string   `json:"reason" validate:"max=500"`
}

type holdEscrowRequest struct {
	Reason      string   `json:"reason" validate:"required"`
	Description string   `json:"description" validate:"required,min=20"`
	Evidence    []string `json:"evidence" validate:"omitempty,dive,url"`
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=continue release refund"`
	Note       string `json:"note" validate:"max=1000"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *EscrowHandler) Fund(c echo.Context) error {
	var req fundEscrowRequest
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

	escrow, err := h.escrowUseCase.Fund(c.Request().Context(), actor, usecase.FundEscrowInput{
		ProposalID:     req.ProposalID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		logger.Debug("Fund of proposal %s failed: %v", req.ProposalID, err)
		return response.Error(c, err)
	}

	return response.Created(c, escrow)
}

func (h *EscrowHandler) Release(c echo.Context) error {
	var req releaseEscrowRequest
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

	escrow, err := h.escrowUseCase.Release(c.Request().Context(), actor, c.Param("id"), usecase.ReleaseInput{
		MilestoneID: req.MilestoneID,
		Amount:      req.Amount,
		Reason:      req.Reason,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Payment released", escrow)
}

func (h *EscrowHandler) Hold(c echo.Context) error {
	var req holdEscrowRequest
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

	escrow, err := h.escrowUseCase.Hold(c.Request().Context(), actor, c.Param("id"), usecase.HoldInput{
		Reason:      req.Reason,
		Description: req.Description,
		Evidence:    req.Evidence,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Dispute opened, payments are on hold", escrow)
}

func (h *EscrowHandler) EscalateDispute(c echo.Context) error {
	var req struct {
		Note string `json:"note" validate:"max=1000"`
	}
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

	escrow, err := h.escrowUseCase.EscalateDispute(c.Request().Context(), actor, c.Param("id"), req.Note)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Dispute escalated", escrow)
}

func (h *EscrowHandler) ResolveDispute(c echo.Context) error {
	var req resolveDisputeRequest
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

	escrow, err := h.escrowUseCase.ResolveDispute(c.Request().Context(), actor, c.Param("id"), usecase.ResolveDisputeInput{
		Resolution: req.Resolution,
		Note:       req.Note,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Dispute resolved", escrow)
}

func (h *EscrowHandler) Refund(c echo.Context) error {
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

	escrow, err := h.escrowUseCase.Refund(c.Request().Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Escrow refunded", escrow)
}

func (h *EscrowHandler) Cancel(c echo.Context) error {
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

	escrow, err := h.escrowUseCase.Cancel(c.Request().Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Escrow cancelled", escrow)
}

func (h *EscrowHandler) Status(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	view, err := h.escrowUseCase.Status(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, view)
}

func (h *EscrowHandler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	escrow, err := h.escrowUseCase.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, escrow)
}

func (h *EscrowHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c)
	escrows, total, err := h.escrowUseCase.ListMine(c.Request().Context(), actor, c.QueryParam("status"), p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, escrows, total, p.Page, p.PageSize)
}
