package handler

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/usecase"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/response"
	"visaconnect/pkg/utils"
)

type VisaRequestHandler struct {
	visaRequestUseCase *usecase.VisaRequestUseCase
}

func NewVisaRequestHandler(visaRequestUseCase *usecase.VisaRequestUseCase) *VisaRequestHandler {
	return &VisaRequestHandler{
		visaRequestUseCase: visaRequestUseCase,
	}
}

type createVisaRequestRequest struct {
	Title              string   `json:"title" validate:"required,max=200"`
	VisaType           string   `json:"visa_type" validate:"required"`
	DestinationCountry string   `json:"destination_country" validate:"required"`
	Description        string   `json:"description" validate:"max=5000"`
	Budget             float64  `json:"budget" validate:"gte=0"`
	Currency           string   `json:"currency" validate:"omitempty,len=3"`
	Timeline           string   `json:"timeline"`
	Tags               []string `json:"tags" validate:"omitempty,max=10"`
}

func (h *VisaRequestHandler) Create(c echo.Context) error {
	var req createVisaRequestRequest
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

	request, err := h.visaRequestUseCase.Create(c.Request().Context(), actor, usecase.CreateVisaRequestInput{
		Title:              req.Title,
		VisaType:           req.VisaType,
		DestinationCountry: req.DestinationCountry,
		Description:        req.Description,
		Budget:             req.Budget,
		Currency:           req.Currency,
		Timeline:           req.Timeline,
		Tags:               req.Tags,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, request)
}

func (h *VisaRequestHandler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	request, err := h.visaRequestUseCase.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, request)
}

func (h *VisaRequestHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c)
	requests, total, err := h.visaRequestUseCase.ListMine(c.Request().Context(), actor, p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, requests, total, p.Page, p.PageSize)
}

func (h *VisaRequestHandler) ListOpen(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c)
	requests, total, err := h.visaRequestUseCase.ListOpen(c.Request().Context(), actor, p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, requests, total, p.Page, p.PageSize)
}
