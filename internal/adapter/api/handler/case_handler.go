package handler

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"visaconnect/internal/usecase"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/response"
	"visaconnect/pkg/utils"
)

const maxDocumentSize = 10 << 20

type CaseHandler struct {
	caseUseCase *usecase.CaseUseCase
}

func NewCaseHandler(caseUseCase *usecase.CaseUseCase) *CaseHandler {
	return &CaseHandler{
		caseUseCase: caseUseCase,
	}
}

type updateMilestoneRequest struct {
	Status         string   `json:"status" validate:"required,oneof=in-progress completed"`
	AgentNotes     string   `json:"agent_notes" validate:"max=2000"`
	SubmittedFiles []string `json:"submitted_files" validate:"omitempty,dive,url"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback" validate:"max=2000"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required,max=5000"`
}

type caseStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active on-hold cancelled"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *CaseHandler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	caseData, err := h.caseUseCase.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, caseData)
}

func (h *CaseHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c)
	cases, total, err := h.caseUseCase.ListMine(c.Request().Context(), actor, c.QueryParam("status"), p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, cases, total, p.Page, p.PageSize)
}

func (h *CaseHandler) UpdateMilestone(c echo.Context) error {
	var req updateMilestoneRequest
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
	index, err := milestoneIndex(c)
	if err != nil {
		return response.Error(c, err)
	}

	caseData, err := h.caseUseCase.UpdateMilestone(c.Request().Context(), actor, c.Param("id"), index, usecase.UpdateMilestoneInput{
		Status:         req.Status,
		AgentNotes:     req.AgentNotes,
		SubmittedFiles: req.SubmittedFiles,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Milestone updated", caseData)
}

func (h *CaseHandler) ApproveMilestone(c echo.Context) error {
	var req feedbackRequest
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
	index, err := milestoneIndex(c)
	if err != nil {
		return response.Error(c, err)
	}

	caseData, err := h.caseUseCase.ApproveMilestone(c.Request().Context(), actor, c.Param("id"), index, req.Feedback)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Milestone approved and payment released", caseData)
}

func (h *CaseHandler) RejectMilestone(c echo.Context) error {
	var req feedbackRequest
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
	index, err := milestoneIndex(c)
	if err != nil {
		return response.Error(c, err)
	}

	caseData, err := h.caseUseCase.RejectMilestone(c.Request().Context(), actor, c.Param("id"), index, req.Feedback)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Milestone sent back to the agent", caseData)
}

func (h *CaseHandler) AddNote(c echo.Context) error {
	var req noteRequest
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

	caseData, err := h.caseUseCase.AddNote(c.Request().Context(), actor, c.Param("id"), req.Note)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Note saved", caseData)
}

// UploadDocument takes a multipart form with a "file" part and optional
// "name" and "milestone_index" fields.
func (h *CaseHandler) UploadDocument(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("File is required", err))
	}
	if fileHeader.Size > maxDocumentSize {
		return response.Error(c, errors.BadRequest(fmt.Sprintf("File must be at most %d MB", maxDocumentSize>>20), nil))
	}

	var index *int
	if raw := c.FormValue("milestone_index"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 {
			return response.Error(c, errors.BadRequest("milestone_index must be a non-negative integer", err))
		}
		index = &i
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to read uploaded file", err))
	}
	defer file.Close()

	caseData, err := h.caseUseCase.UploadDocument(c.Request().Context(), actor, c.Param("id"), usecase.UploadDocumentInput{
		File:           file,
		Filename:       fileHeader.Filename,
		ContentType:    fileHeader.Header.Get("Content-Type"),
		Size:           fileHeader.Size,
		Name:           c.FormValue("name"),
		MilestoneIndex: index,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, caseData)
}

func (h *CaseHandler) SetStatus(c echo.Context) error {
	var req caseStatusRequest
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

	caseData, err := h.caseUseCase.SetStatus(c.Request().Context(), actor, c.Param("id"), req.Status, req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Case status updated", caseData)
}
