package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/middleware"
	"visaconnect/internal/usecase"
	"visaconnect/pkg/errors"
)

var (
	escrowHandler       *EscrowHandler
	caseHandler         *CaseHandler
	proposalHandler     *ProposalHandler
	visaRequestHandler  *VisaRequestHandler
	notificationHandler *NotificationHandler
	dashboardHandler    *DashboardHandler
	userHandler         *UserHandler
)

func Setup(
	escrowUseCase *usecase.EscrowUseCase,
	caseUseCase *usecase.CaseUseCase,
	proposalUseCase *usecase.ProposalUseCase,
	visaRequestUseCase *usecase.VisaRequestUseCase,
	notificationUseCase *usecase.NotificationUseCase,
	dashboardUseCase *usecase.DashboardUseCase,
	userUseCase *usecase.UserUseCase,
	emails EmailLookup,
) {
	escrowHandler = NewEscrowHandler(escrowUseCase)
	caseHandler = NewCaseHandler(caseUseCase)
	proposalHandler = NewProposalHandler(proposalUseCase)
	visaRequestHandler = NewVisaRequestHandler(visaRequestUseCase)
	notificationHandler = NewNotificationHandler(notificationUseCase)
	dashboardHandler = NewDashboardHandler(dashboardUseCase)
	userHandler = NewUserHandler(userUseCase, emails)
}

func GetEscrowHandler() *EscrowHandler {
	return escrowHandler
}

func GetCaseHandler() *CaseHandler {
	return caseHandler
}

func GetProposalHandler() *ProposalHandler {
	return proposalHandler
}

func GetVisaRequestHandler() *VisaRequestHandler {
	return visaRequestHandler
}

func GetNotificationHandler() *NotificationHandler {
	return notificationHandler
}

func GetDashboardHandler() *DashboardHandler {
	return dashboardHandler
}

func GetUserHandler() *UserHandler {
	return userHandler
}

// actorFrom builds the use case actor from what Authenticate stored.
func actorFrom(c echo.Context) (usecase.Actor, error) {
	uid, ok := c.Get(middleware.ContextUID).(string)
	if !ok || uid == "" {
		return usecase.Actor{}, errors.Unauthorized("User not authenticated", nil)
	}
	role, _ := c.Get(middleware.ContextRole).(string)
	return usecase.Actor{ID: uid, Role: role}, nil
}

func milestoneIndex(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, errors.BadRequest("Milestone index must be a non-negative integer", err)
	}
	return index, nil
}
