package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "visaconnect/pkg/errors"
)

func render(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, Error(c, err))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestErrorEnvelope(t *testing.T) {
	type profile struct {
		Role string `validate:"required"`
	}
	validationErr := validator.New().Struct(profile{})

	tests := []struct {
		name    string
		err     error
		status  int
		message string
		code    string
	}{
		{
			name:    "app error",
			err:     apperrors.InvalidState("Escrow cannot be disputed in status disputed"),
			status:  http.StatusConflict,
			message: "Escrow cannot be disputed in status disputed",
			code:    apperrors.CodeInvalidState,
		},
		{
			name:    "middleware error",
			err:     echo.NewHTTPError(http.StatusForbidden, "Create your profile first"),
			status:  http.StatusForbidden,
			message: "Create your profile first",
			code:    "FORBIDDEN",
		},
		{
			name:    "validation error",
			err:     validationErr,
			status:  http.StatusBadRequest,
			message: "role is required",
			code:    apperrors.CodeValidation,
		},
		{
			name:    "unknown error",
			err:     errors.New("dial tcp: connection refused"),
			status:  http.StatusInternalServerError,
			message: "An unexpected error occurred",
			code:    apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := render(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["error"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotContains(t, body, "data")
		})
	}
}

func TestErrorDetails(t *testing.T) {
	err := apperrors.PaymentRequired("Payment needs confirmation").
		WithDetails(map[string]string{"redirect_url": "https://pay.example.com/r/1"})

	status, body := render(t, err)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "Payment needs confirmation", body["error"])
	assert.Equal(t, map[string]interface{}{"redirect_url": "https://pay.example.com/r/1"}, body["details"])
}

func TestSuccessOmitsErrorFields(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, Success(c, map[string]int{"total": 1}))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "code")
}
