package server

import (
	"errors"
	"net/http"
	"strings"

	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	calculationdomain "github.com/dealerdesk/taxengine/internal/calculation/domain"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"github.com/dealerdesk/taxengine/pkg/db"
	"github.com/dealerdesk/taxengine/pkg/money"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var parseErr *money.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   parseErr.Field,
					Code:    "invalid_amount",
					Message: parseErr.Error(),
				},
			},
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, stateruledomain.ErrUnsupportedState):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unsupported_state",
			Message: "no tax rules are configured for this state",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, jurisdictiondomain.ErrInvalidPostalCode),
		errors.Is(err, jurisdictiondomain.ErrInvalidState),
		errors.Is(err, jurisdictiondomain.ErrInvalidEffectiveDate),
		errors.Is(err, stateruledomain.ErrInvalidStateCode),
		errors.Is(err, stateruledomain.ErrInvalidEffectiveDate),
		errors.Is(err, stateruledomain.ErrInvalidScheme),
		errors.Is(err, calculationdomain.ErrInvalidDealership),
		errors.Is(err, calculationdomain.ErrInvalidLocation),
		errors.Is(err, audittraildomain.ErrInvalidCalculationID),
		errors.Is(err, audittraildomain.ErrInvalidDealID),
		errors.Is(err, audittraildomain.ErrInvalidDealership),
		errors.Is(err, audittraildomain.ErrInvalidPageToken),
		errors.Is(err, audittraildomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, jurisdictiondomain.ErrJurisdictionNotFound),
		errors.Is(err, jurisdictiondomain.ErrNoStateAverageRate),
		errors.Is(err, audittraildomain.ErrEntryNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	return strings.TrimPrefix(code, "invalid_")
}
