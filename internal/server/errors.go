package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	admindomain "github.com/smallbiznis/grievance-portal/internal/admin/domain"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/smallbiznis/grievance-portal/pkg/db/pagination"
)

// ValidationError is one entry of the 400 envelope's errors list.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string { return "validation error" }

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// errorRule maps any of a set of sentinel errors to one envelope.
type errorRule struct {
	status  int
	typ     string
	message string
	matches []error
}

var errorRules = []errorRule{
	{http.StatusBadRequest, "invalid_webhook", "webhook rejected", []error{
		paymentdomain.ErrInvalidSignature,
		paymentdomain.ErrInvalidPayload,
		paymentdomain.ErrInvalidEvent,
		paymentdomain.ErrInvalidComplaint,
		paymentdomain.ErrWebhookUnsupported,
		paymentdomain.ErrProviderNotFound,
	}},
	{http.StatusUnauthorized, "unauthorized", "unauthorized", []error{
		ErrUnauthorized,
		admindomain.ErrInvalidCredentials,
		admindomain.ErrUnauthenticated,
		admindomain.ErrInvalidSession,
	}},
	{http.StatusForbidden, "forbidden", "forbidden", []error{ErrForbidden, admindomain.ErrForbidden}},
	{http.StatusNotFound, "not_found", "not found", []error{ErrNotFound, complaintdomain.ErrNotFound}},
	{http.StatusConflict, "invalid_state", "complaint is not in a state that allows this action", []error{complaintdomain.ErrInvalidState}},
	{http.StatusTooManyRequests, "rate_limited", "too many requests", []error{ErrRateLimited}},
	{http.StatusServiceUnavailable, "service_unavailable", "service unavailable", []error{ErrServiceUnavailable}},
}

var internalError = errorPayload{Type: "internal_error", Message: "internal server error"}

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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

func validationPayload(message string, errs ...ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: message, Errors: errs}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalError
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, validationPayload("validation error", vErr.Errors...)
	}
	var fieldErr *complaintdomain.ValidationError
	if errors.As(err, &fieldErr) {
		return http.StatusBadRequest, validationPayload(fieldErr.Message, ValidationError{
			Field:   fieldErr.Field,
			Code:    "invalid_" + fieldErr.Field,
			Message: fieldErr.Message,
		})
	}
	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return http.StatusBadRequest, validationPayload("validation error", ValidationError{
			Field: "page_token", Code: "invalid_page_token", Message: "invalid page token",
		})
	}
	var gatewayErr *complaintdomain.GatewayError
	if errors.As(err, &gatewayErr) {
		return http.StatusBadGateway, errorPayload{Type: "gateway_error", Message: "payment gateway unavailable"}
	}

	for _, rule := range errorRules {
		for _, target := range rule.matches {
			if errors.Is(err, target) {
				return rule.status, errorPayload{Type: rule.typ, Message: rule.message}
			}
		}
	}
	return http.StatusInternalServerError, internalError
}

// classifyErrorForLog reports the envelope type and the underlying code for
// request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		code = vErr.Errors[0].Code
	} else if payload.Type != "validation_error" && payload.Type != "internal_error" {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}
