package domain

import "errors"

var (
	ErrProviderNotFound      = errors.New("payment_provider_not_found")
	ErrInvalidProvider       = errors.New("invalid_payment_provider")
	ErrInvalidConfig         = errors.New("invalid_payment_config")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidComplaint      = errors.New("invalid_complaint_reference")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrWebhookUnsupported    = errors.New("webhook_unsupported")
	ErrSessionNotFound       = errors.New("checkout_session_not_found")
	ErrSandboxDisabled       = errors.New("sandbox_gateway_disabled")
)
