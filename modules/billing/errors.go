package billing

import "errors"

var (
	ErrCustomerNotFound     = errors.New("billing customer not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUnknownCustomer      = errors.New("webhook references an unknown billing customer")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	ErrInvalidPayload       = errors.New("webhook payload is malformed")
	ErrProviderError        = errors.New("billing provider request failed")

	ErrMissingAPIKey        = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret = errors.New("billing provider webhook secret is required")
	ErrInvalidEnvironment   = errors.New("invalid billing provider environment")
	ErrNoCheckoutURL        = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL          = errors.New("no portal URL returned from provider")

	ErrPlanNotFound    = errors.New("subscription plan not found")
	ErrInvalidPlanFile = errors.New("invalid subscription plan configuration")
)
