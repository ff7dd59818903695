package server

import (
	"errors"
	"net/http"
)

// Machine-readable rejection reasons, carried in the X-Reason header and the
// JSON error body, distinct from the HTTP status.
const (
	ReasonLengthRequired    = "length-required"
	ReasonPaymentRequired   = "payment-required"
	ReasonInvalidToken      = "invalid-token"
	ReasonInsufficientFunds = "insufficient-payment"
	ReasonMethodNotAllowed  = "method-not-allowed"
	ReasonRedemptionFailed  = "payment-redemption-failed"
	ReasonLengthMismatch    = "length-mismatch"
	ReasonInvalidDigest     = "invalid-digest"
	ReasonNotFound          = "not-found"
	ReasonUnauthorized      = "unauthorized"
	ReasonInternal          = "internal"
)

type apiError struct {
	status int
	reason string
	err    error

	// challenge is the encoded payment request attached to payment-related
	// rejections, surfaced to the client in the X-Cashu header.
	challenge string
}

func (e apiError) Error() string {
	if e.err == nil {
		return http.StatusText(e.status)
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, reason string, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	var existing apiError
	if errors.As(err, &existing) {
		return existing
	}
	return apiError{status: status, reason: reason, err: err}
}

func withChallenge(err error, challenge string) error {
	var e apiError
	if errors.As(err, &e) {
		e.challenge = challenge
		return e
	}
	return err
}

func badRequest(reason string, err error) error {
	return makeAPIError(http.StatusBadRequest, reason, err)
}

func paymentRequired(reason string, err error) error {
	return makeAPIError(http.StatusPaymentRequired, reason, err)
}

func notFound(err error) error {
	return makeAPIError(http.StatusNotFound, ReasonNotFound, err)
}

func methodNotAllowed(err error) error {
	return makeAPIError(http.StatusMethodNotAllowed, ReasonMethodNotAllowed, err)
}

func unauthorized(err error) error {
	return makeAPIError(http.StatusUnauthorized, ReasonUnauthorized, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, ReasonInternal, err)
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func reasonFromError(err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.reason != "" {
		return apiErr.reason
	}
	return ReasonInternal
}

func challengeFromError(err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.challenge
	}
	return ""
}
