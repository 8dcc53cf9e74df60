// Package types holds the JSON envelopes shared by every API response.
package types

// SuccessEnvelope wraps successful payloads, order documents and listings
// alike, under a single data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape; Code carries the taxonomy value
// (VALIDATION_ERROR, ASSIGNMENT_CONFLICT, ...) clients branch on.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
