package models

import "fmt"

// APIError is a non-2xx answer from an LLM provider
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Transient reports whether the call may succeed if repeated
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}
