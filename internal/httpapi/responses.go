package httpapi

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// BatchRequest is the body of POST /tokens/batch.
type BatchRequest struct {
	Identifiers *[]string `json:"identifiers"`
}
