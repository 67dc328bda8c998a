package models

// Operator identifies the back-office operator acting on a request. Identity
// is established upstream (gateway) and passed through verbatim; this service
// enforces no authentication policy of its own.
type Operator struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}
