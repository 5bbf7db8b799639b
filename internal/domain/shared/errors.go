package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound          = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput      = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidScope      = NewDomainError("INVALID_SCOPE", "Recompute scope is not valid")
	ErrPersistenceFailed = NewDomainError("PERSISTENCE_FAILED", "Storage layer rejected the write")
	ErrReportingStale    = NewDomainError("REPORTING_STALE", "Raw fact persisted but reporting table update failed")
)
