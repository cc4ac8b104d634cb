package dto

// Error kinds carried in Envelope.Error.
const (
	KindValidation         = "ValidationError"
	KindUnauthenticated    = "Unauthenticated"
	KindInvalidCredentials = "InvalidCredentials"
	KindForbidden          = "Forbidden"
	KindNotFound           = "NotFound"
	KindDuplicateEmail     = "DuplicateEmail"
	KindConflict           = "Conflict"
	KindTooManyRequests    = "TooManyRequests"
	KindInternal           = "Internal"
)

// Envelope is the shape of every JSON response body.
type Envelope struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
	Details []FieldDetail `json:"details,omitempty"`
	Meta    *Meta         `json:"meta,omitempty"`
}

type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func OKMessage(message string) Envelope {
	return Envelope{Success: true, Message: message}
}

func Paged(data any, meta Meta) Envelope {
	return Envelope{Success: true, Data: data, Meta: &meta}
}

func Fail(kind, message string) Envelope {
	return Envelope{Success: false, Error: kind, Message: message}
}
