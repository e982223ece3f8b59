package response

import "hospital-inventory/pkg/apperror"

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`     // "success" or "error"
	StatusCode int         `json:"statusCode"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`   // machine readable error code
	Message    string      `json:"message,omitempty"` // human readable detail
	Details    interface{} `json:"details,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Message returns a success response carrying only a message, used by deletes.
func Message(statusCode int, msg string) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Message:    msg,
	}
}

// Error returns a standard error response with an error code and message
func Error(statusCode int, code, msg string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      code,
		Message:    msg,
	}
}

// Paginated is the data payload of list endpoints.
type Paginated struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// FromError maps an error to its HTTP status and error envelope. Errors
// without an app error code are reported as INTERNAL_ERROR with the generic
// public message so causes never leak to clients.
func FromError(err error) (int, Response) {
	typed := apperror.As(err)
	if typed == nil {
		typed = apperror.Wrap(apperror.CodeInternal, err, "")
	}
	meta := apperror.MetadataFor(typed.Code())

	msg := typed.Message()
	if typed.Code() == apperror.CodeInternal || msg == "" {
		msg = meta.PublicMessage
	}
	res := Error(meta.HTTPStatus, string(typed.Code()), msg)
	if meta.DetailsAllowed {
		res.Details = typed.Details()
	}
	return meta.HTTPStatus, res
}
