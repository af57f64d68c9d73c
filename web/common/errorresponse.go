package common

type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewErrorResponse(message string, code ...string) *ErrorResponse {
	r := &ErrorResponse{
		Message: message,
	}
	if len(code) > 0 {
		r.Code = code[0]
	}
	return r
}
