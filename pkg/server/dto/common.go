package dto

// Result is the generic success envelope.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail wraps an error message.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}
