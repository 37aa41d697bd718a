package model

// Tool result statuses.
const (
	ToolStatusSuccess = "success"
	ToolStatusError   = "error"
)

// ToolResult is the envelope every travel tool returns to the model.
type ToolResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func ToolOK(data any) *ToolResult {
	return &ToolResult{Status: ToolStatusSuccess, Data: data}
}

func ToolFailed(err error) *ToolResult {
	return &ToolResult{Status: ToolStatusError, Error: err.Error()}
}
