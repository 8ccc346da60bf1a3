package domain

import (
	"time"

	shared "FleetGuard/internal/shared/models"
)

// Result итог выполнения одной команды на устройстве
type Result struct {
	CommandID    string                 `json:"command_id"`
	Class        shared.CommandClass    `json:"class"`
	Success      bool                   `json:"success"`
	ResponseTime int                    `json:"response_time"` // микросекунды
	Error        string                 `json:"error,omitempty"`
	Data         map[string]interface{} `json:"data"`
	Timestamp    time.Time              `json:"timestamp"`
}

func NewSuccessResult(cmd Command, responseTime int, data map[string]interface{}) *Result {
	if data == nil {
		data = map[string]interface{}{}
	}

	return &Result{
		CommandID:    cmd.ID,
		Class:        cmd.Class,
		Success:      true,
		ResponseTime: responseTime,
		Data:         data,
		Timestamp:    time.Now(),
	}
}

func NewErrorResult(cmd Command, err error) *Result {
	return &Result{
		CommandID: cmd.ID,
		Class:     cmd.Class,
		Success:   false,
		Error:     err.Error(),
		Data:      map[string]interface{}{},
		Timestamp: time.Now(),
	}
}

// Output вывод команды, если раннер его вернул
func (r *Result) Output() string {
	if out, ok := r.Data["output"].(string); ok {
		return out
	}
	return ""
}

// CycleSummary итог одного цикла согласования
type CycleSummary struct {
	Executed    int      `json:"executed"`
	Succeeded   int      `json:"succeeded"`
	Reported    int      `json:"reported"`
	FailedSteps []string `json:"failed_steps,omitempty"`
}

func (s *CycleSummary) Fail(step string) {
	s.FailedSteps = append(s.FailedSteps, step)
}
