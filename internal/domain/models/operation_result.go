package models

import "time"

// OperationResult is the structured outcome of every toolchain-backed workflow.
// Toolchain failures are reported here rather than as Go errors.
type OperationResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
	// StoredName is set by CSR ingestion.
	StoredName string `json:"filename,omitempty"`
}

// ExecResult is the raw outcome of one sandboxed toolchain invocation.
type ExecResult struct {
	Success  bool          `json:"success"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	TimedOut bool          `json:"timedOut"`
	Duration time.Duration `json:"-"`
}

// ToOperationResult folds an execution into the structured workflow result.
func (r *ExecResult) ToOperationResult() OperationResult {
	if r == nil {
		return OperationResult{Success: false, Error: "no result"}
	}
	res := OperationResult{Success: r.Success, Output: r.Stdout}
	if !r.Success {
		res.Error = r.Stderr
	}
	return res
}
