package models

// BridgeStatus classifies the outcome of a delegated operation.
type BridgeStatus string

const (
	BridgeSuccess BridgeStatus = "success"
	// BridgeAmbiguous means the executor exited zero without printing a
	// recognized success marker. Callers treat it as failure; silent partial
	// success is worse than a loud failure.
	BridgeAmbiguous BridgeStatus = "ambiguous_success"
	BridgeFailed    BridgeStatus = "failure"
	BridgeTimedOut  BridgeStatus = "timeout"
)

// BridgeResult is the structured interpretation of the executor's exit code
// and combined console output.
type BridgeResult struct {
	Status    BridgeStatus  `json:"status"`
	Operation OperationKind `json:"operation"`
	Output    string        `json:"output,omitempty"`
	ExitCode  int           `json:"exit_code"`
	CleanupOK bool          `json:"cleanup_ok"`
}

// Succeeded reports whether the operation is confirmed applied.
func (r *BridgeResult) Succeeded() bool {
	return r.Status == BridgeSuccess
}
