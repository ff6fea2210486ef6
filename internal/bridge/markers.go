package bridge

// Output markers agreed with the executor. The executor's only observable
// contract is human-readable console text, so these literals are an informal
// protocol: they must stay byte-exact with the executor's output format.
// Anything unrecognized classifies as failure, never as success.
//
// Marker set version: 1.
const (
	markerSuccess = "TMSL Execution completed successfully"

	// Idempotent deletes: an absent target is a successful no-op.
	markerMeasureAbsent      = "Measure not found"
	markerRelationshipAbsent = "Relationship not found"

	markerError = "Error:"
)
