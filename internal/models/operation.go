package models

import "encoding/json"

// OperationKind names a delegated write operation. The set is closed; each
// kind carries its own required-field schema, validated at construction.
type OperationKind string

const (
	OpUpsertMeasure      OperationKind = "upsert_measure"
	OpDeleteMeasure      OperationKind = "delete_measure"
	OpDeleteRelationship OperationKind = "delete_relationship"
)

// MeasureDefinition is the payload for measure upserts.
type MeasureDefinition struct {
	Name         string `json:"name"`
	Expression   string `json:"expression"`
	Description  string `json:"description,omitempty"`
	FormatString string `json:"formatString,omitempty"`
}

// OperationDescriptor is a single pending write request handed to the
// external executor. Exactly one operation kind is active per descriptor.
type OperationDescriptor struct {
	Operation    OperationKind
	Database     string
	Table        string
	Measure      *MeasureDefinition
	MeasureName  string
	Relationship string
}

// MarshalJSON emits the executor's wire shape. The measure key is
// polymorphic there: upserts nest the full definition object under it,
// measure deletes carry the bare name.
func (d OperationDescriptor) MarshalJSON() ([]byte, error) {
	payload := map[string]any{
		"operation": d.Operation,
		"database":  d.Database,
	}
	if len(d.Table) > 0 {
		payload["table"] = d.Table
	}

	switch d.Operation {
	case OpUpsertMeasure:
		payload["measure"] = d.Measure
	case OpDeleteMeasure:
		payload["measure"] = d.MeasureName
	case OpDeleteRelationship:
		payload["relationship"] = d.Relationship
	}

	return json.Marshal(payload)
}

// NewUpsertMeasure builds a validated upsert descriptor.
func NewUpsertMeasure(database, table string, measure MeasureDefinition) (*OperationDescriptor, error) {
	desc := &OperationDescriptor{
		Operation: OpUpsertMeasure,
		Database:  database,
		Table:     table,
		Measure:   &measure,
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// NewDeleteMeasure builds a validated measure delete descriptor. Deleting a
// measure that does not exist is a successful no-op downstream.
func NewDeleteMeasure(database, table, name string) (*OperationDescriptor, error) {
	desc := &OperationDescriptor{
		Operation:   OpDeleteMeasure,
		Database:    database,
		Table:       table,
		MeasureName: name,
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// NewDeleteRelationship builds a validated relationship delete descriptor.
// The executor matches the relationship name case-insensitively.
func NewDeleteRelationship(database, name string) (*OperationDescriptor, error) {
	desc := &OperationDescriptor{
		Operation:    OpDeleteRelationship,
		Database:     database,
		Relationship: name,
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// Validate checks that every field required by the declared kind is present.
// The bridge refuses to spawn the executor for an incomplete descriptor.
func (d *OperationDescriptor) Validate() error {
	if len(d.Database) == 0 {
		return NewError(ErrInvalidOperation, "%s requires a database", d.Operation)
	}

	switch d.Operation {
	case OpUpsertMeasure:
		if len(d.Table) == 0 {
			return NewError(ErrInvalidOperation, "%s requires a table", d.Operation)
		}
		if d.Measure == nil || len(d.Measure.Name) == 0 {
			return NewError(ErrInvalidOperation, "%s requires a measure name", d.Operation)
		}
		if len(d.Measure.Expression) == 0 {
			return NewError(ErrInvalidOperation, "%s requires a measure expression", d.Operation)
		}
	case OpDeleteMeasure:
		if len(d.Table) == 0 {
			return NewError(ErrInvalidOperation, "%s requires a table", d.Operation)
		}
		if len(d.MeasureName) == 0 {
			return NewError(ErrInvalidOperation, "%s requires a measure name", d.Operation)
		}
	case OpDeleteRelationship:
		if len(d.Relationship) == 0 {
			return NewError(ErrInvalidOperation, "%s requires a relationship name", d.Operation)
		}
	default:
		return NewError(ErrInvalidOperation, "unknown operation kind: %s", d.Operation)
	}

	return nil
}

// IsDelete reports whether the kind is one of the idempotent delete
// operations, for which an absent target classifies as success.
func (d *OperationDescriptor) IsDelete() bool {
	return d.Operation == OpDeleteMeasure || d.Operation == OpDeleteRelationship
}
