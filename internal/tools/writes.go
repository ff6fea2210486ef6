package tools

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/bridge"
	"github.com/fabric-gateway/agent/internal/models"
	"github.com/fabric-gateway/agent/internal/semantic"
)

// Model write operations. The gateway process cannot apply these against the
// analytical engine itself; each call builds a validated descriptor and
// delegates it to the external executor through the bridge.

func (d *Dispatcher) createMeasure(ctx context.Context, args map[string]any) (any, error) {
	return d.withDataset(func(sess models.Session) (any, error) {
		expression := argString(args, "expression")
		if err := semantic.ValidateExpression(expression); err != nil {
			return nil, models.NewError(models.ErrInvalidOperation, "invalid DAX expression: %v", err)
		}

		desc, err := models.NewUpsertMeasure(sess.Dataset.Name, argString(args, "table_name"),
			models.MeasureDefinition{
				Name:         argString(args, "name"),
				Expression:   expression,
				Description:  argString(args, "description"),
				FormatString: argString(args, "format_string"),
			})
		if err != nil {
			return nil, err
		}

		return d.delegate(ctx, sess, desc)
	})
}

func (d *Dispatcher) deleteMeasure(ctx context.Context, args map[string]any) (any, error) {
	return d.withDataset(func(sess models.Session) (any, error) {
		desc, err := models.NewDeleteMeasure(sess.Dataset.Name,
			argString(args, "table_name"), argString(args, "name"))
		if err != nil {
			return nil, err
		}
		return d.delegate(ctx, sess, desc)
	})
}

func (d *Dispatcher) deleteRelationship(ctx context.Context, args map[string]any) (any, error) {
	return d.withDataset(func(sess models.Session) (any, error) {
		desc, err := models.NewDeleteRelationship(sess.Dataset.Name, argString(args, "name"))
		if err != nil {
			return nil, err
		}
		return d.delegate(ctx, sess, desc)
	})
}

// delegate hands one descriptor to the executor and folds the bridge result
// into a tool payload. A stale-token failure triggers one invalidate-and-
// retry cycle, never more.
func (d *Dispatcher) delegate(ctx context.Context, sess models.Session, desc *models.OperationDescriptor) (any, error) {

	endpoint := semantic.EndpointForWorkspace(sess.WorkspaceName)

	run := func() (*models.BridgeResult, error) {
		cred, err := d.creds.Acquire(ctx, models.ScopeAnalytics)
		if err != nil {
			return nil, err
		}
		return d.bridge.Execute(ctx, desc, cred, endpoint)
	}

	result, err := run()
	if err != nil {
		return nil, err
	}

	if result.Status == models.BridgeFailed && looksLikeAuthFailure(result.Output) {
		logrus.WithField("operation", desc.Operation).
			Warnln("Executor reported an authorization failure, refreshing credential and retrying once")

		if err := d.creds.Invalidate(models.ScopeAnalytics); err != nil {
			return nil, err
		}
		result, err = run()
		if err != nil {
			return nil, err
		}
	}

	if !result.Succeeded() {
		return nil, bridge.ResultError(result)
	}

	return map[string]any{
		"status":     "success",
		"operation":  desc.Operation,
		"cleanup_ok": result.CleanupOK,
	}, nil
}

// looksLikeAuthFailure sniffs the executor output for an authorization
// rejection attributable to a stale token. Substring matching is all the
// executor contract offers.
func looksLikeAuthFailure(output string) bool {
	lowered := strings.ToLower(output)
	for _, marker := range []string{"401", "unauthorized", "tokenexpired"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
