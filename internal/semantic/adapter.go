package semantic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/auth"
	"github.com/fabric-gateway/agent/internal/config"
	"github.com/fabric-gateway/agent/internal/models"
)

const apiBase = "https://api.powerbi.com/v1.0/myorg"

// EndpointForWorkspace builds the XMLA endpoint the write executor targets.
func EndpointForWorkspace(workspaceName string) string {
	return fmt.Sprintf("powerbi://api.powerbi.com/v1.0/myorg/%s", workspaceName)
}

// Workspace is a Power BI workspace visible to the user.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Dataset is a semantic model within a workspace.
type Dataset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ConfiguredBy  string `json:"configuredBy,omitempty"`
	IsRefreshable bool   `json:"isRefreshable,omitempty"`
}

// QueryResult holds rows returned by a DAX execution.
type QueryResult struct {
	Rows []map[string]any `json:"rows"`
}

// Adapter talks to the Power BI REST API for metadata and DAX queries. Write
// operations do not go through here; those are delegated via the bridge.
type Adapter struct {
	rest   *resty.Client
	creds  *auth.Manager
	limits config.LimitsConfig
}

func NewAdapter(creds *auth.Manager, limits config.LimitsConfig) *Adapter {
	return &Adapter{
		rest:   resty.New().SetBaseURL(apiBase),
		creds:  creds,
		limits: limits,
	}
}

// request performs one authenticated call. A 401/403 is attributed to a
// stale token: the scope is invalidated and the call retried exactly once.
func (a *Adapter) request(ctx context.Context, method, path string, body any, out any) error {

	attempt := func() (*resty.Response, error) {
		cred, err := a.creds.Acquire(ctx, models.ScopeAnalytics)
		if err != nil {
			return nil, err
		}

		req := a.rest.R().
			SetContext(ctx).
			SetAuthToken(cred.Token).
			SetHeader("Content-Type", "application/json")

		if body != nil {
			req.SetBody(body)
		}
		if out != nil {
			req.SetResult(out)
		}

		return req.Execute(method, path)
	}

	resp, err := attempt()
	if err != nil {
		return err
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		logrus.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode(),
		}).Warnln("Authorization rejected, refreshing credential and retrying once")

		if err := a.creds.Invalidate(models.ScopeAnalytics); err != nil {
			return err
		}

		resp, err = attempt()
		if err != nil {
			return err
		}
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			return models.NewErrorWithDetail(models.ErrStaleCredentialRejected, resp.String(),
				"authorization rejected after refresh for %s", path)
		}
	}

	if resp.IsError() {
		return fmt.Errorf("power bi api returned %d for %s: %s", resp.StatusCode(), path, resp.String())
	}

	return nil
}

// ListWorkspaces lists all workspaces the user has access to.
func (a *Adapter) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out struct {
		Value []Workspace `json:"value"`
	}
	if err := a.request(ctx, http.MethodGet, "/groups", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return out.Value, nil
}

// ListDatasets lists semantic models in a workspace.
func (a *Adapter) ListDatasets(ctx context.Context, workspaceID string) ([]Dataset, error) {
	var out struct {
		Value []Dataset `json:"value"`
	}
	path := fmt.Sprintf("/groups/%s/datasets", workspaceID)
	if err := a.request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return out.Value, nil
}

// DatasetInfo returns metadata for one dataset.
func (a *Adapter) DatasetInfo(ctx context.Context, workspaceID, datasetID string) (*Dataset, error) {
	var out Dataset
	path := fmt.Sprintf("/groups/%s/datasets/%s", workspaceID, datasetID)
	if err := a.request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get dataset info: %w", err)
	}
	return &out, nil
}

// TriggerRefresh starts a dataset refresh.
func (a *Adapter) TriggerRefresh(ctx context.Context, workspaceID, datasetID string) error {
	path := fmt.Sprintf("/groups/%s/datasets/%s/refreshes", workspaceID, datasetID)
	if err := a.request(ctx, http.MethodPost, path, map[string]any{}, nil); err != nil {
		return fmt.Errorf("failed to trigger refresh: %w", err)
	}
	return nil
}

// ExecuteDAX runs a DAX query against a dataset via executeQueries. The
// query must start with EVALUATE; row output is capped by the configured
// limit.
func (a *Adapter) ExecuteDAX(ctx context.Context, workspaceID, datasetID, query string) (*QueryResult, error) {

	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "EVALUATE") {
		trimmed = "EVALUATE " + trimmed
	}

	body := map[string]any{
		"queries":            []map[string]string{{"query": trimmed}},
		"serializerSettings": map[string]bool{"includeNulls": true},
	}

	var out struct {
		Results []struct {
			Tables []struct {
				Rows []map[string]any `json:"rows"`
			} `json:"tables"`
		} `json:"results"`
	}

	path := fmt.Sprintf("/groups/%s/datasets/%s/executeQueries", workspaceID, datasetID)
	if err := a.request(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, fmt.Errorf("dax execution failed: %w", err)
	}

	result := &QueryResult{}
	if len(out.Results) > 0 && len(out.Results[0].Tables) > 0 {
		result.Rows = out.Results[0].Tables[0].Rows
	}

	if a.limits.MaxDaxRows > 0 && len(result.Rows) > a.limits.MaxDaxRows {
		result.Rows = result.Rows[:a.limits.MaxDaxRows]
	}

	return result, nil
}
