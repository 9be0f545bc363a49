package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// RunResult is the answer to an execution launch.
type RunResult struct {
	ExecutionID int64                `json:"execution_id"`
	Status      core.ExecutionStatus `json:"status"`
}

// RunExecution starts a bulk send of a published template over the CSV at req.FilePath.
func (c *Client) RunExecution(ctx context.Context, req *core.RunExecutionRequest) (*RunResult, error) {
	body, contentType, err := newForm().
		field("logical_id", req.TemplateID).
		field("channel_type", string(req.Channel)).
		field("recipient_column", req.RecipientColumn).
		field("integration_id", strconv.FormatInt(req.IntegrationID, 10)).
		file("file", req.FilePath).
		finish()
	if err != nil {
		return nil, err
	}

	var out RunResult
	err = c.do(ctx, request{
		op:          "execution launch",
		method:      http.MethodPost,
		path:        "/execution/run",
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PreviewSchema reads the CSV at path on the server and returns its row
// count, column schema and first rows. Nothing is stored.
func (c *Client) PreviewSchema(ctx context.Context, path string) (*core.UploadResult, error) {
	body, contentType, err := newForm().file("file", path).finish()
	if err != nil {
		return nil, err
	}

	var out core.UploadResult
	err = c.do(ctx, request{
		op:          "schema preview",
		method:      http.MethodPost,
		path:        "/execution/preview-schema",
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetExecution returns the summary of an execution.
func (c *Client) GetExecution(ctx context.Context, id int64) (*core.Execution, error) {
	var out core.Execution
	if err := c.do(ctx, request{op: "execution fetch", method: http.MethodGet, path: executionPath(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListExecutions returns the organization's executions, newest first.
func (c *Client) ListExecutions(ctx context.Context) ([]core.Execution, error) {
	var out struct {
		Total      int              `json:"total"`
		Executions []core.Execution `json:"executions"`
	}
	if err := c.do(ctx, request{op: "execution list", method: http.MethodGet, path: "/execution/"}, &out); err != nil {
		return nil, err
	}
	return out.Executions, nil
}

// CancelExecution asks the server to stop a queued or running execution.
func (c *Client) CancelExecution(ctx context.Context, id int64) error {
	return c.do(ctx, request{op: "execution cancel", method: http.MethodPost, path: executionPath(id) + "/cancel"}, nil)
}

// ExecutionLogs returns one page of delivery logs. Pages start at 1.
func (c *Client) ExecutionLogs(ctx context.Context, id int64, page, limit int) (*core.LogPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out core.LogPage
	if err := c.do(ctx, request{op: "log fetch", method: http.MethodGet, path: executionPath(id) + "/logs", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListIntegrations returns the configured delivery providers.
func (c *Client) ListIntegrations(ctx context.Context) ([]core.Integration, error) {
	var out struct {
		Total        int                `json:"total"`
		Integrations []core.Integration `json:"integrations"`
	}
	if err := c.do(ctx, request{op: "integration list", method: http.MethodGet, path: "/integrations/"}, &out); err != nil {
		return nil, err
	}
	return out.Integrations, nil
}

func executionPath(id int64) string {
	return "/execution/" + strconv.FormatInt(id, 10)
}
