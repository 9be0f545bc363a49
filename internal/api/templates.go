package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// CreateTemplate creates version 1 of a new template from a temporary dataset.
func (c *Client) CreateTemplate(ctx context.Context, req *core.CreateTemplateRequest) (*core.CreateTemplateResult, error) {
	var out core.CreateTemplateResult
	if err := c.doJSON(ctx, request{op: "template creation", method: http.MethodPost, path: "/campaign-template/"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTemplates returns the latest version of every template.
func (c *Client) ListTemplates(ctx context.Context) ([]core.Template, error) {
	var out struct {
		Total     int             `json:"total"`
		Templates []core.Template `json:"templates"`
	}
	if err := c.do(ctx, request{op: "template list", method: http.MethodGet, path: "/campaign-template/"}, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

// GetTemplate returns the latest version of a template.
func (c *Client) GetTemplate(ctx context.Context, logicalID string) (*core.Template, error) {
	var out core.Template
	if err := c.do(ctx, request{op: "template fetch", method: http.MethodGet, path: templatePath(logicalID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTemplate stores a new draft version of a template.
func (c *Client) UpdateTemplate(ctx context.Context, logicalID string, req *core.UpdateTemplateRequest) (*core.UpdateTemplateResult, error) {
	var out core.UpdateTemplateResult
	if err := c.doJSON(ctx, request{op: "template update", method: http.MethodPut, path: templatePath(logicalID)}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublishTemplate publishes the latest version of a template.
func (c *Client) PublishTemplate(ctx context.Context, logicalID string) error {
	return c.do(ctx, request{op: "template publish", method: http.MethodPost, path: templatePath(logicalID) + "/publish"}, nil)
}

// DeleteTemplate soft-deletes every version of a template.
func (c *Client) DeleteTemplate(ctx context.Context, logicalID string) error {
	return c.do(ctx, request{op: "template deletion", method: http.MethodDelete, path: templatePath(logicalID)}, nil)
}

// PreviewTemplate renders the stored template body against row on the server.
func (c *Client) PreviewTemplate(ctx context.Context, logicalID string, row core.Row) (string, error) {
	var out struct {
		Rendered string `json:"rendered_message"`
	}
	err := c.doJSON(ctx, request{op: "template preview", method: http.MethodPost, path: templatePath(logicalID) + "/preview"},
		map[string]any{"sample_row": row}, &out)
	if err != nil {
		return "", err
	}
	return out.Rendered, nil
}

func templatePath(logicalID string) string {
	return "/campaign-template/" + url.PathEscape(logicalID)
}
