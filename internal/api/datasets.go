package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// UploadDataset uploads a CSV for template creation and returns its
// temporary handle, inferred schema and preview rows.
func (c *Client) UploadDataset(ctx context.Context, path string) (*core.UploadResult, error) {
	body, contentType, err := newForm().file("file", path).finish()
	if err != nil {
		return nil, err
	}

	var out core.UploadResult
	err = c.do(ctx, request{
		op:          "dataset upload",
		method:      http.MethodPost,
		path:        "/dataset/temp-upload",
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TestFilter evaluates filter against the CSV at path on the server.
// A nil filter matches every row; filter_definition is only sent when set.
func (c *Client) TestFilter(ctx context.Context, path string, filter *core.FilterPayload) (*core.FilterResult, error) {
	f := newForm().file("file", path)
	if filter != nil {
		data, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		f.field("filter_definition", string(data))
	}
	body, contentType, err := f.finish()
	if err != nil {
		return nil, err
	}

	var out core.FilterResult
	err = c.do(ctx, request{
		op:          "filter test",
		method:      http.MethodPost,
		path:        "/campaign-template/test-filter",
		body:        body,
		contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
