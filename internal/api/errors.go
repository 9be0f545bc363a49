package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrNotAuthenticated means no token is available or the server rejected it.
	ErrNotAuthenticated = errors.New("not authenticated: run `campaignhq login`")
	// ErrStreamRejected means the progress websocket was refused or closed with a policy violation.
	ErrStreamRejected = errors.New("progress stream rejected by server")
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Error is a non-2xx API response.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches ErrNotAuthenticated for 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrNotAuthenticated && e.StatusCode == http.StatusUnauthorized
}

// IsStatus reports whether err is an *Error with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// decodeError builds an *Error from a failed response. The message comes from
// the JSON "detail" field (a string, or the first "msg" of a validation list),
// then "message", then a generic fallback.
func decodeError(resp *http.Response, op string) *Error {
	e := &Error{Op: op, StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e.Message = messageFrom(body)
	if e.Message == "" {
		e.Message = fmt.Sprintf("%s failed (HTTP %d)", op, resp.StatusCode)
	}
	return e
}

func messageFrom(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
			return s
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(payload.Detail, &list) == nil && len(list) > 0 && list[0].Msg != "" {
			return list[0].Msg
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Detail, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return strings.TrimSpace(payload.Message)
}
