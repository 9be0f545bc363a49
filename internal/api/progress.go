package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campaignhq/campaignhq/pkg/core"
)

const (
	writeWait = 10 * time.Second
	heartbeat = "ping"
)

// ProgressConn is a live execution progress stream. Read may be called from
// one goroutine while Heartbeat and Close are called from others.
type ProgressConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// ProgressURL returns the websocket URL for an execution, including the token.
func (c *Client) ProgressURL(id int64, token string) string {
	u := *c.wsURL
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/execution/" + strconv.FormatInt(id, 10)
	u.RawQuery = url.Values{"token": []string{token}}.Encode()
	return u.String()
}

// DialProgress opens the progress stream of an execution. The server sends
// the current snapshot first and then every update.
func (c *Client) DialProgress(ctx context.Context, id int64) (*ProgressConn, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.httpClient.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.ProgressURL(id, token), nil)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, fmt.Errorf("%w (HTTP %d)", ErrStreamRejected, resp.StatusCode)
			default:
				return nil, decodeError(resp, "progress stream")
			}
		}
		return nil, fmt.Errorf("progress stream: %w", err)
	}

	c.logger.Debug("progress stream opened", "execution_id", id)
	return &ProgressConn{conn: conn}, nil
}

// Read blocks for the next progress snapshot. It returns io.EOF when the
// server closes the stream normally and ErrStreamRejected on a policy close.
func (p *ProgressConn) Read() (core.Progress, error) {
	var pr core.Progress
	if err := p.conn.ReadJSON(&pr); err != nil {
		switch {
		case websocket.IsCloseError(err, websocket.ClosePolicyViolation):
			return core.Progress{}, ErrStreamRejected
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			return core.Progress{}, io.EOF
		default:
			return core.Progress{}, err
		}
	}
	return pr, nil
}

// Heartbeat sends a keep-alive text frame; the server reads these to detect
// dead clients.
func (p *ProgressConn) Heartbeat() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, []byte(heartbeat))
}

// Close sends a normal close frame and closes the connection. It is safe to
// call more than once.
func (p *ProgressConn) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		p.writeMu.Unlock()

		if cerr := p.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}
