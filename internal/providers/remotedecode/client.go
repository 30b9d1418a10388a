package remotedecode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"barcodescan/internal/domain"
	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
)

// Config controls the remote decoder websocket.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Decoder implements ports.Decoder by sending frames to a decode service over a websocket.
// One request is in flight per connection; the connection is redialled after any transport error.
type Decoder struct {
	cfg Config

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewDecoder(cfg Config) *Decoder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Decoder{cfg: cfg}
}

type frameHeader struct {
	Type        string   `json:"type"`
	Seq         uint64   `json:"seq"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Stride      int      `json:"stride"`
	PixelFormat string   `json:"pixel_format"`
	Rotation    int      `json:"rotation"`
	Formats     []string `json:"formats,omitempty"`
}

type decodeResponse struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq"`
	Found   bool   `json:"found"`
	Text    string `json:"text"`
	Format  string `json:"format"`
	Message string `json:"message"`
}

func (d *Decoder) TryDecode(ctx context.Context, frame ports.Frame, allowed domain.FormatSet) (domain.Detection, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connLocked(ctx)
	if err != nil {
		return domain.Detection{}, false, err
	}

	header := frameHeader{
		Type:        "frame",
		Seq:         frame.Seq,
		Width:       frame.Width,
		Height:      frame.Height,
		Stride:      frame.Stride,
		PixelFormat: string(frame.PixelFormat),
		Rotation:    int(frame.Rotation),
	}
	if !allowed.All() {
		header.Formats = lo.Map(allowed.List(), func(f domain.DecodeFormat, _ int) string { return string(f) })
	}

	deadline := time.Now().Add(d.cfg.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(header); err != nil {
		return d.failLocked(fmt.Errorf("failed to send frame header: %w", err))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
		return d.failLocked(fmt.Errorf("failed to send frame: %w", err))
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return d.failLocked(fmt.Errorf("failed to read decode result: %w", err))
		}

		var response decodeResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}
		if strings.EqualFold(response.Type, "error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "remote decoder returned an unknown error"
			}
			return domain.Detection{}, false, errors.New(message)
		}
		if response.Seq != frame.Seq {
			// Reply to a request that already timed out.
			continue
		}
		if !response.Found {
			return domain.Detection{}, false, nil
		}
		return domain.Detection{
			Text:   response.Text,
			Format: domain.ParseDecodeFormat(response.Format),
		}, true, nil
	}
}

// Close drops the connection. The next TryDecode dials again.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	_ = d.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *Decoder) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}
	if strings.TrimSpace(d.cfg.URL) == "" {
		return nil, errors.New("SCANNER_REMOTE_DECODER_URL is not configured")
	}

	wsURL, err := buildDecodeURL(d.cfg.URL)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if d.cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+d.cfg.Token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote decoder: %w", err)
	}
	logger.Log.Info("remote decoder connected",
		slog.String("component", "remote_decoder"),
		slog.String("url", wsURL))
	d.conn = conn
	return conn, nil
}

func (d *Decoder) failLocked(err error) (domain.Detection, bool, error) {
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
	if isNormalClose(err) {
		return domain.Detection{}, false, errors.New("remote decoder closed the connection")
	}
	return domain.Detection{}, false, err
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(errors.Unwrap(err),
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func buildDecodeURL(base string) (string, error) {
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	decodeURL, err := url.Parse(base + "/decode")
	if err != nil {
		return "", fmt.Errorf("invalid remote decoder URL: %w", err)
	}
	if decodeURL.Scheme != "ws" && decodeURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid remote decoder URL scheme %q", decodeURL.Scheme)
	}
	return decodeURL.String(), nil
}

var _ ports.Decoder = (*Decoder)(nil)
