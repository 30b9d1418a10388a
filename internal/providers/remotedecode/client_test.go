package remotedecode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

type fakeDecodeServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	headers []frameHeader
	auth    string
	dials   atomic.Int32

	respond func(header frameHeader, payload []byte) any
}

func newFakeDecodeServer(t *testing.T, respond func(header frameHeader, payload []byte) any) *fakeDecodeServer {
	t.Helper()
	f := &fakeDecodeServer{respond: respond}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDecodeServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/decode" {
		http.NotFound(w, r)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	f.dials.Add(1)

	f.mu.Lock()
	f.auth = r.Header.Get("Authorization")
	f.mu.Unlock()

	for {
		var header frameHeader
		if err := conn.ReadJSON(&header); err != nil {
			return
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.headers = append(f.headers, header)
		f.mu.Unlock()

		reply := f.respond(header, payload)
		if reply == nil {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (f *fakeDecodeServer) snapshotHeaders() []frameHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frameHeader(nil), f.headers...)
}

func testFrame(seq uint64, marker byte) ports.Frame {
	return ports.Frame{
		Data:        []byte{marker, 0, 0, 0},
		Width:       2,
		Height:      2,
		Stride:      2,
		PixelFormat: ports.PixelFormatGray8,
		Rotation:    domain.Rotation90,
		Seq:         seq,
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	t.Parallel()

	srv := newFakeDecodeServer(t, func(header frameHeader, payload []byte) any {
		if payload[0] == 1 {
			return decodeResponse{Type: "result", Seq: header.Seq, Found: true, Text: "remote-text", Format: "qr_code"}
		}
		return decodeResponse{Type: "result", Seq: header.Seq}
	})
	d := NewDecoder(Config{URL: srv.server.URL, Token: "secret"})
	defer d.Close()

	_, found, err := d.TryDecode(context.Background(), testFrame(1, 0), domain.NewFormatSet())
	if err != nil || found {
		t.Fatalf("expected miss, got found=%t err=%v", found, err)
	}

	detection, found, err := d.TryDecode(context.Background(), testFrame(2, 1), domain.NewFormatSet(domain.FormatQRCode, domain.FormatEAN13))
	if err != nil || !found {
		t.Fatalf("expected detection, got found=%t err=%v", found, err)
	}
	if detection.Text != "remote-text" || detection.Format != domain.FormatQRCode {
		t.Fatalf("unexpected detection: %+v", detection)
	}

	headers := srv.snapshotHeaders()
	if len(headers) != 2 {
		t.Fatalf("expected two frames sent, got %d", len(headers))
	}
	if headers[0].Formats != nil {
		t.Fatalf("unrestricted request must not list formats: %v", headers[0].Formats)
	}
	if strings.Join(headers[1].Formats, ",") != "EAN_13,QR_CODE" {
		t.Fatalf("unexpected formats: %v", headers[1].Formats)
	}
	if headers[1].Rotation != 90 || headers[1].PixelFormat != "gray8" || headers[1].Width != 2 {
		t.Fatalf("unexpected header: %+v", headers[1])
	}
	if srv.dials.Load() != 1 {
		t.Fatalf("expected a single reused connection, got %d dials", srv.dials.Load())
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.auth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", srv.auth)
	}
}

func TestDecoderServerErrorMessage(t *testing.T) {
	t.Parallel()

	srv := newFakeDecodeServer(t, func(frameHeader, []byte) any {
		return decodeResponse{Type: "error", Message: "model not loaded"}
	})
	d := NewDecoder(Config{URL: srv.server.URL})
	defer d.Close()

	_, found, err := d.TryDecode(context.Background(), testFrame(1, 1), domain.NewFormatSet())
	if found || err == nil || err.Error() != "model not loaded" {
		t.Fatalf("expected server error, got found=%t err=%v", found, err)
	}
}

func TestDecoderRedialsAfterClose(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newFakeDecodeServer(t, func(header frameHeader, _ []byte) any {
		if calls.Add(1) == 1 {
			return nil
		}
		return decodeResponse{Type: "result", Seq: header.Seq, Found: true, Text: "again", Format: "CODE_128"}
	})
	d := NewDecoder(Config{URL: srv.server.URL})
	defer d.Close()

	_, found, err := d.TryDecode(context.Background(), testFrame(1, 1), domain.NewFormatSet())
	if err == nil || found {
		t.Fatalf("expected transport error on server close, got found=%t err=%v", found, err)
	}

	detection, found, err := d.TryDecode(context.Background(), testFrame(2, 1), domain.NewFormatSet())
	if err != nil || !found || detection.Format != domain.FormatCode128 {
		t.Fatalf("expected redial to succeed, got %+v found=%t err=%v", detection, found, err)
	}
	if srv.dials.Load() != 2 {
		t.Fatalf("expected two dials, got %d", srv.dials.Load())
	}
}

func TestDecoderTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := newFakeDecodeServer(t, func(header frameHeader, _ []byte) any {
		<-block
		return decodeResponse{Type: "result", Seq: header.Seq}
	})
	defer close(block)

	d := NewDecoder(Config{URL: srv.server.URL, Timeout: 100 * time.Millisecond})
	defer d.Close()

	start := time.Now()
	_, _, err := d.TryDecode(context.Background(), testFrame(1, 1), domain.NewFormatSet())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not honoured")
	}
}

func TestDecoderContextCancel(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := newFakeDecodeServer(t, func(header frameHeader, _ []byte) any {
		<-block
		return decodeResponse{Type: "result", Seq: header.Seq}
	})
	defer close(block)

	d := NewDecoder(Config{URL: srv.server.URL, Timeout: 5 * time.Second})
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, _, err := d.TryDecode(ctx, testFrame(1, 1), domain.NewFormatSet())
	if err == nil || !strings.Contains(err.Error(), context.Canceled.Error()) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestDecoderRequiresURL(t *testing.T) {
	t.Parallel()

	_, _, err := NewDecoder(Config{}).TryDecode(context.Background(), testFrame(1, 1), domain.NewFormatSet())
	if err == nil || !strings.Contains(err.Error(), "SCANNER_REMOTE_DECODER_URL") {
		t.Fatalf("expected missing url error, got %v", err)
	}
}

func TestBuildDecodeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://decode.example.com/v1/": "wss://decode.example.com/v1/decode",
		"http://localhost:9000":          "ws://localhost:9000/decode",
		"ws://10.0.0.5:9000":             "ws://10.0.0.5:9000/decode",
	}
	for in, want := range cases {
		got, err := buildDecodeURL(in)
		if err != nil || got != want {
			t.Fatalf("buildDecodeURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := buildDecodeURL("ftp://nope"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := buildDecodeURL(":// bad"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestResponseJSONShape(t *testing.T) {
	t.Parallel()

	var r decodeResponse
	if err := json.Unmarshal([]byte(`{"type":"result","seq":7,"found":true,"text":"x","format":"EAN_8"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Seq != 7 || !r.Found || r.Format != "EAN_8" {
		t.Fatalf("unexpected response: %+v", r)
	}
}
