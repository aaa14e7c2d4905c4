package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/spilink/internal/auth"
	"github.com/danmuck/spilink/internal/link"
	"github.com/danmuck/spilink/internal/peer"
	"github.com/danmuck/spilink/internal/protocol/datatype"
	"github.com/danmuck/spilink/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func newTestGateway(t *testing.T, opts peer.Options) (*Gateway, *peer.Device) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dev := peer.NewDevice(opts)
	for _, name := range []string{"color", "sysinfo"} {
		if err := dev.AddStream(name); err != nil {
			t.Fatalf("add stream: %v", err)
		}
	}
	cfg := link.DefaultConfig()
	cfg.IdleBackoff = link.BackoffConfig{}
	cfg.MaxMessageSize = 1 << 16
	return New("gateway-test", ":0", link.New(dev, cfg), nil, nil), dev
}

func do(t *testing.T, g *Gateway, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	g.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v body=%s", err, rr.Body.String())
	}
	return body
}

func frame(n int, seq int64) *datatype.ImgFrame {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return &datatype.ImgFrame{Data: data, Fb: datatype.FrameSpecs{Width: uint32(n), Height: 1}, SequenceNum: seq}
}

func TestHealthAndStreams(t *testing.T) {
	testlog.Start(t)
	g, _ := newTestGateway(t, peer.Options{})

	if rr := do(t, g, http.MethodGet, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	rr := do(t, g, http.MethodGet, "/streams")
	if rr.Code != http.StatusOK {
		t.Fatalf("streams: %d body=%s", rr.Code, rr.Body.String())
	}
	if got := fmt.Sprint(decode(t, rr)["streams"]); got != "[color sysinfo]" {
		t.Fatalf("unexpected streams %s", got)
	}
	if rr := do(t, g, http.MethodGet, "/metrics"); rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
}

func TestDataRoutes(t *testing.T) {
	testlog.Start(t)
	g, dev := newTestGateway(t, peer.Options{ChunkSize: 40, IdlePackets: 1})
	f := frame(500, 9)
	if err := dev.Push("color", f); err != nil {
		t.Fatalf("push: %v", err)
	}

	rr := do(t, g, http.MethodGet, "/streams/color/size")
	if rr.Code != http.StatusOK || decode(t, rr)["size"] != float64(500) {
		t.Fatalf("size: %d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, g, http.MethodGet, "/streams/color/data")
	if rr.Code != http.StatusOK || !bytes.Equal(rr.Body.Bytes(), f.Data) {
		t.Fatalf("data: %d len=%d", rr.Code, rr.Body.Len())
	}
	rr = do(t, g, http.MethodGet, "/streams/color/data?offset=100&size=50")
	if rr.Code != http.StatusOK || !bytes.Equal(rr.Body.Bytes(), f.Data[100:150]) {
		t.Fatalf("partial data: %d len=%d", rr.Code, rr.Body.Len())
	}
	rr = do(t, g, http.MethodGet, "/streams/color/chunks")
	if rr.Code != http.StatusOK || !bytes.Equal(rr.Body.Bytes(), f.Data) {
		t.Fatalf("chunks: %d len=%d", rr.Code, rr.Body.Len())
	}
	if rr := do(t, g, http.MethodGet, "/streams/color/data?offset=x&size=1"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad offset, got %d", rr.Code)
	}
	if rr := do(t, g, http.MethodGet, "/streams/color/size?kind=bogus"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad kind, got %d", rr.Code)
	}
}

func TestMetadataAndMessageRoutes(t *testing.T) {
	testlog.Start(t)
	g, dev := newTestGateway(t, peer.Options{})
	if err := dev.Push("color", frame(64, 77)); err != nil {
		t.Fatalf("push: %v", err)
	}

	rr := do(t, g, http.MethodGet, "/streams/color/metadata")
	if rr.Code != http.StatusOK {
		t.Fatalf("metadata: %d body=%s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["type"] != "ImgFrame" {
		t.Fatalf("unexpected type %v", body["type"])
	}
	obj, ok := body["object"].(map[string]any)
	if !ok || obj["sequence_num"] != float64(77) {
		t.Fatalf("unexpected metadata object %#v", body["object"])
	}

	rr = do(t, g, http.MethodGet, "/streams/color/message")
	if rr.Code != http.StatusOK {
		t.Fatalf("message: %d body=%s", rr.Code, rr.Body.String())
	}
	body = decode(t, rr)
	if body["size"] != float64(64) || body["type"] != "ImgFrame" {
		t.Fatalf("unexpected message %#v", body)
	}
}

func TestPopRoutesAndErrors(t *testing.T) {
	testlog.Start(t)
	g, dev := newTestGateway(t, peer.Options{})
	if err := dev.Push("color", frame(8, 1)); err != nil {
		t.Fatalf("push: %v", err)
	}

	if rr := do(t, g, http.MethodPost, "/streams/color/pop"); rr.Code != http.StatusOK {
		t.Fatalf("pop: %d body=%s", rr.Code, rr.Body.String())
	}
	rr := do(t, g, http.MethodPost, "/streams/color/pop")
	if rr.Code != http.StatusConflict || decode(t, rr)["outcome"] != "rejected" {
		t.Fatalf("expected 409 rejected, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, g, http.MethodGet, "/streams/color/data"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty stream, got %d", rr.Code)
	}
	if rr := do(t, g, http.MethodPost, "/pop"); rr.Code != http.StatusOK {
		t.Fatalf("pop all: %d", rr.Code)
	}
}

func TestPopRequiresToken(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	dev := peer.NewDevice(peer.Options{})
	if err := dev.AddStream("color"); err != nil {
		t.Fatalf("add stream: %v", err)
	}
	if err := dev.Push("color", frame(8, 1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	g := New("gateway-test", ":0", link.New(dev, link.Config{}), nil, auth.StaticToken{Token: "s3cret"})

	if rr := do(t, g, http.MethodPost, "/streams/color/pop"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if dev.Pending("color") != 1 {
		t.Fatalf("unauthorized pop must not reach the device")
	}
	req := httptest.NewRequest(http.MethodPost, "/streams/color/pop", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	g.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || dev.Pending("color") != 0 {
		t.Fatalf("authorized pop: %d pending=%d", rr.Code, dev.Pending("color"))
	}
	if rr := do(t, g, http.MethodGet, "/streams"); rr.Code != http.StatusOK {
		t.Fatalf("reads stay open, got %d", rr.Code)
	}
}

func TestAllocationLimitMapsTo413(t *testing.T) {
	testlog.Start(t)
	g, dev := newTestGateway(t, peer.Options{})
	if err := dev.Push("color", frame(1<<16+1, 1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if rr := do(t, g, http.MethodGet, "/streams/color/data"); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err  error
		want int
	}{
		{&link.RequestError{Err: fmt.Errorf("%w: x", link.ErrUsage)}, http.StatusBadRequest},
		{fmt.Errorf("%w: %w", link.ErrTransport, link.ErrNoData), http.StatusNotFound},
		{link.ErrRejected, http.StatusConflict},
		{link.ErrFraming, http.StatusBadGateway},
		{errors.New("other"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d want %d", tc.err, got, tc.want)
		}
	}
}
