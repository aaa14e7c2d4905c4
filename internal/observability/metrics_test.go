package observability

import (
	"testing"
	"time"

	"github.com/danmuck/spilink/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("gateway-a", "GET", "/streams", 200, 12*time.Millisecond)
	RecordPacket("valid")
	before := testutil.ToFloat64(linkRequests.WithLabelValues("get_size", "ok"))
	RecordLinkRequest("get_size", "ok", 0, time.Millisecond)
	RecordLinkRequest("req_data", "ok", 1000, 3*time.Millisecond)

	if got := testutil.ToFloat64(linkRequests.WithLabelValues("get_size", "ok")); got != before+1 {
		t.Fatalf("expected get_size counter to advance by 1, got %v -> %v", before, got)
	}
	if got := testutil.ToFloat64(linkBytes.WithLabelValues("req_data")); got < 1000 {
		t.Fatalf("expected at least 1000 bytes recorded, got %v", got)
	}
}
