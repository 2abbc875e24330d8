package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncSuccess("acc1")
	c.RecordSyncSuccess("acc1")
	c.RecordSyncFailure("acc1")
	c.RecordRetry("acc1")
	c.RecordAssignmentsUpserted(5)
	c.RecordNotificationSent("combined")
	c.RecordScrapeLatency(250 * time.Millisecond)

	if got := testutil.ToFloat64(c.syncSuccess.WithLabelValues("acc1")); got != 2 {
		t.Errorf("sync_success_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.syncFail.WithLabelValues("acc1")); got != 1 {
		t.Errorf("sync_fail_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.retries.WithLabelValues("acc1")); got != 1 {
		t.Errorf("retries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.assignmentsUpsert); got != 5 {
		t.Errorf("assignments_upserted_total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.notificationsSent.WithLabelValues("combined")); got != 1 {
		t.Errorf("notifications_sent_total = %v, want 1", got)
	}
}

func TestCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gatherに失敗: %v", err)
	}
	// ヒストグラムは観測前でも登録されている
	names := make(map[string]struct{}, len(families))
	for _, f := range families {
		names[f.GetName()] = struct{}{}
	}
	if _, ok := names["brightspace_agent_scrape_latency_seconds"]; !ok {
		t.Error("scrape_latency_secondsが登録されていない")
	}
}
