package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordFrame("ok")
	RecordFrame("overflow")
	RecordEvent("biometric", true)
	RecordEvent("unknown", false)
	RecordTrust(1.58, 0.85, 1.172)
	RecordHTTPRequest("GET", "/status", 200, 12*time.Millisecond)
}
