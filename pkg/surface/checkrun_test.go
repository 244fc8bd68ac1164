package surface_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/runner"
	"github.com/testscope/testscope/pkg/surface"
)

func TestCheckRunRenderer_SelectionOnly(t *testing.T) {
	r := &surface.CheckRunRenderer{}
	data := r.BuildCheckRunData(sampleReport())

	if data.Title != "Testscope: 2 of 10 test(s) selected" {
		t.Errorf("unexpected title: %q", data.Title)
	}
	if data.Conclusion != "success" {
		t.Errorf("expected success for a MEDIUM report, got %s", data.Conclusion)
	}
	if !strings.Contains(data.Summary, "| Affected Tests | 2 |") {
		t.Error("expected run stats table in summary")
	}
	if !strings.Contains(data.Summary, "### Findings") {
		t.Error("expected findings section in summary")
	}
	if !strings.Contains(data.Summary, "`tests/test_api.py`") {
		t.Error("expected affected tests listed in summary")
	}
	if strings.Contains(data.Summary, "All scanned files parsed cleanly") {
		t.Error("INFO findings should not appear in the summary")
	}
}

func TestCheckRunRenderer_HighSeverityIsNeutral(t *testing.T) {
	report := sampleReport()
	report.Review.Severity = advisor.SeverityHigh

	r := &surface.CheckRunRenderer{}
	data := r.BuildCheckRunData(report)

	if data.Conclusion != "neutral" {
		t.Errorf("expected neutral for HIGH findings without a run, got %s", data.Conclusion)
	}
}

func TestCheckRunRenderer_OutcomeDrivesConclusion(t *testing.T) {
	tests := []struct {
		status runner.Status
		want   string
	}{
		{runner.StatusPassed, "success"},
		{runner.StatusFailed, "failure"},
		{runner.StatusTimeout, "failure"},
		{runner.StatusError, "failure"},
	}
	r := &surface.CheckRunRenderer{}
	for _, tt := range tests {
		report := sampleReport()
		report.Outcome = &runner.Outcome{Status: tt.status, Command: "pytest"}

		data := r.BuildCheckRunData(report)
		if data.Conclusion != tt.want {
			t.Errorf("status %s: expected %s, got %s", tt.status, tt.want, data.Conclusion)
		}
		if !strings.Contains(data.Summary, "### Result") {
			t.Errorf("status %s: expected a result section", tt.status)
		}
	}
}

func TestJSONRenderer_RoundTrip(t *testing.T) {
	r := &surface.JSONRenderer{}
	var buf bytes.Buffer

	if err := r.Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	var decoded surface.RunReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Selection.AffectedTests) != 2 {
		t.Errorf("expected 2 affected tests after round trip, got %d", len(decoded.Selection.AffectedTests))
	}
	if decoded.Review == nil || decoded.Review.Severity != advisor.SeverityMedium {
		t.Error("expected the review to survive the round trip")
	}
}
