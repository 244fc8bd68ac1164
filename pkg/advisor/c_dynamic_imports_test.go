package advisor_test

import (
	"testing"

	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/extract/pyimports"
)

func TestDynamicImportCheck_OrdersByFile(t *testing.T) {
	check := &advisor.DynamicImportCheck{MaxEvidence: 10}
	in := &advisor.Input{
		Dynamic: map[string][]pyimports.DynamicImport{
			"z/plugin.py": {{Call: "importlib.import_module", Line: 4}},
			"a/loader.py": {{Call: "__import__", Line: 9}, {Call: "__import__", Line: 30}},
		},
	}

	got := check.Evaluate(in)
	if got.Severity != advisor.SeverityLow {
		t.Errorf("expected LOW, got %s", got.Severity)
	}
	if len(got.Evidence) != 3 {
		t.Fatalf("expected 3 evidence items, got %d", len(got.Evidence))
	}
	if got.Evidence[0].File != "a/loader.py" || got.Evidence[0].Line != 9 {
		t.Errorf("expected a/loader.py:9 first, got %+v", got.Evidence[0])
	}
	if got.Evidence[2].File != "z/plugin.py" {
		t.Errorf("expected z/plugin.py last, got %+v", got.Evidence[2])
	}
}

func TestDynamicImportCheck_Empty(t *testing.T) {
	check := &advisor.DynamicImportCheck{MaxEvidence: 10}

	got := check.Evaluate(&advisor.Input{})
	if got.Severity != advisor.SeverityInfo {
		t.Errorf("expected INFO when nothing is dynamic, got %s", got.Severity)
	}
	if len(got.Evidence) != 0 {
		t.Errorf("expected no evidence, got %+v", got.Evidence)
	}
}
