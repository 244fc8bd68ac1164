package impact

import "testing"

func TestIsTestFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"tests/test_main.py", true},
		{"test_util.py", true},
		{"pkg/foo_test.py", true},
		{"src/tests/helper.py", true},
		{"src/test/helper.py", true},
		{"pkg/contest_data.py", true}, // substring semantics, matches test_
		{"pkg/models.py", false},
		{"attestation.py", false},
		{"tests/helper.py", false}, // no tests/ segment mid-path, no test_ prefix
		{"app/main.py", false},
	}

	for _, tt := range tests {
		if got := IsTestFile(tt.path); got != tt.want {
			t.Errorf("IsTestFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCountTests(t *testing.T) {
	files := []string{"a.py", "tests/test_a.py", "b_test.py", "lib/c.py"}
	if got := CountTests(files); got != 2 {
		t.Errorf("CountTests() = %d, want 2", got)
	}
}
