package impact

import "strings"

// IsTestFile reports whether a path names a test by convention: the
// path contains test_, ends a file with _test.py, or passes through a
// tests/ or test/ directory.
func IsTestFile(path string) bool {
	return strings.Contains(path, "test_") ||
		strings.Contains(path, "_test.py") ||
		strings.Contains(path, "/tests/") ||
		strings.Contains(path, "/test/")
}

// CountTests returns how many of the given files classify as tests.
func CountTests(files []string) int {
	n := 0
	for _, f := range files {
		if IsTestFile(f) {
			n++
		}
	}
	return n
}
