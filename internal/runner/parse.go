package runner

import (
	"strings"

	"github.com/tidemark-data/tidemark/internal/lineage"
)

// ParseToolTests extracts test results from the transformation tool's output
// tail. The tool prints one status line per test in the form
//
//	... PASS <test_name> ...
//	... FAIL <n> <test_name> ...
//	... ERROR <test_name> ...
//
// Lines without a recognized status token are ignored. FAIL and ERROR lines
// keep the remainder of the line as failure detail.
func ParseToolTests(lines []string) []lineage.TestResult {
	var results []lineage.TestResult

	for _, line := range lines {
		fields := strings.Fields(line)
		for i, f := range fields {
			switch f {
			case "PASS":
				if name := testName(fields[i+1:]); name != "" {
					results = append(results, lineage.TestResult{Name: name, Success: true})
				}
			case "FAIL", "ERROR":
				if name := testName(fields[i+1:]); name != "" {
					results = append(results, lineage.TestResult{
						Name:          name,
						Success:       false,
						FailureDetail: strings.TrimSpace(line),
					})
				}
			default:
				continue
			}
			break
		}
	}

	return results
}

// testName picks the test identifier following a status token, skipping the
// failing-row count FAIL lines carry.
func testName(fields []string) string {
	for _, f := range fields {
		if isDigits(f) {
			continue
		}
		return strings.TrimRight(f, ".")
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
