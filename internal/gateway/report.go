package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Report is the analysis document returned by the service. Apart from the
// shape checks in ParseReport it is passed through untouched.
type Report map[string]any

var (
	scoreFields = []string{"overall_score", "match_score", "ats_score", "score"}
	listFields  = []string{"strengths", "weaknesses", "improvement_plan", "recommendations"}
)

// ParseReport decodes body and checks it has the shape of a report.
func ParseReport(body []byte) (Report, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, invalidReport("expected a JSON object")
	}
	var report Report
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, invalidReport("malformed JSON")
	}
	if len(report) == 0 {
		return nil, invalidReport("empty object")
	}

	var problems []string
	for _, field := range scoreFields {
		v, ok := report[field]
		if !ok || v == nil {
			continue
		}
		n, isNum := v.(float64)
		if !isNum || math.IsNaN(n) || n < 0 || n > 100 {
			problems = append(problems, field+" must be a number between 0 and 100")
		}
	}
	for _, field := range listFields {
		v, ok := report[field]
		if !ok || v == nil {
			continue
		}
		if _, isList := v.([]any); !isList {
			problems = append(problems, field+" must be a list")
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, invalidReport(strings.Join(problems, "; "))
	}
	return report, nil
}

// OverallScore returns the first score field present, if any.
func (r Report) OverallScore() (float64, bool) {
	for _, field := range scoreFields {
		if n, ok := r[field].(float64); ok {
			return n, true
		}
	}
	return 0, false
}

func invalidReport(reason string) error {
	return &ExternalServiceError{
		Message: fmt.Sprintf("invalid report from analysis service: %s", reason),
	}
}
