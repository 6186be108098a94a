package testng

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strconv"
	"strings"
)

// TestNGReport represents the structure of a TestNG XML report.
type TestNGReport struct {
	XMLName xml.Name `xml:"testng-results"`
	Total   int      `xml:"total,attr"`
	Passed  int      `xml:"passed,attr"`
	Failed  int      `xml:"failed,attr"`
	Skipped int      `xml:"skipped,attr"`
	Suites  []Suite  `xml:"suite"`
}

// Suite represents a TestNG suite.
type Suite struct {
	Name     string  `xml:"name,attr"`
	Duration string  `xml:"duration-ms,attr"`
	Groups   []Group `xml:"groups>group"`
	Tests    []Test  `xml:"test"`
}

// Group represents a TestNG group.
type Group struct {
	Name    string   `xml:"name,attr"`
	Methods []Method `xml:"method"`
}

// Method represents a method belonging to a group.
type Method struct {
	Name      string `xml:"name,attr"`
	Signature string `xml:"signature,attr"`
	ClassName string `xml:"class,attr"`
}

// Test represents a <test> block inside a suite.
type Test struct {
	Name    string  `xml:"name,attr"`
	Classes []Class `xml:"class"`
}

// Class represents a TestNG class.
type Class struct {
	Name    string       `xml:"name,attr"`
	Methods []TestMethod `xml:"test-method"`
}

// TestMethod represents a TestNG test or configuration method.
type TestMethod struct {
	Name        string `xml:"name,attr"`
	Status      string `xml:"status,attr"`
	DurationMS  string `xml:"duration-ms,attr"`
	IsConfig    string `xml:"is-config,attr"`
	Description string `xml:"description,attr"`
	Exception   string `xml:"exception>short-stacktrace"`
}

// Summary is the JSON document produced by the extractor and consumed by the notifier.
//
// A nil TestCases leaves the test_cases key out of the JSON document; a
// non-nil one (even empty) writes it.
type Summary struct {
	Total     int        `json:"total"`
	Passed    int        `json:"passed"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	PassRate  float64    `json:"pass_rate"`
	TestCases []TestCase `json:"test_cases"`
}

// TestCase is a single non-configuration test method. FeatureName is nil
// when the report was extracted without feature names, and the key is then
// left out of the JSON document.
type TestCase struct {
	SerialNo    int     `json:"serial_no"`
	Name        string  `json:"name"`
	FeatureName *string `json:"feature_name,omitempty"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	RawStatus   string  `json:"raw_status"`
}

// Feature returns the feature name, or "" when none was extracted.
func (tc TestCase) Feature() string {
	if tc.FeatureName == nil {
		return ""
	}
	return *tc.FeatureName
}

type summaryCounts struct {
	Total    int  `json:"total"`
	Passed   int  `json:"passed"`
	Failed   int  `json:"failed"`
	Skipped  int  `json:"skipped"`
	PassRate rate `json:"pass_rate"`
}

type summaryWithCases struct {
	summaryCounts
	TestCases []TestCase `json:"test_cases"`
}

// MarshalJSON writes the counts, plus test_cases when they were collected.
func (s Summary) MarshalJSON() ([]byte, error) {
	counts := summaryCounts{
		Total:    s.Total,
		Passed:   s.Passed,
		Failed:   s.Failed,
		Skipped:  s.Skipped,
		PassRate: rate(s.PassRate),
	}
	if s.TestCases == nil {
		return marshalUnescaped(counts)
	}
	return marshalUnescaped(summaryWithCases{summaryCounts: counts, TestCases: s.TestCases})
}

// marshalUnescaped keeps <, > and & in descriptions as-is.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// rate is a percentage that always carries a decimal point in JSON (100.0, 85.71).
type rate float64

func (r rate) MarshalJSON() ([]byte, error) {
	return []byte(FormatRate(float64(r))), nil
}

// FormatRate prints whole percentages with one decimal (100.0) and others as-is (85.71).
func FormatRate(r float64) string {
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
