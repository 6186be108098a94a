package testng

import (
	"encoding/xml"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrFileNotFound is returned when the results path (or pattern) matches nothing.
	ErrFileNotFound = errors.New("file not found")
	// ErrParse is returned when a results file cannot be read or decoded.
	ErrParse = errors.New("failed to parse TestNG XML")
)

// Detail selects how much per-test information ends up in a Summary.
type Detail string

const (
	// DetailSummary emits the counts and pass rate only.
	DetailSummary Detail = "summary"
	// DetailCases adds test_cases without feature names.
	DetailCases Detail = "cases"
	// DetailFull adds test_cases including feature names.
	DetailFull Detail = "full"
)

// ParseDetail converts a flag value into a Detail.
func ParseDetail(s string) (Detail, error) {
	switch d := Detail(strings.ToLower(strings.TrimSpace(s))); d {
	case DetailSummary, DetailCases, DetailFull:
		return d, nil
	case "":
		return DetailSummary, nil
	default:
		return "", errors.Errorf("invalid detail %q, expected summary, cases or full", s)
	}
}

// Options controls extraction.
type Options struct {
	Detail Detail
}

const (
	unknownName   = "Unknown"
	unknownStatus = "UNKNOWN"
)

var statusLabels = map[string]string{
	"PASS": "✅ Passed",
	"FAIL": "❌ Failed",
	"SKIP": "⚠️ Skipped",
}

// StatusLabel maps a raw TestNG status code to its display label.
func StatusLabel(raw string) string {
	if label, ok := statusLabels[raw]; ok {
		return label
	}
	return "❓ Unknown"
}

// FeatureName turns a (possibly fully qualified) class name into a readable
// feature name, e.g. com.acme.LoginApiTest -> "Login Api".
func FeatureName(className string) string {
	simple := className[strings.LastIndex(className, ".")+1:]
	simple = strings.TrimSuffix(simple, "Test")

	var b strings.Builder
	for _, r := range simple {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// PassRate returns passed/total as a percentage rounded to two decimals.
func PassRate(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*100*100) / 100
}

// Extract parses every TestNG report matching pattern and aggregates them into a Summary.
// A plain path is the common case; glob patterns allow merging several reports.
func Extract(pattern string, opts Options) (Summary, error) {
	files, err := locateFiles(pattern)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, file := range files {
		report, err := processFile(file)
		if err != nil {
			return Summary{}, err
		}
		summary.Total += report.Total
		summary.Passed += report.Passed
		summary.Failed += report.Failed
		summary.Skipped += report.Skipped

		switch opts.Detail {
		case DetailCases:
			summary.TestCases = collectTestCases(summary.TestCases, report, false)
		case DetailFull:
			summary.TestCases = collectTestCases(summary.TestCases, report, true)
		}
	}
	summary.PassRate = PassRate(summary.Passed, summary.Total)

	logrus.Debugf("Total: %d | Passed: %d | Failed: %d | Skipped: %d | Pass rate: %.2f%%",
		summary.Total, summary.Passed, summary.Failed, summary.Skipped, summary.PassRate)
	return summary, nil
}

// locateFiles resolves a literal path or a glob pattern into report files.
func locateFiles(pattern string) ([]string, error) {
	if !hasMeta(pattern) {
		if _, err := os.Stat(pattern); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrapf(ErrFileNotFound, "%s", pattern)
			}
			return nil, errors.Wrapf(ErrParse, "%s: %v", pattern, err)
		}
		return []string{pattern}, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		logrus.WithError(err).WithField("Pattern", pattern).Error("Error occurred while searching for files")
		return nil, errors.Wrapf(ErrFileNotFound, "invalid pattern %s: %v", pattern, err)
	}
	if len(matches) == 0 {
		return nil, errors.Wrapf(ErrFileNotFound, "no files matching %s", pattern)
	}
	return matches, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

// processFile reads and decodes one TestNG XML report.
func processFile(filename string) (TestNGReport, error) {
	logrus.Debugf("Processing file: %s", filename)

	data, err := os.ReadFile(filename)
	if err != nil {
		return TestNGReport{}, errors.Wrapf(ErrParse, "failed to read %s: %v", filename, err)
	}

	var report TestNGReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return TestNGReport{}, errors.Wrapf(ErrParse, "%s: %v", filename, err)
	}

	logReportDetails(report)
	return report, nil
}

// collectTestCases appends one TestCase per non-configuration test method,
// continuing the serial numbering of cases.
func collectTestCases(cases []TestCase, report TestNGReport, withFeature bool) []TestCase {
	if cases == nil {
		cases = []TestCase{}
	}
	for _, suite := range report.Suites {
		for _, test := range suite.Tests {
			for _, class := range test.Classes {
				className := class.Name
				if className == "" {
					className = unknownName
				}
				for _, method := range class.Methods {
					if method.IsConfig == "true" {
						continue
					}
					cases = append(cases, newTestCase(len(cases)+1, className, method, withFeature))
				}
			}
		}
	}
	return cases
}

func newTestCase(serial int, className string, method TestMethod, withFeature bool) TestCase {
	name := method.Name
	if name == "" {
		name = unknownName
	}
	status := method.Status
	if status == "" {
		status = unknownStatus
	}
	description := method.Description
	if description == "" {
		description = "Test case: " + name
	}

	tc := TestCase{
		SerialNo:    serial,
		Name:        name,
		Description: description,
		Status:      StatusLabel(status),
		RawStatus:   status,
	}
	if withFeature {
		feature := FeatureName(className)
		tc.FeatureName = &feature
	}
	return tc
}

// logReportDetails logs per-suite counts, groups and failures at debug level.
func logReportDetails(report TestNGReport) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	for _, suite := range report.Suites {
		tests, failures, skipped := 0, 0, 0
		for _, test := range suite.Tests {
			for _, class := range test.Classes {
				for _, method := range class.Methods {
					if method.IsConfig == "true" {
						continue
					}
					tests++
					switch method.Status {
					case "FAIL":
						failures++
					case "SKIP":
						skipped++
					}
				}
			}
		}

		logrus.Debugf("===============================================")
		logrus.Debugf("Suite: %s | Tests: %d | Failures: %d | Skips: %d | Duration: %s ms",
			suite.Name, tests, failures, skipped, suite.Duration)
		for _, group := range suite.Groups {
			logrus.Debugf("- Group: %s", group.Name)
			for _, method := range group.Methods {
				logrus.Debugf("  - Method: %s | Class: %s | Signature: %s", method.Name, method.ClassName, method.Signature)
			}
		}
		for _, test := range suite.Tests {
			for _, class := range test.Classes {
				for _, method := range class.Methods {
					if method.Status == "FAIL" && method.Exception != "" {
						logrus.WithField("Test", method.Name).Debugf("Exception: %s", strings.TrimSpace(method.Exception))
					}
				}
			}
		}
	}
}
