package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drone/drone-testng-notify/testng"
)

func TestRunWritesSummary(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		cases      int
		hasFeature bool
	}{
		{"DefaultDetail", []string{"../../testdata/testng-results.xml"}, 0, false},
		{"Cases", []string{"--detail", "cases", "../../testdata/testng-results.xml"}, 4, false},
		{"Full", []string{"--detail=full", "../../testdata/testng-results.xml"}, 4, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tc.args, &stdout, &stderr)
			require.Equal(t, 0, code, stderr.String())

			assert.Contains(t, stdout.String(), "\n  \"total\": 4,")

			var summary testng.Summary
			require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
			assert.Equal(t, 50.0, summary.PassRate)
			assert.Len(t, summary.TestCases, tc.cases)
			assert.Equal(t, tc.cases > 0, strings.Contains(stdout.String(), `"test_cases"`))
			if tc.cases > 0 {
				assert.Equal(t, tc.hasFeature, summary.TestCases[0].FeatureName != nil)
			}
		})
	}
}

func TestRunAllPassed(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"../../testdata/testng-results-all-passed.xml"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `"pass_rate": 100.0,`)
}

func TestRunParseFailureLogsOnce(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, run([]string{"../../testdata/invalid.xml"}, &stdout, &stderr))

	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	require.Len(t, lines, 1, stderr.String())
	assert.Contains(t, lines[0], "Error parsing XML")
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		stderr string
	}{
		{"MissingFile", []string{"../../testdata/does-not-exist.xml"}, "does-not-exist.xml"},
		{"MalformedXML", []string{"../../testdata/invalid.xml"}, "Error parsing XML"},
		{"NoArguments", nil, "Usage"},
		{"TooManyArguments", []string{"a.xml", "b.xml"}, "Usage"},
		{"InvalidDetail", []string{"--detail", "verbose", "../../testdata/testng-results.xml"}, "invalid detail"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tc.args, &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout.String())
			assert.Contains(t, stderr.String(), tc.stderr)
		})
	}
}
