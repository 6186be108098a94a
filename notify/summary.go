package notify

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/drone/drone-testng-notify/testng"
)

var summaryKeys = []string{"total", "passed", "failed", "skipped", "pass_rate"}

// LoadSummary reads a summary document written by extract-summary. test_cases
// is optional; the count keys and pass_rate are required.
func LoadSummary(path string) (testng.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testng.Summary{}, errors.Wrapf(ErrLoad, "summary %s: %v", path, err)
	}
	if !gjson.ValidBytes(data) {
		return testng.Summary{}, errors.Wrapf(ErrLoad, "summary %s: malformed JSON", path)
	}

	var missing []string
	for _, key := range summaryKeys {
		if !gjson.GetBytes(data, key).Exists() {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return testng.Summary{}, errors.Wrapf(ErrLoad, "summary %s: missing required key(s): %s", path, strings.Join(missing, ", "))
	}

	var summary testng.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return testng.Summary{}, errors.Wrapf(ErrLoad, "summary %s: %v", path, err)
	}
	return summary, nil
}
