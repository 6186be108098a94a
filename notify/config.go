package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

const notAvailable = "N/A"

// Config is the validated notification configuration. It is built once per
// run by LoadConfig and passed around by value.
type Config struct {
	ProjectName string
	BuildNumber string
	ReportURL   string
	BuildURL    string
	LogsURL     string
	Timestamp   string

	EnableEmail  bool
	EmailFrom    string
	EmailTo      []string
	SMTPHost     string
	SMTPPort     int
	SMTPUseTLS   bool
	SMTPUsername string
	SMTPPassword string

	EnableGoogleChat  bool
	GoogleChatWebhook string
}

// Overrides holds settings injected through the environment, typically CI secrets.
// Non-empty values replace the ones read from the configuration file.
type Overrides struct {
	SMTPUsername      string `envconfig:"PLUGIN_SMTP_USERNAME"`
	SMTPPassword      string `envconfig:"PLUGIN_SMTP_PASSWORD"`
	GoogleChatWebhook string `envconfig:"PLUGIN_GOOGLE_CHAT_WEBHOOK"`
}

// LoadOverrides reads Overrides from the environment.
func LoadOverrides() (Overrides, error) {
	var ov Overrides
	if err := envconfig.Process("", &ov); err != nil {
		return Overrides{}, errors.Wrap(err, "failed to read environment overrides")
	}
	return ov, nil
}

// fileConfig mirrors the on-disk schema. SMTPUseTLS is a pointer so that an
// absent key keeps the default of true.
type fileConfig struct {
	ProjectName       string   `json:"project_name" yaml:"project_name"`
	BuildNumber       any      `json:"build_number" yaml:"build_number"`
	ReportURL         string   `json:"report_url" yaml:"report_url"`
	BuildURL          string   `json:"build_url" yaml:"build_url"`
	LogsURL           string   `json:"logs_url" yaml:"logs_url"`
	Timestamp         string   `json:"timestamp" yaml:"timestamp"`
	EnableEmail       bool     `json:"enable_email" yaml:"enable_email"`
	EmailFrom         string   `json:"email_from" yaml:"email_from"`
	EmailTo           []string `json:"email_to" yaml:"email_to"`
	SMTPHost          string   `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort          int      `json:"smtp_port" yaml:"smtp_port"`
	SMTPUseTLS        *bool    `json:"smtp_use_tls" yaml:"smtp_use_tls"`
	SMTPUsername      string   `json:"smtp_username" yaml:"smtp_username"`
	SMTPPassword      string   `json:"smtp_password" yaml:"smtp_password"`
	EnableGoogleChat  bool     `json:"enable_google_chat" yaml:"enable_google_chat"`
	GoogleChatWebhook string   `json:"google_chat_webhook" yaml:"google_chat_webhook"`
}

var (
	commonKeys = []string{"project_name", "report_url", "build_url", "logs_url"}
	emailKeys  = []string{"email_from", "email_to", "smtp_host", "smtp_port"}
	chatKeys   = []string{"google_chat_webhook"}
)

// LoadConfig reads a JSON (or, by extension, YAML) notification configuration,
// applies the environment overrides and validates the result.
func LoadConfig(path string, ov Overrides) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(ErrLoad, "config %s: %v", path, err)
	}

	var (
		raw    fileConfig
		hasKey func(string) bool
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var keys map[string]any
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return Config{}, errors.Wrapf(ErrLoad, "config %s: malformed YAML: %v", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, errors.Wrapf(ErrLoad, "config %s: %v", path, err)
		}
		hasKey = func(key string) bool {
			_, ok := keys[key]
			return ok
		}
	default:
		if !gjson.ValidBytes(data) {
			return Config{}, errors.Wrapf(ErrLoad, "config %s: malformed JSON", path)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return Config{}, errors.Wrapf(ErrLoad, "config %s: %v", path, err)
		}
		hasKey = func(key string) bool {
			return gjson.GetBytes(data, key).Exists()
		}
	}

	if ov.GoogleChatWebhook != "" {
		raw.GoogleChatWebhook = ov.GoogleChatWebhook
		inner := hasKey
		hasKey = func(key string) bool {
			return key == "google_chat_webhook" || inner(key)
		}
	}
	if ov.SMTPUsername != "" {
		raw.SMTPUsername = ov.SMTPUsername
	}
	if ov.SMTPPassword != "" {
		raw.SMTPPassword = ov.SMTPPassword
	}

	required := append([]string{}, commonKeys...)
	if raw.EnableEmail {
		required = append(required, emailKeys...)
	}
	if raw.EnableGoogleChat {
		required = append(required, chatKeys...)
	}
	var missing []string
	for _, key := range required {
		if !hasKey(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, errors.Wrapf(ErrLoad, "config %s: missing required key(s): %s", path, strings.Join(missing, ", "))
	}

	cfg := raw.toConfig()
	if err := cfg.validate(); err != nil {
		return Config{}, errors.Wrapf(ErrLoad, "config %s: %v", path, err)
	}
	return cfg, nil
}

func (raw fileConfig) toConfig() Config {
	cfg := Config{
		ProjectName:       raw.ProjectName,
		BuildNumber:       notAvailable,
		ReportURL:         raw.ReportURL,
		BuildURL:          raw.BuildURL,
		LogsURL:           raw.LogsURL,
		Timestamp:         raw.Timestamp,
		EnableEmail:       raw.EnableEmail,
		EmailFrom:         raw.EmailFrom,
		EmailTo:           append([]string(nil), raw.EmailTo...),
		SMTPHost:          raw.SMTPHost,
		SMTPPort:          raw.SMTPPort,
		SMTPUseTLS:        true,
		SMTPUsername:      raw.SMTPUsername,
		SMTPPassword:      raw.SMTPPassword,
		EnableGoogleChat:  raw.EnableGoogleChat,
		GoogleChatWebhook: raw.GoogleChatWebhook,
	}
	if raw.BuildNumber != nil {
		cfg.BuildNumber = formatBuildNumber(raw.BuildNumber)
	}
	if cfg.Timestamp == "" {
		cfg.Timestamp = notAvailable
	}
	if raw.SMTPUseTLS != nil {
		cfg.SMTPUseTLS = *raw.SMTPUseTLS
	}
	return cfg
}

// formatBuildNumber renders build numbers given either as strings or numbers.
func formatBuildNumber(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	default:
		return fmt.Sprint(n)
	}
}

func (c Config) validate() error {
	if c.EnableEmail {
		if len(c.EmailTo) == 0 {
			return errors.New("email_to must list at least one recipient")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return errors.Errorf("smtp_port %d is out of range", c.SMTPPort)
		}
	}
	return nil
}
