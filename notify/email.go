package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	texttemplate "text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
	"github.com/wneessen/go-mail/smtp"

	"github.com/drone/drone-testng-notify/testng"
)

const (
	colorPassed = "#34A853"
	colorFailed = "#EA4335"
)

// Email is a rendered e-mail notification. Text, when set, is sent as the
// plain-text alternative to HTML.
type Email struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers a rendered Email.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

type banner struct {
	Message    string
	Background template.CSS
	Color      template.CSS
}

type emailData struct {
	Config      Config
	Summary     testng.Summary
	StatusColor template.CSS
	Banner      banner
}

// BuildEmail renders the subject and HTML body for a summary.
func BuildEmail(summary testng.Summary, cfg Config) (Email, error) {
	data := emailData{
		Config:  cfg,
		Summary: summary,
	}
	overall := "✅ PASSED"
	if summary.Failed == 0 {
		data.StatusColor = colorPassed
		data.Banner = banner{
			Message:    "🎉🎉 All test cases passed successfully 🎉🎉",
			Background: "#d4edda",
			Color:      "#155724",
		}
	} else {
		overall = "❌ FAILED"
		data.StatusColor = colorFailed
		data.Banner = banner{
			Message:    fmt.Sprintf("⚠️ %d test case(s) failed. Please review the detailed report.", summary.Failed),
			Background: "#f8d7da",
			Color:      "#721c24",
		}
	}

	var body, text bytes.Buffer
	if err := emailTemplate.Execute(&body, data); err != nil {
		return Email{}, errors.Wrap(err, "failed to render email body")
	}
	if err := textTemplate.Execute(&text, data); err != nil {
		return Email{}, errors.Wrap(err, "failed to render plain-text email body")
	}

	return Email{
		From:    cfg.EmailFrom,
		To:      cfg.EmailTo,
		Subject: fmt.Sprintf("Test Report: %s - %s", cfg.ProjectName, overall),
		HTML:    body.String(),
		Text:    text.String(),
	}, nil
}

// SMTPSender sends e-mail through an SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	UseTLS   bool
	Username string
	Password string
	Timeout  time.Duration
}

// NewSMTPSender returns an SMTPSender for the SMTP settings in cfg.
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		UseTLS:   cfg.SMTPUseTLS,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		Timeout:  30 * time.Second,
	}
}

// Send opens an SMTP session, upgrades it with STARTTLS when UseTLS is set,
// authenticates when both credentials are present and delivers the message.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	msg := mail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return &DeliveryError{Channel: "email", Kind: KindOther, Err: err}
	}
	if err := msg.To(email.To...); err != nil {
		return &DeliveryError{Channel: "email", Kind: KindOther, Err: err}
	}
	msg.Subject(email.Subject)
	if email.Text != "" {
		msg.SetBodyString(mail.TypeTextPlain, email.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	} else {
		msg.SetBodyString(mail.TypeTextHTML, email.HTML)
	}

	policy := mail.NoTLS
	if s.UseTLS {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithTimeout(s.Timeout),
		mail.WithTLSPolicy(policy),
	}
	switch {
	case s.Username == "" || s.Password == "":
		// AUTH only with both credentials.
	case s.UseTLS:
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password),
		)
	default:
		// go-mail's PLAIN refuses unencrypted sessions to anything but localhost.
		opts = append(opts, mail.WithSMTPAuthCustom(plainAuth{username: s.Username, password: s.Password}))
	}

	client, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return &DeliveryError{Channel: "email", Kind: KindOther, Err: err}
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return classifySMTPError(err, s.Timeout)
	}
	return nil
}

// plainAuth is AUTH PLAIN (RFC 4616) without the TLS requirement, for relays
// configured with smtp_use_tls false.
type plainAuth struct {
	username string
	password string
}

func (a plainAuth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.username + "\x00" + a.password), nil
}

func (a plainAuth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected server challenge")
	}
	return nil, nil
}

func classifySMTPError(err error, timeout time.Duration) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DeliveryError{Channel: "email", Kind: KindTimeout, Timeout: timeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &DeliveryError{Channel: "email", Kind: KindConnection, Err: err}
	}
	return &DeliveryError{Channel: "email", Kind: KindOther, Err: err}
}

var emailTemplate = template.Must(template.New("email").Parse(`
<html>
<body style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f5f5f5; margin: 0; padding: 20px;">
    <div style="max-width: 800px; margin: 0 auto; background-color: white; border-radius: 10px; box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1);">

        <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; border-radius: 10px 10px 0 0; text-align: center;">
            <h1 style="color: white; margin: 0; font-size: 24px; text-shadow: 2px 2px 4px rgba(0,0,0,0.2);">
                🔹🔹 Test Automation Execution Summary 🔹🔹
            </h1>
            <p style="color: #f0f0f0; margin: 10px 0 0 0; font-size: 16px;">
                📱 🔹🔹 {{.Config.ProjectName}} 🔹🔹 📱
            </p>
        </div>

        <div style="padding: 30px;">

            <div style="background: linear-gradient(135deg, #f093fb 0%, #f5576c 100%); padding: 15px; border-radius: 8px; margin-bottom: 25px; text-align: center;">
                <h2 style="color: white; margin: 0; font-size: 18px; text-shadow: 1px 1px 2px rgba(0,0,0,0.2);">
                    🚀 Build #{{.Config.BuildNumber}} - Test Execution 🚀
                </h2>
            </div>

            <h3 style="color: #1f2937; margin: 25px 0 15px 0; font-size: 18px; border-bottom: 3px solid #667eea; padding-bottom: 8px;">
                📌 Test Summary Metrics 📊
            </h3>
            <table style="width: 100%; border-collapse: collapse; margin-bottom: 30px; border: 2px solid #e5e7eb; border-radius: 8px; overflow: hidden;">
                <thead>
                    <tr style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);">
                        <th style="padding: 15px; text-align: left; color: white; font-size: 14px;">📌 Metric</th>
                        <th style="padding: 15px; text-align: center; color: white; font-size: 14px;">📊 Count</th>
                    </tr>
                </thead>
                <tbody>
                    <tr style="background-color: #f9fafb; border-bottom: 1px solid #e5e7eb;">
                        <td style="padding: 12px; font-weight: 500;">Total Tests</td>
                        <td style="padding: 12px; text-align: center; font-weight: bold; font-size: 16px;">{{.Summary.Total}}</td>
                    </tr>
                    <tr style="background-color: #d4f4dd; border-bottom: 1px solid #e5e7eb;">
                        <td style="padding: 12px; font-weight: 500;">✅ Passed</td>
                        <td style="padding: 12px; text-align: center; font-weight: bold; color: #059669; font-size: 16px;">{{.Summary.Passed}}</td>
                    </tr>
                    <tr style="background-color: #fee2e2; border-bottom: 1px solid #e5e7eb;">
                        <td style="padding: 12px; font-weight: 500;">❌ Failed</td>
                        <td style="padding: 12px; text-align: center; font-weight: bold; color: #dc2626; font-size: 16px;">{{.Summary.Failed}}</td>
                    </tr>
                    <tr style="background-color: #fef3c7;">
                        <td style="padding: 12px; font-weight: 500;">⚠️ Skipped</td>
                        <td style="padding: 12px; text-align: center; font-weight: bold; color: #f59e0b; font-size: 16px;">{{.Summary.Skipped}}</td>
                    </tr>
                </tbody>
            </table>

            <h3 style="color: #1f2937; margin: 35px 0 15px 0; font-size: 18px; border-bottom: 3px solid #667eea; padding-bottom: 8px;">
                📋 Detailed Test Case Report 📋
            </h3>
            <div style="max-height: 250px; overflow-y: auto; border: 2px solid #e5e7eb; border-radius: 8px; margin-bottom: 30px;">
                <table style="width: 100%; border-collapse: collapse;">
                    <thead style="position: sticky; top: 0; z-index: 10;">
                        <tr style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);">
                            <th style="padding: 15px; text-align: center; color: white; font-size: 13px; width: 60px;">🔢 S No.</th>
                            <th style="padding: 15px; text-align: left; color: white; font-size: 13px; width: 200px;">📝 Test Feature Name</th>
                            <th style="padding: 15px; text-align: left; color: white; font-size: 13px;">📄 Description</th>
                            <th style="padding: 15px; text-align: center; color: white; font-size: 13px; width: 120px;">📌 Status</th>
                        </tr>
                    </thead>
                    <tbody style="background-color: white;">
                        {{- range .Summary.TestCases}}
                        <tr style="border-bottom: 1px solid #e5e7eb;">
                            <td style="padding: 12px; text-align: center; font-weight: 500;">{{.SerialNo}}</td>
                            <td style="padding: 12px; font-weight: 500; color: #1f2937;">{{.Feature}}</td>
                            <td style="padding: 12px; color: #4b5563;">{{.Description}}</td>
                            <td style="padding: 12px; text-align: center; font-weight: 600;">{{.Status}}</td>
                        </tr>
                        {{- end}}
                    </tbody>
                </table>
            </div>

            <div style="background-color: {{.Banner.Background}}; border-left: 5px solid {{.StatusColor}}; padding: 20px; border-radius: 8px; margin: 30px 0; text-align: center;">
                <h3 style="color: {{.Banner.Color}}; margin: 0; font-size: 18px;">
                    {{.Banner.Message}}
                </h3>
            </div>

            <h3 style="color: #1f2937; margin: 30px 0 15px 0; font-size: 18px; border-bottom: 3px solid #667eea; padding-bottom: 8px;">
                🔗 Quick Access Links
            </h3>
            <div style="background-color: #f9fafb; padding: 20px; border-radius: 8px; border: 1px solid #e5e7eb;">
                <p style="margin: 10px 0;">
                    <strong style="color: #1f2937;">📊 Allure Report:</strong>
                    <a href="{{.Config.ReportURL}}" style="color: #667eea; text-decoration: none; font-weight: 500;">Click Here to View Report</a>
                </p>
                <p style="margin: 10px 0;">
                    <strong style="color: #1f2937;">🔧 Jenkins Build:</strong>
                    <a href="{{.Config.BuildURL}}" style="color: #667eea; text-decoration: none; font-weight: 500;">Click Here to View Build</a>
                </p>
                <p style="margin: 10px 0;">
                    <strong style="color: #1f2937;">📋 Automation Logs:</strong>
                    <a href="{{.Config.LogsURL}}" style="color: #667eea; text-decoration: none; font-weight: 500;">Click Here to View Logs</a>
                </p>
            </div>

            <div style="margin-top: 40px; padding-top: 20px; border-top: 2px solid #e5e7eb; text-align: center;">
                <p style="color: #6b7280; font-size: 13px; margin: 5px 0;">
                    📎 This is an automated report generated by the QA Automation Framework
                </p>
                <p style="color: #6b7280; font-size: 13px; margin: 5px 0;">
                    <strong>Regards,</strong><br>
                    QA Automation Team
                </p>
                <p style="color: #9ca3af; font-size: 11px; margin: 15px 0 0 0;">
                    Generated on: {{.Config.Timestamp}}
                </p>
            </div>

        </div>
    </div>
</body>
</html>
`))

var textTemplate = texttemplate.Must(texttemplate.New("text").Funcs(texttemplate.FuncMap{
	"rate": testng.FormatRate,
}).Parse(`Test Automation Execution Summary
{{.Config.ProjectName}} - Build #{{.Config.BuildNumber}}

Total Tests: {{.Summary.Total}}
Passed:      {{.Summary.Passed}}
Failed:      {{.Summary.Failed}}
Skipped:     {{.Summary.Skipped}}
Pass Rate:   {{rate .Summary.PassRate}}%
{{- if .Summary.TestCases}}

Detailed Test Case Report
{{- range .Summary.TestCases}}
{{.SerialNo}}. {{with .Feature}}[{{.}}] {{end}}{{.Description}} - {{.Status}}
{{- end}}
{{- end}}

{{.Banner.Message}}

Allure Report:   {{.Config.ReportURL}}
Jenkins Build:   {{.Config.BuildURL}}
Automation Logs: {{.Config.LogsURL}}

Generated on: {{.Config.Timestamp}}
`))
