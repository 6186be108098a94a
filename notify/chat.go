package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/drone/drone-testng-notify/testng"
)

// DefaultChatTimeout bounds a single webhook request.
const DefaultChatTimeout = 10 * time.Second

// Tier is the overall status shown on the chat card.
type Tier struct {
	Text     string
	Emoji    string
	Color    string
	ImageURL string
}

var (
	TierPassed = Tier{
		Text:     "ALL TESTS PASSED",
		Emoji:    "🎉",
		Color:    colorPassed,
		ImageURL: "https://img.icons8.com/color/96/000000/ok--v1.png",
	}
	TierMostlyPassed = Tier{
		Text:     "MOSTLY PASSED",
		Emoji:    "⚠️",
		Color:    "#FBBC04",
		ImageURL: "https://img.icons8.com/color/96/000000/medium-risk.png",
	}
	TierFailed = Tier{
		Text:     "TESTS FAILED",
		Emoji:    "❌",
		Color:    colorFailed,
		ImageURL: "https://img.icons8.com/color/96/000000/high-risk.png",
	}
)

// ClassifyStatus picks the card tier from the failure count and pass rate.
func ClassifyStatus(failed int, passRate float64) Tier {
	switch {
	case failed == 0:
		return TierPassed
	case passRate >= 90:
		return TierMostlyPassed
	default:
		return TierFailed
	}
}

// Message is a Google Chat cardsV2 webhook payload.
type Message struct {
	CardsV2 []CardWithID `json:"cardsV2"`
}

// CardWithID pairs a card with the identifier Google Chat keys it by.
type CardWithID struct {
	CardID string `json:"cardId"`
	Card   Card   `json:"card"`
}

// Card is a header followed by sections of widgets.
type Card struct {
	Header   CardHeader `json:"header"`
	Sections []Section  `json:"sections"`
}

// CardHeader is the title row of a card.
type CardHeader struct {
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	ImageURL  string `json:"imageUrl"`
	ImageType string `json:"imageType"`
}

// Section groups widgets under an optional header.
type Section struct {
	Header      string   `json:"header"`
	Collapsible bool     `json:"collapsible"`
	Widgets     []Widget `json:"widgets"`
}

// Widget holds exactly one of its fields.
type Widget struct {
	DecoratedText *DecoratedText `json:"decoratedText,omitempty"`
	Divider       *struct{}      `json:"divider,omitempty"`
	ButtonList    *ButtonList    `json:"buttonList,omitempty"`
}

// DecoratedText is a labelled text widget with a leading icon.
type DecoratedText struct {
	TopLabel  string `json:"topLabel"`
	Text      string `json:"text"`
	StartIcon Icon   `json:"startIcon"`
}

// Icon references one of the built-in Google Chat icons.
type Icon struct {
	KnownIcon string `json:"knownIcon"`
}

// ButtonList is a row of buttons.
type ButtonList struct {
	Buttons []Button `json:"buttons"`
}

// Button opens a link when clicked.
type Button struct {
	Text    string  `json:"text"`
	OnClick OnClick `json:"onClick"`
}

// OnClick is the action a Button performs.
type OnClick struct {
	OpenLink OpenLink `json:"openLink"`
}

// OpenLink is the URL a button opens.
type OpenLink struct {
	URL string `json:"url"`
}

// BuildCard builds the chat card for a summary.
func BuildCard(summary testng.Summary, cfg Config) Message {
	tier := ClassifyStatus(summary.Failed, summary.PassRate)

	results := Section{
		Header: "📊 Test Results Summary",
		Widgets: []Widget{
			textWidget("Total Tests Executed", fmt.Sprintf("<b>%d</b>", summary.Total), "BOOKMARK"),
			textWidget("Passed", fmt.Sprintf("<font color='%s'><b>✅ %d</b></font>", colorPassed, summary.Passed), "STAR"),
			textWidget("Failed", fmt.Sprintf("<font color='%s'><b>❌ %d</b></font>", colorFailed, summary.Failed), "DESCRIPTION"),
			textWidget("Skipped", fmt.Sprintf("<font color='#FBBC04'><b>⏭️ %d</b></font>", summary.Skipped), "CLOCK"),
			{Divider: &struct{}{}},
			textWidget("Pass Rate", fmt.Sprintf("<font color='%s'><b>%s%%</b></font>", tier.Color, testng.FormatRate(summary.PassRate)), "MULTIPLE_PEOPLE"),
		},
	}

	actions := Section{
		Header: "🔗 Quick Actions",
		Widgets: []Widget{{
			ButtonList: &ButtonList{Buttons: []Button{
				linkButton("📊 View Report", cfg.ReportURL),
				linkButton("🔧 Jenkins Build", cfg.BuildURL),
				linkButton("📋 View Logs", cfg.LogsURL),
			}},
		}},
	}

	return Message{CardsV2: []CardWithID{{
		CardID: "test-report-card",
		Card: Card{
			Header: CardHeader{
				Title:     fmt.Sprintf("%s %s", tier.Emoji, cfg.ProjectName),
				Subtitle:  "Status: " + tier.Text,
				ImageURL:  tier.ImageURL,
				ImageType: "CIRCLE",
			},
			Sections: []Section{results, actions},
		},
	}}}
}

func textWidget(label, text, icon string) Widget {
	return Widget{DecoratedText: &DecoratedText{
		TopLabel:  label,
		Text:      text,
		StartIcon: Icon{KnownIcon: icon},
	}}
}

func linkButton(text, url string) Button {
	return Button{Text: text, OnClick: OnClick{OpenLink: OpenLink{URL: url}}}
}

// ChatSender delivers a chat card.
type ChatSender interface {
	Send(ctx context.Context, msg Message) error
}

// WebhookSender posts chat cards to a Google Chat incoming webhook.
type WebhookSender struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewWebhookSender returns a WebhookSender with the default timeout.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		URL:     url,
		Timeout: DefaultChatTimeout,
		Client:  &http.Client{Timeout: DefaultChatTimeout},
	}
}

// Send posts msg as JSON. Any failure is returned as a *DeliveryError.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return &DeliveryError{Channel: "google-chat", Kind: KindOther, Err: err}
	}

	logrus.Info("📤 Sending Google Chat notification to webhook...")
	logrus.Infof("   Webhook URL (first 50 chars): %s...", truncate(s.URL, 50))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Channel: "google-chat", Kind: KindOther, Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: s.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return s.classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return s.classify(err)
	}
	logrus.Infof("   Response Status Code: %d", resp.StatusCode)
	logrus.Infof("   Response Body: %s", truncate(string(body), 200))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{
			Channel:    "google-chat",
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return nil
}

func (s *WebhookSender) classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		return &DeliveryError{Channel: "google-chat", Kind: KindTimeout, Timeout: s.Timeout, Err: err}
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return &DeliveryError{Channel: "google-chat", Kind: KindConnection, Err: err}
	}
	return &DeliveryError{Channel: "google-chat", Kind: KindOther, Err: err}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
