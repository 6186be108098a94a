package notify

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/drone/drone-testng-notify/testng"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name     string
		failed   int
		passRate float64
		expected string
	}{
		{"NoFailures", 0, 100, "ALL TESTS PASSED"},
		{"NoFailuresZeroRate", 0, 0, "ALL TESTS PASSED"},
		{"MostlyPassedAtBoundary", 1, 90, "MOSTLY PASSED"},
		{"MostlyPassed", 2, 95.5, "MOSTLY PASSED"},
		{"JustBelowBoundary", 1, 89.99, "TESTS FAILED"},
		{"Failed", 5, 50, "TESTS FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStatus(tc.failed, tc.passRate); got.Text != tc.expected {
				t.Errorf("ClassifyStatus(%d, %v) = %q, want %q", tc.failed, tc.passRate, got.Text, tc.expected)
			}
		})
	}
}

func TestBuildCard(t *testing.T) {
	cfg := expectedFullConfig()
	msg := BuildCard(testng.Summary{Total: 20, Passed: 18, Failed: 1, Skipped: 1, PassRate: 90}, cfg)

	if len(msg.CardsV2) != 1 {
		t.Fatalf("expected one card, got %d", len(msg.CardsV2))
	}
	card := msg.CardsV2[0]
	if card.CardID != "test-report-card" {
		t.Errorf("CardID = %q", card.CardID)
	}

	expectedHeader := CardHeader{
		Title:     "⚠️ Buyer App API",
		Subtitle:  "Status: MOSTLY PASSED",
		ImageURL:  "https://img.icons8.com/color/96/000000/medium-risk.png",
		ImageType: "CIRCLE",
	}
	if diff := cmp.Diff(expectedHeader, card.Card.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	if len(card.Card.Sections) != 2 {
		t.Fatalf("expected two sections, got %d", len(card.Card.Sections))
	}
	var texts []string
	for _, w := range card.Card.Sections[0].Widgets {
		if w.DecoratedText != nil {
			texts = append(texts, w.DecoratedText.Text)
		}
	}
	expectedTexts := []string{
		"<b>20</b>",
		"<font color='#34A853'><b>✅ 18</b></font>",
		"<font color='#EA4335'><b>❌ 1</b></font>",
		"<font color='#FBBC04'><b>⏭️ 1</b></font>",
		"<font color='#FBBC04'><b>90.0%</b></font>",
	}
	if diff := cmp.Diff(expectedTexts, texts); diff != "" {
		t.Errorf("result widgets mismatch (-want +got):\n%s", diff)
	}

	buttons := card.Card.Sections[1].Widgets[0].ButtonList.Buttons
	var urls []string
	for _, b := range buttons {
		urls = append(urls, b.OnClick.OpenLink.URL)
	}
	if diff := cmp.Diff([]string{cfg.ReportURL, cfg.BuildURL, cfg.LogsURL}, urls); diff != "" {
		t.Errorf("button links mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCardJSON(t *testing.T) {
	data, err := json.Marshal(BuildCard(testng.Summary{Total: 1, Passed: 1, PassRate: 100}, expectedFullConfig()))
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	widgets := decoded["cardsV2"].([]any)[0].(map[string]any)["card"].(map[string]any)["sections"].([]any)[0].(map[string]any)["widgets"].([]any)
	divider := widgets[4].(map[string]any)
	if diff := cmp.Diff(map[string]any{"divider": map[string]any{}}, divider); diff != "" {
		t.Errorf("divider widget mismatch (-want +got):\n%s", diff)
	}
}

func TestWebhookSenderSuccess(t *testing.T) {
	var (
		mu          sync.Mutex
		contentType string
		received    Message
		requests    int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		requests++
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name": "spaces/AAAA/messages/1"}`))
	}))
	defer server.Close()

	msg := BuildCard(testng.Summary{Total: 10, Passed: 10, PassRate: 100}, expectedFullConfig())
	if err := NewWebhookSender(server.URL).Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if requests != 1 {
		t.Errorf("expected exactly one request, got %d", requests)
	}
	if contentType != "application/json; charset=UTF-8" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if diff := cmp.Diff(msg, received); diff != "" {
		t.Errorf("posted payload mismatch (-want +got):\n%s", diff)
	}
}

func TestWebhookSenderFailures(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid card payload", http.StatusBadRequest)
	}))
	defer rejecting.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	closedURL := "http://" + listener.Addr().String()
	listener.Close()

	tests := []struct {
		name       string
		url        string
		kind       Kind
		statusCode int
		message    string
	}{
		{
			name:    "Timeout",
			url:     slow.URL,
			kind:    KindTimeout,
			message: "Request timed out after 0.05 seconds",
		},
		{
			name:       "HTTPStatus",
			url:        rejecting.URL,
			kind:       KindHTTPStatus,
			statusCode: http.StatusBadRequest,
			message:    "HTTP 400 - invalid card payload\n",
		},
		{
			name: "ConnectionRefused",
			url:  closedURL,
			kind: KindConnection,
		},
		{
			name: "UnsupportedScheme",
			url:  "ftp//chat.example.com",
			kind: KindOther,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &WebhookSender{
				URL:     tc.url,
				Timeout: 50 * time.Millisecond,
				Client:  &http.Client{Timeout: 50 * time.Millisecond},
			}
			err := sender.Send(context.Background(), Message{})

			var deliveryErr *DeliveryError
			if !errors.As(err, &deliveryErr) {
				t.Fatalf("Send() expected *DeliveryError, got %v", err)
			}
			if deliveryErr.Kind != tc.kind {
				t.Errorf("Kind = %q, want %q (%v)", deliveryErr.Kind, tc.kind, err)
			}
			if deliveryErr.StatusCode != tc.statusCode {
				t.Errorf("StatusCode = %d, want %d", deliveryErr.StatusCode, tc.statusCode)
			}
			if tc.message != "" && err.Error() != tc.message {
				t.Errorf("Error() = %q, want %q", err.Error(), tc.message)
			}
		})
	}
}
