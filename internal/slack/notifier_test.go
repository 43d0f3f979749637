package slack

import (
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/healthboard/healthboard/internal/database"
)

type fakePoster struct {
	calls   int
	channel string
	options []slack.MsgOption
	err     error
}

func (f *fakePoster) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	f.options = options
	return channelID, "1724680000.000100", f.err
}

func strPtr(s string) *string { return &s }

func criticalAlert() *database.HealthAlert {
	return &database.HealthAlert{
		ID:               7,
		Title:            "Data export job failing",
		Description:      "Nightly export has failed three times in a row",
		Category:         "stability",
		SourceSystem:     "Salesforce Scheduler",
		AICategory:       strPtr("data"),
		AIPriority:       strPtr("critical"),
		AISummary:        strPtr("Export pipeline is down"),
		AIRecommendation: strPtr("Check the integration user's permissions"),
	}
}

func TestSendAlertNotification_Sends(t *testing.T) {
	poster := &fakePoster{}
	n := &Notifier{poster: poster, channel: "#sf-health-alerts"}

	sent, err := n.SendAlertNotification(criticalAlert(), "localhost:8000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sent {
		t.Fatal("expected notification to be sent")
	}
	if poster.calls != 1 {
		t.Errorf("post calls = %d, want 1", poster.calls)
	}
	if poster.channel != "#sf-health-alerts" {
		t.Errorf("channel = %q", poster.channel)
	}
}

func TestSendAlertNotification_GatesOnPriority(t *testing.T) {
	poster := &fakePoster{}
	n := &Notifier{poster: poster, channel: "#sf-health-alerts"}

	alert := criticalAlert()
	alert.AIPriority = strPtr("medium")

	sent, err := n.SendAlertNotification(alert, "localhost:8000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent {
		t.Error("medium priority must not notify")
	}
	if poster.calls != 0 {
		t.Errorf("post calls = %d, want 0", poster.calls)
	}

	alert.AIPriority = nil
	if sent, _ := n.SendAlertNotification(alert, "localhost:8000"); sent {
		t.Error("uncategorized alert must not notify")
	}
	if poster.calls != 0 {
		t.Errorf("post calls = %d, want 0", poster.calls)
	}
}

func TestSendAlertNotification_SkipsAlreadySent(t *testing.T) {
	poster := &fakePoster{}
	n := &Notifier{poster: poster, channel: "#sf-health-alerts"}

	alert := criticalAlert()
	alert.SlackAlertSent = true

	sent, err := n.SendAlertNotification(alert, "localhost:8000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent || poster.calls != 0 {
		t.Error("already-notified alert must not post again")
	}
}

func TestSendAlertNotification_Unconfigured(t *testing.T) {
	n := NewNotifier("", "#sf-health-alerts")
	if n.IsConfigured() {
		t.Error("notifier without API key must not be configured")
	}

	sent, err := n.SendAlertNotification(criticalAlert(), "localhost:8000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent {
		t.Error("unconfigured notifier must report not sent")
	}
}

func TestBuildBlocks(t *testing.T) {
	n := &Notifier{channel: "#sf-health-alerts"}
	alert := criticalAlert()

	blocks := n.buildBlocks(alert, "localhost:8000")

	header, ok := blocks[0].(*slack.HeaderBlock)
	if !ok {
		t.Fatalf("first block is %T, want header", blocks[0])
	}
	if !strings.Contains(header.Text.Text, "CRITICAL ALERT") {
		t.Errorf("header = %q", header.Text.Text)
	}
	if !strings.Contains(header.Text.Text, alert.Title) {
		t.Errorf("header missing title: %q", header.Text.Text)
	}

	if _, ok := blocks[1].(*slack.DividerBlock); !ok {
		t.Errorf("second block is %T, want divider", blocks[1])
	}

	var all strings.Builder
	for _, b := range blocks[2:] {
		section, ok := b.(*slack.SectionBlock)
		if !ok {
			t.Fatalf("block is %T, want section", b)
		}
		all.WriteString(section.Text.Text)
		all.WriteString("\n")
	}
	for _, want := range []string{
		"*Category:* stability",
		"*Source:* Salesforce Scheduler",
		"*AI Summary:*\nExport pipeline is down",
		"*Recommended Action:*\nCheck the integration user's permissions",
		"<http://localhost:8000/alert/7|View in dashboard>",
	} {
		if !strings.Contains(all.String(), want) {
			t.Errorf("blocks missing %q", want)
		}
	}
}

func TestBuildBlocks_OmitsEmptyAISections(t *testing.T) {
	n := &Notifier{channel: "#sf-health-alerts"}
	alert := criticalAlert()
	alert.AISummary = nil
	alert.AIRecommendation = strPtr("")

	blocks := n.buildBlocks(alert, "localhost:8000")

	for _, b := range blocks {
		if section, ok := b.(*slack.SectionBlock); ok {
			if strings.Contains(section.Text.Text, "AI Summary") || strings.Contains(section.Text.Text, "Recommended Action") {
				t.Errorf("unexpected AI section: %q", section.Text.Text)
			}
		}
	}
}
