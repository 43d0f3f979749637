// Package slack pushes high-severity health alerts to a Slack channel as
// Block Kit messages.
package slack

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/healthboard/healthboard/internal/database"
	"github.com/healthboard/healthboard/internal/utils"
)

// Slack Block Kit limits: header text 150 chars, section text 3000 chars
const (
	maxHeaderLen  = 150
	maxSectionLen = 3000
)

// MessagePoster is the slice of the Slack client the notifier needs
type MessagePoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier sends alert notifications to one channel. A notifier built
// without an API key is inert and reports every alert as not sent.
type Notifier struct {
	poster  MessagePoster
	channel string
}

// NewNotifier creates a notifier for the given channel. An empty API key
// yields a disabled notifier.
func NewNotifier(apiKey, channel string) *Notifier {
	n := &Notifier{channel: channel}
	if apiKey != "" {
		n.poster = slack.New(apiKey)
	}
	return n
}

// IsConfigured reports whether messages can actually be posted
func (n *Notifier) IsConfigured() bool {
	return n.poster != nil && n.channel != ""
}

// SendAlertNotification posts the alert to the channel when it qualifies:
// AI priority high or critical and no notification sent yet. Returns whether
// a message went out.
func (n *Notifier) SendAlertNotification(alert *database.HealthAlert, appHost string) (bool, error) {
	if !alert.NeedsNotification() {
		return false, nil
	}
	if !n.IsConfigured() {
		return false, nil
	}

	_, _, err := n.poster.PostMessage(n.channel, slack.MsgOptionBlocks(n.buildBlocks(alert, appHost)...))
	if err != nil {
		return false, fmt.Errorf("failed to post slack message: %w", err)
	}
	return true, nil
}

func (n *Notifier) buildBlocks(alert *database.HealthAlert, appHost string) []slack.Block {
	priority := strings.ToUpper(string(alert.Priority()))
	headerText := utils.TruncateText(fmt.Sprintf("🚨 %s ALERT: %s", priority, alert.Title), maxHeaderLen)
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, headerText, true, false),
	)

	var meta strings.Builder
	fmt.Fprintf(&meta, "*Category:* %s\n", alert.Category)
	fmt.Fprintf(&meta, "*Source:* %s\n", alert.SourceSystem)
	fmt.Fprintf(&meta, "*Priority:* %s", alert.Priority())
	if alert.AICategory != nil && *alert.AICategory != "" {
		fmt.Fprintf(&meta, "\n*AI Category:* %s", *alert.AICategory)
	}

	blocks := []slack.Block{
		header,
		slack.NewDividerBlock(),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, meta.String(), false, false), nil, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, utils.TruncateBlock("*Description:*\n"+alert.Description, maxSectionLen), false, false), nil, nil),
	}

	if alert.AISummary != nil && *alert.AISummary != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*AI Summary:*\n"+*alert.AISummary, false, false), nil, nil))
	}
	if alert.AIRecommendation != nil && *alert.AIRecommendation != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Recommended Action:*\n"+*alert.AIRecommendation, false, false), nil, nil))
	}

	link := fmt.Sprintf("<http://%s/alert/%d|View in dashboard>", appHost, alert.ID)
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, link, false, false), nil, nil))

	return blocks
}
