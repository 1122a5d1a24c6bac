package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

// AlertInfo holds the data needed to build an ops alert notification for an
// agent auto-stop or a cascading OAuth failure.
type AlertInfo struct {
	AlertID     string
	Title       string
	Severity    string
	Description string
	AgentID     int64
	AccountID   int64
	Reason      string
	RunbookURL  string
}

// SeverityEmoji returns the emoji prefix for a given severity level.
func SeverityEmoji(severity string) string {
	switch severity {
	case "critical":
		return "🔴"
	case "warning":
		return "🟡"
	case "info":
		return "🔵"
	default:
		return "⚪"
	}
}

func severity(s string) string {
	switch s {
	case "critical":
		return "CRITICAL"
	case "warning":
		return "WARNING"
	case "info":
		return "INFO"
	default:
		return "ALERT"
	}
}

// AlertNotificationBlocks builds Slack Block Kit blocks for an auto-stop or
// OAuth-failure alert.
func AlertNotificationBlocks(alert AlertInfo) []goslack.Block {
	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType,
			fmt.Sprintf("%s %s: %s", SeverityEmoji(alert.Severity), severity(alert.Severity), alert.Title), true, false),
	)

	var fields []*goslack.TextBlockObject
	if alert.AgentID != 0 {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Agent:* %d", alert.AgentID), false, false))
	}
	if alert.AccountID != 0 {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Account:* %d", alert.AccountID), false, false))
	}
	if alert.Reason != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Reason:* %s", alert.Reason), false, false))
	}

	var blocks []goslack.Block
	blocks = append(blocks, header)

	if len(fields) > 0 {
		blocks = append(blocks, goslack.NewSectionBlock(nil, fields, nil))
	}

	if alert.Description != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncate(alert.Description, 500), false, false),
			nil, nil,
		))
	}

	if alert.RunbookURL != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("<%s|Runbook>", alert.RunbookURL), false, false),
			nil, nil,
		))
	}

	return blocks
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
