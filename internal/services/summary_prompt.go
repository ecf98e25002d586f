package services

import (
	"strings"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// summarySystemPrompt instructs the model to answer with the JSON shape that
// parseSummaryReply understands.
const summarySystemPrompt = `You are a project feedback analyzer. Analyze the provided client feedback comments and create a structured summary. Return your response in this JSON format:
{
  "summary": "A comprehensive summary of all feedback in 2-3 sentences",
  "priority": "high/medium/low based on urgency of feedback",
  "combined_comments": ["key point 1", "key point 2", "key point 3"]
}`

const (
	userPromptPrefix = "Analyze these project feedback comments:\n\n"
	noTimestamp      = "no timestamp"
	commentSeparator = "\n\n"
)

// formatComment renders one comment as "{author} ({timestamp}): {comment}".
// A missing or empty timestamp is written as "no timestamp".
func formatComment(c domain.Comment) string {
	ts := noTimestamp
	if c.Timestamp != nil && *c.Timestamp != "" {
		ts = *c.Timestamp
	}
	var b strings.Builder
	b.Grow(len(c.Author) + len(ts) + len(c.Comment) + 5)
	b.WriteString(c.Author)
	b.WriteString(" (")
	b.WriteString(ts)
	b.WriteString("): ")
	b.WriteString(c.Comment)
	return b.String()
}

// buildFeedbackText joins the formatted comments with a blank line, keeping
// the order in which they were loaded.
func buildFeedbackText(comments []domain.Comment) string {
	lines := make([]string, len(comments))
	for i, c := range comments {
		lines[i] = formatComment(c)
	}
	return strings.Join(lines, commentSeparator)
}

// buildUserPrompt is the user message sent alongside summarySystemPrompt.
func buildUserPrompt(comments []domain.Comment) string {
	return userPromptPrefix + buildFeedbackText(comments)
}
