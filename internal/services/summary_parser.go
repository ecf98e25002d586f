package services

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// fallbackCommentLimit caps how many raw comments a fallback summary carries.
const fallbackCommentLimit = 5

var (
	// jsonFenceRE matches a block tagged exactly ```json; ```jsonc and
	// ```json5 fall through to anyFenceRE.
	jsonFenceRE = regexp.MustCompile("(?s)```json\\b\\s*(.*?)\\s*```")
	// anyFenceRE matches any fenced block, with or without a language tag.
	anyFenceRE = regexp.MustCompile("(?s)```[A-Za-z0-9_+.-]*\\s*(.*?)\\s*```")

	errMissingSummary  = errors.New("reply has no summary")
	errMissingPriority = errors.New("reply has no priority")
)

// parsedSummary holds the three fields persisted for a summary.
type parsedSummary struct {
	Summary          string
	Priority         string
	CombinedComments []string
}

// summaryReply is the wire shape requested from the model. Pointers tell a
// missing field apart from an empty one.
type summaryReply struct {
	Summary          *string           `json:"summary"`
	Priority         *string           `json:"priority"`
	CombinedComments []json.RawMessage `json:"combined_comments"`
}

// extractCandidate returns the contents of the first ```json block, else of
// the first fenced block of any language, else the whole reply.
func extractCandidate(reply string) string {
	if m := jsonFenceRE.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	if m := anyFenceRE.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return reply
}

// parseSummaryReply decodes the model reply. It fails on invalid JSON, on a
// type mismatch, or when summary or priority is missing or blank. A missing
// combined_comments becomes an empty list; non-string items are kept as their
// JSON text.
func parseSummaryReply(reply string) (parsedSummary, error) {
	var r summaryReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(extractCandidate(reply))), &r); err != nil {
		return parsedSummary{}, err
	}
	if r.Summary == nil || strings.TrimSpace(*r.Summary) == "" {
		return parsedSummary{}, errMissingSummary
	}
	if r.Priority == nil || strings.TrimSpace(*r.Priority) == "" {
		return parsedSummary{}, errMissingPriority
	}

	combined := make([]string, 0, len(r.CombinedComments))
	for _, raw := range r.CombinedComments {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			combined = append(combined, s)
			continue
		}
		combined = append(combined, string(raw))
	}
	return parsedSummary{
		Summary:          *r.Summary,
		Priority:         *r.Priority,
		CombinedComments: combined,
	}, nil
}

// fallbackSummary keeps the raw reply verbatim, defaults priority to medium
// and carries the first few comments in load order.
func fallbackSummary(reply string, comments []domain.Comment) parsedSummary {
	n := len(comments)
	if n > fallbackCommentLimit {
		n = fallbackCommentLimit
	}
	combined := make([]string, n)
	for i := 0; i < n; i++ {
		combined[i] = comments[i].Comment
	}
	return parsedSummary{
		Summary:          reply,
		Priority:         domain.PriorityMedium,
		CombinedComments: combined,
	}
}
