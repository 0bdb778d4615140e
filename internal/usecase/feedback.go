package usecase

import "github.com/sellerdesk/variant-engine/internal/domain"

// patternFeedback aggregates the operator decisions recorded against one
// base pattern.
type patternFeedback struct {
	rejections int
	accepts    int
	lastAction domain.FeedbackAction
}

// feedbackStats is the folded view of the append-only feedback journal,
// keyed by base pattern. It is rebuilt from history on every detection pass
// so the detector itself carries no state between calls.
type feedbackStats map[string]patternFeedback

// buildFeedbackStats folds feedback events into per-pattern counters.
// Events without a base key (manual groupings of unrelated products) carry
// no signal for pattern scoring and are skipped.
func buildFeedbackStats(history []domain.FeedbackEvent) feedbackStats {
	stats := make(feedbackStats)
	for _, ev := range history {
		if ev.BaseKey == "" {
			continue
		}
		s := stats[ev.BaseKey]
		switch ev.Action {
		case domain.FeedbackRejected:
			s.rejections++
		case domain.FeedbackAccepted, domain.FeedbackManualGroupCreated:
			s.accepts++
		}
		s.lastAction = ev.Action
		stats[ev.BaseKey] = s
	}
	return stats
}

// rejectionsFor returns the rejection count recorded for a base pattern.
func (s feedbackStats) rejectionsFor(baseKey string) int {
	return s[baseKey].rejections
}
