package scheduler

import "context"

// Specs are the cron triggers of the daily, weekly and monthly feeds.
type Specs struct {
	Daily   string
	Weekly  string
	Monthly string
}

// DefaultSpecs feed period 1 every day at 00:00, period 7 on Mondays at 00:02,
// and period 30 on the first of the month at 00:05.
func DefaultSpecs() Specs {
	return Specs{
		Daily:   "0 0 * * *",
		Weekly:  "2 0 * * 1",
		Monthly: "5 0 1 * *",
	}
}

// FeedFunc feeds every configured pair for the given periods.
type FeedFunc func(ctx context.Context, periods []int) error

// FeedEntries builds the daily, weekly and monthly entries. Empty specs are skipped.
func FeedEntries(specs Specs, feed FeedFunc) []Entry {
	plan := []struct {
		name   string
		spec   string
		period int
	}{
		{"daily", specs.Daily, 1},
		{"weekly", specs.Weekly, 7},
		{"monthly", specs.Monthly, 30},
	}

	out := make([]Entry, 0, len(plan))
	for _, p := range plan {
		if p.spec == "" {
			continue
		}
		periods := []int{p.period}
		out = append(out, Entry{
			Name: p.name,
			Spec: p.spec,
			Task: func(ctx context.Context) error { return feed(ctx, periods) },
		})
	}
	return out
}
