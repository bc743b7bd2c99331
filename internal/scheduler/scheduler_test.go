package scheduler

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestFeedEntriesDefaults(t *testing.T) {
	var got [][]int
	feed := func(_ context.Context, periods []int) error {
		got = append(got, periods)
		return nil
	}

	s := New(time.Minute, zaptest.NewLogger(t))
	for _, e := range FeedEntries(DefaultSpecs(), feed) {
		if err := s.Add(e); err != nil {
			t.Fatalf("add %s: %v", e.Name, err)
		}
	}

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for _, name := range []string{"daily", "weekly", "monthly"} {
		if err := s.RunNow(context.Background(), name); err != nil {
			t.Fatalf("run %s: %v", name, err)
		}
	}
	want := [][]int{{1}, {7}, {30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected periods %v", got)
	}
}

func TestNextActivation(t *testing.T) {
	s := New(0, nil)
	for _, e := range FeedEntries(DefaultSpecs(), func(context.Context, []int) error { return nil }) {
		if err := s.Add(e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// Wednesday 2024-01-10 12:00 UTC.
	from := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"daily":   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		"weekly":  time.Date(2024, 1, 15, 0, 2, 0, 0, time.UTC),
		"monthly": time.Date(2024, 2, 1, 0, 5, 0, 0, time.UTC),
	}
	for name, want := range cases {
		got, ok := s.Next(name, from)
		if !ok || !got.Equal(want) {
			t.Fatalf("%s: expected %s, got %s (ok=%v)", name, want, got, ok)
		}
	}
	if _, ok := s.Next("hourly", from); ok {
		t.Fatalf("unknown entry should not resolve")
	}
}

func TestAddValidation(t *testing.T) {
	s := New(0, nil)
	task := func(context.Context) error { return nil }

	if err := s.Add(Entry{Name: "bad", Spec: "not a cron", Task: task}); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := s.Add(Entry{Name: "", Spec: "* * * * *", Task: task}); err == nil {
		t.Fatalf("expected name error")
	}
	if err := s.Add(Entry{Name: "nil", Spec: "* * * * *"}); err == nil {
		t.Fatalf("expected nil task error")
	}
	if err := s.Add(Entry{Name: "dup", Spec: "* * * * *", Task: task}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Entry{Name: "dup", Spec: "* * * * *", Task: task}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Fatalf("expected unknown entry error")
	}
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := New(10*time.Millisecond, nil)
	err := s.Add(Entry{Name: "slow", Spec: "0 0 * * *", Task: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	s := New(0, zaptest.NewLogger(t))
	if err := s.Add(Entry{Name: "noop", Spec: "0 0 * * *", Task: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
