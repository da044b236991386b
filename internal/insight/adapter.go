package insight

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// Messages returned to users in Result.Error.
const (
	MsgInvalidInput = "Invalid input provided."
	MsgFailed       = "Failed to fetch AI insights."
	MsgBusy         = "Insights are already being generated."
)

// Result is the outcome of an insight request. Error is empty on success.
type Result struct {
	Insights []model.Insight `json:"insights"`
	Error    string          `json:"error,omitempty"`
}

// Adapter validates requests, runs a generator and converts every failure
// into a single user-facing message. Each requester has at most one request
// running at a time.
type Adapter struct {
	Generator Generator
	Timeout   time.Duration
	Now       func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// Fetch summarises items and asks the generator for insights on behalf of
// requester.
func (a *Adapter) Fetch(ctx context.Context, requester string, items []model.Item) Result {
	if !a.start(requester) {
		return Result{Insights: []model.Insight{}, Error: MsgBusy}
	}
	defer a.finish(requester)

	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	summaries := Summarize(items, now)
	if !valid(summaries) {
		slog.Warn("invalid insight request", "items", len(summaries))
		return Result{Insights: []model.Insight{}, Error: MsgInvalidInput}
	}

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	insights, err := a.Generator.Generate(ctx, now, summaries)
	if err != nil {
		slog.Error("failed to fetch insights", "error", err)
		return Result{Insights: []model.Insight{}, Error: MsgFailed}
	}
	if insights == nil {
		insights = []model.Insight{}
	}
	return Result{Insights: insights}
}

func (a *Adapter) start(requester string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running[requester] {
		return false
	}
	if a.running == nil {
		a.running = map[string]bool{}
	}
	a.running[requester] = true
	return true
}

func (a *Adapter) finish(requester string) {
	a.mu.Lock()
	delete(a.running, requester)
	a.mu.Unlock()
}

func valid(summaries []Summary) bool {
	for _, s := range summaries {
		if s.ItemName == "" || s.Status == "" {
			return false
		}
	}
	return true
}
