// Package digest builds and dispatches the daily report of tasks due today.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/antoniostano/contentdesk/internal/observability"
	"github.com/antoniostano/contentdesk/internal/tasks"
)

// Messenger delivers outbound chat messages. Delivery failures are the
// transport's problem: the digest logs them and moves on.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Result struct {
	Sent  bool `json:"sent"`
	Count int  `json:"count"`
}

type Generator struct {
	store     tasks.Store
	messenger Messenger
	chatID    int64
	metrics   *observability.Metrics
}

// NewGenerator wires the digest against its collaborators. A zero chatID
// means no destination is configured and reports are never dispatched.
func NewGenerator(store tasks.Store, messenger Messenger, chatID int64, metrics *observability.Metrics) *Generator {
	return &Generator{
		store:     store,
		messenger: messenger,
		chatID:    chatID,
		metrics:   metrics,
	}
}

// Run reads the tasks due on the current server-local date and dispatches
// the rendered report when a destination is configured. It mutates nothing
// and is safe to invoke repeatedly; Sent records that dispatch was
// attempted, not that the transport acknowledged it.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	entries, err := g.store.ListDueToday(ctx, time.Now())
	if err != nil {
		return Result{}, fmt.Errorf("list due today: %w", err)
	}

	res := Result{Count: len(entries)}
	if g.chatID == 0 {
		return res, nil
	}

	res.Sent = true
	report := "🗓 Today's digest:\n" + Render(entries)
	if err := g.messenger.SendMessage(ctx, g.chatID, report); err != nil {
		g.metrics.OutboundSends.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Int64("chat_id", g.chatID).Msg("digest dispatch failed")
		return res, nil
	}
	g.metrics.OutboundSends.WithLabelValues("ok").Inc()
	return res, nil
}

// Render formats the report body: one bullet line per task, or a fixed
// line when nothing is due.
func Render(entries []tasks.DigestEntry) string {
	if len(entries) == 0 {
		return "No tasks due today."
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("• [%s] %s — %s", e.Assignee, e.Title, e.Due.Format("2006-01-02")))
	}
	return strings.Join(lines, "\n")
}
