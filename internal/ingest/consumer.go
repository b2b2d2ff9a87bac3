package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a-yousafzai/ai-analyst-agent/config"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/telemetry"
	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
	"github.com/a-yousafzai/ai-analyst-agent/provider"
)

// summaryTailRunes bounds the heuristic summary taken from the raw payload.
const summaryTailRunes = 200

// Consumer reads alert envelopes from a Redis stream via a consumer group,
// enriches each with a summary and writes the result to the search backend.
// Malformed entries are acknowledged and skipped so they cannot wedge the
// group.
type Consumer struct {
	client  *redis.Client
	backend search.Backend
	llm     provider.Provider
	cfg     config.IngestConfig
	tele    *telemetry.Telemetry
	logger  *log.Logger
}

// NewConsumer builds a consumer. llm may be nil; summaries then come from the
// heuristic path.
func NewConsumer(client *redis.Client, backend search.Backend, llm provider.Provider, cfg config.IngestConfig, tele *telemetry.Telemetry) *Consumer {
	return &Consumer{
		client:  client,
		backend: backend,
		llm:     llm,
		cfg:     cfg,
		tele:    tele,
		logger:  log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
	}
}

// EnsureGroup creates the consumer group if it does not exist.
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	if stream == "" || group == "" {
		return fmt.Errorf("stream and group must be provided")
	}
	if err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := EnsureGroup(ctx, c.client, c.cfg.Stream, c.cfg.Group); err != nil {
		return err
	}
	c.logger.Printf("consuming %s as %s/%s", c.cfg.Stream, c.cfg.Group, c.cfg.Consumer)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.readBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Printf("read: %v", err)
			time.Sleep(time.Second)
		}
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	block := c.cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	count := c.cfg.BatchSize
	if count <= 0 {
		count = 16
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("xreadgroup: %w", err)
	}

	for _, st := range streams {
		for _, msg := range st.Messages {
			c.handle(ctx, msg)
		}
	}
	return nil
}

// handle processes one stream entry. Every path acknowledges the entry: a
// poison message must not be redelivered forever.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
			c.logger.Printf("xack %s: %v", msg.ID, err)
		}
	}()

	env, err := decodeEntry(msg)
	if err != nil {
		c.logger.Printf("skipping malformed entry %s: %v", msg.ID, err)
		c.tele.IngestEvent("malformed")
		return
	}

	doc := c.enrich(ctx, env)
	if err := c.backend.Index(ctx, c.cfg.OutputIndex, doc); err != nil {
		c.logger.Printf("index %s: %v", env.EventID, err)
		c.tele.IngestEvent("index_error")
		return
	}
	c.tele.IngestEvent("enriched")
}

// decodeEntry extracts the envelope payload from a raw stream entry.
func decodeEntry(msg redis.XMessage) (Envelope, error) {
	raw, ok := msg.Values["envelope"]
	if !ok {
		return Envelope{}, fmt.Errorf("entry has no envelope field")
	}
	switch v := raw.(type) {
	case string:
		return UnmarshalEnvelope([]byte(v))
	case []byte:
		return UnmarshalEnvelope(v)
	default:
		return Envelope{}, fmt.Errorf("unexpected envelope type %T", raw)
	}
}

// enrich builds the indexed document: the original alert plus a summary and
// timestamps the search tool can sort on.
func (c *Consumer) enrich(ctx context.Context, env Envelope) map[string]any {
	return map[string]any{
		"event_id":    env.EventID,
		"event_type":  env.EventType,
		"@timestamp":  env.OccurredAt.UTC().Format(time.RFC3339),
		"alert":       json.RawMessage(env.Data),
		"summary":     c.summarize(ctx, env),
		"enriched_at": time.Now().UTC().Format(time.RFC3339),
	}
}

// summarize asks the LLM for a one-line triage note, degrading to a payload
// excerpt when no backend is available or the call fails.
func (c *Consumer) summarize(ctx context.Context, env Envelope) string {
	if c.llm != nil {
		prompt := fmt.Sprintf("Alert type: %s\nPayload: %s\n\nWrite a one-sentence triage summary for a security analyst.", env.EventType, string(env.Data))
		out, err := c.llm.Complete(ctx, "You are a SOC assistant writing terse alert summaries.", prompt)
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		if err != nil {
			c.logger.Printf("summary fallback for %s: %v", env.EventID, err)
		}
	}
	return heuristicSummary(env)
}

func heuristicSummary(env Envelope) string {
	excerpt := payloadExcerpt(env.Data)
	if excerpt == "" {
		return fmt.Sprintf("%s alert received.", env.EventType)
	}
	return fmt.Sprintf("%s alert: %s", env.EventType, excerpt)
}

// payloadExcerpt prefers a message field, then falls back to the raw JSON.
func payloadExcerpt(data json.RawMessage) string {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err == nil {
		for _, key := range []string{"message", "description", "reason"} {
			if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
				return truncateRunes(strings.TrimSpace(s), summaryTailRunes)
			}
		}
	}
	return truncateRunes(strings.TrimSpace(string(data)), summaryTailRunes)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
