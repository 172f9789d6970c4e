// Package notifications sends operator alerts.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// DefaultAlertInterval throttles repeated alerts for the same stage.
const DefaultAlertInterval = 5 * time.Minute

// Discord is a simple Discord webhook notifier.
type Discord struct {
	webhookURL string
	logger     *log.Logger
	client     *http.Client
	interval   time.Duration
	now        func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
	pending  sync.WaitGroup
}

// NewDiscord creates a new Discord notifier. If webhookURL is empty,
// notifications are silently skipped.
func NewDiscord(webhookURL string, logger *log.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		logger:     logger,
		client:     &http.Client{Timeout: 10 * time.Second},
		interval:   DefaultAlertInterval,
		now:        time.Now,
		lastSent:   make(map[string]time.Time),
	}
}

// Enabled returns true if the webhook is configured.
func (d *Discord) Enabled() bool {
	return d != nil && d.webhookURL != ""
}

// discordMessage is the payload for Discord webhook.
type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// send posts a message to Discord webhook asynchronously.
// Errors are logged but don't affect caller.
func (d *Discord) send(msg discordMessage) {
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		body, err := json.Marshal(msg)
		if err != nil {
			d.logger.Printf("discord: failed to marshal message: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
		if err != nil {
			d.logger.Printf("discord: failed to create request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Printf("discord: failed to send webhook: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			d.logger.Printf("discord: webhook returned status %d", resp.StatusCode)
		}
	}()
}

// allow reports whether an alert for key may go out now.
func (d *Discord) allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.interval {
		return false
	}
	d.lastSent[key] = now
	return true
}

// NotifyProviderFailure reports a failed voice-chat stage. Alerts for the
// same stage are sent at most once per interval.
func (d *Discord) NotifyProviderFailure(stage, turnID string, lessonID int64, err error) {
	if !d.Enabled() || !d.allow(stage) {
		return
	}
	msg := discordMessage{
		Embeds: []discordEmbed{{
			Title:       fmt.Sprintf("Voice chat %s failing", stage),
			Description: fmt.Sprintf("```%s```", truncate(err.Error(), 1500)),
			Color:       0xFF0000, // Red
			Fields: []embedField{
				{Name: "Stage", Value: stage, Inline: true},
				{Name: "Lesson", Value: fmt.Sprint(lessonID), Inline: true},
				{Name: "Turn", Value: fmt.Sprintf("`%s`", turnID)},
			},
			Timestamp: d.now().UTC().Format(time.RFC3339),
		}},
	}
	d.send(msg)
}

// Flush waits for alerts already being sent.
func (d *Discord) Flush() {
	if d == nil {
		return
	}
	d.pending.Wait()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
