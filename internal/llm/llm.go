// Package llm produces the tutor's replies with a chat completion model.
package llm

import "context"

// Message represents a conversation message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Client defines the interface for LLM providers.
type Client interface {
	// Chat returns the assistant reply to messages.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Complete answers a single user line under systemPrompt.
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}
