package core

import (
	"errors"
	"time"
)

// ErrNoOpenTurn indicates there is no assistant message being streamed.
var ErrNoOpenTurn = errors.New("no assistant turn in progress")

// Conversation is an ordered, append-only sequence of messages.
// The last message may be an assistant message under active streaming; its
// content only grows until FinishAssistant is called.
// A Conversation is not safe for concurrent use.
type Conversation struct {
	messages []ConversationMessage
	open     bool
	now      func() time.Time
}

// NewConversation creates a conversation seeded with history.
func NewConversation(history ...ConversationMessage) *Conversation {
	c := &Conversation{now: func() time.Time { return time.Now().UTC() }}
	c.messages = append(c.messages, history...)
	return c
}

// Append adds a complete message. It closes any open assistant turn first.
func (c *Conversation) Append(msg ConversationMessage) {
	c.open = false
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now()
	}
	c.messages = append(c.messages, msg)
}

// BeginAssistant opens an empty assistant message that chunks are applied to.
func (c *Conversation) BeginAssistant() {
	c.Append(ConversationMessage{Role: RoleAssistant})
	c.open = true
}

// ApplyChunk appends chunk to the open assistant message. Empty chunks are no-ops.
func (c *Conversation) ApplyChunk(chunk string) error {
	if !c.open {
		return ErrNoOpenTurn
	}
	if chunk == "" {
		return nil
	}
	last := &c.messages[len(c.messages)-1]
	last.Content += chunk
	return nil
}

// FinishAssistant closes the open assistant message and returns its final content.
func (c *Conversation) FinishAssistant() (string, error) {
	if !c.open {
		return "", ErrNoOpenTurn
	}
	c.open = false
	return c.messages[len(c.messages)-1].Content, nil
}

// Streaming reports whether an assistant message is still open.
func (c *Conversation) Streaming() bool {
	return c.open
}

// Messages returns a copy of the messages in order.
func (c *Conversation) Messages() []ConversationMessage {
	return append([]ConversationMessage(nil), c.messages...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// LastUserMessage returns the most recent user message.
func (c *Conversation) LastUserMessage() (ConversationMessage, bool) {
	return LastUserMessage(c.messages)
}

// LastUserMessage returns the most recent user message in history.
func LastUserMessage(history []ConversationMessage) (ConversationMessage, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i], true
		}
	}
	return ConversationMessage{}, false
}
