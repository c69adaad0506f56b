// ABOUTME: Draft holder for the message input box
// ABOUTME: Clears the draft after a send succeeds and keeps it with an inline error when it fails

package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/2389/tutorchat/internal/model"
)

// Sender is satisfied by Dispatcher.
type Sender interface {
	Send(ctx context.Context, text string) (model.Message, error)
}

// Composer holds the draft and the last send error.
type Composer struct {
	sender Sender

	mu      sync.Mutex
	draft   string
	lastErr error
}

// NewComposer creates an empty composer.
func NewComposer(sender Sender) *Composer {
	return &Composer{sender: sender}
}

// SetDraft replaces the draft and clears any previous error.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
	c.lastErr = nil
}

// Draft returns the current draft.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Err returns the error of the last failed send, or nil.
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit sends the draft. Success clears it; a send failure keeps it and
// records the error. An empty draft is ignored without an error.
func (c *Composer) Submit(ctx context.Context) (model.Message, error) {
	c.mu.Lock()
	draft := c.draft
	c.mu.Unlock()

	msg, err := c.sender.Send(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return model.Message{}, nil
	case err != nil:
		c.lastErr = err
		return model.Message{}, err
	}
	if c.draft == draft {
		c.draft = ""
	}
	c.lastErr = nil
	return msg, nil
}
