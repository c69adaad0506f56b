// ABOUTME: Typed wrappers for each REST endpoint the chat client consumes
// ABOUTME: Identity, directory, conversation and message operations

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/2389/tutorchat/internal/model"
)

// Me fetches the current Identity.
func (c *Client) Me(ctx context.Context) (*model.Identity, error) {
	var identity model.Identity
	if err := c.do(ctx, http.MethodGet, "/user/me", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ListPeers fetches the user directory.
func (c *Client) ListPeers(ctx context.Context) ([]model.Peer, error) {
	var peers []model.Peer
	if err := c.do(ctx, http.MethodGet, "/user", nil, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// ListConversations fetches the conversations of the current Identity.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// StartConversation returns the existing or newly created conversation with peerID.
func (c *Client) StartConversation(ctx context.Context, peerID string) (*model.Conversation, error) {
	var conv model.Conversation
	path := "/chats/user/" + url.PathEscape(peerID)
	if err := c.do(ctx, http.MethodPost, path, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListMessages fetches a conversation's history in ascending creation order.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	var msgs []model.Message
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// createMessageRequest is the JSON body for POST /chats/{id}/messages.
type createMessageRequest struct {
	Content string `json:"content"`
}

// CreateMessage persists a message and returns the canonical copy with its
// server-assigned id and timestamp.
func (c *Client) CreateMessage(ctx context.Context, chatID, content string) (*model.Message, error) {
	var msg model.Message
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, createMessageRequest{Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead acknowledges that the conversation has been read.
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	path := "/chats/" + url.PathEscape(chatID) + "/mark-read"
	return c.do(ctx, http.MethodPut, path, nil, nil)
}
