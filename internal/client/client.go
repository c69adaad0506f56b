// ABOUTME: Composition root binding session, directory, channel, store and dispatch
// ABOUTME: Acquires the channel when an Identity is published and releases it when cleared

package client

import (
	"context"
	"log/slog"

	"github.com/2389/tutorchat/internal/api"
	"github.com/2389/tutorchat/internal/channel"
	"github.com/2389/tutorchat/internal/config"
	"github.com/2389/tutorchat/internal/conversation"
	"github.com/2389/tutorchat/internal/credential"
	"github.com/2389/tutorchat/internal/directory"
	"github.com/2389/tutorchat/internal/dispatch"
	"github.com/2389/tutorchat/internal/model"
	"github.com/2389/tutorchat/internal/session"
)

// Client is a signed-in chat client.
type Client struct {
	creds      credential.Store
	api        *api.Client
	session    *session.Session
	directory  *directory.Cache
	channel    *channel.Manager
	store      *conversation.Store
	dispatcher *dispatch.Dispatcher
	composer   *dispatch.Composer
	logger     *slog.Logger
}

// New builds every component from cfg. Nothing touches the network until
// Start. Pass nil logger for default.
func New(cfg *config.Config, creds credential.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	rest := api.New(cfg.API.BaseURL, creds, cfg.API.Timeout, logger)
	sess := session.New(session.NewResolver(rest, creds, logger), creds, logger)
	ch := channel.NewManager(cfg.Channel, creds, logger)
	store := conversation.New(rest, ch, logger)
	disp := dispatch.New(rest, store, ch, logger)

	c := &Client{
		creds:      creds,
		api:        rest,
		session:    sess,
		directory:  directory.New(rest, logger),
		channel:    ch,
		store:      store,
		dispatcher: disp,
		composer:   dispatch.NewComposer(disp),
		logger:     logger.With("component", "client"),
	}

	ch.OnMessage(func(msg model.Message) {
		store.Append(msg)
	})
	sess.OnIdentity(c.identityChanged)
	return c
}

func (c *Client) identityChanged(identity *model.Identity) {
	if identity == nil {
		c.channel.Release()
		c.store.Reset()
		return
	}
	c.channel.Acquire(context.Background(), *identity)
}

// OnSignInRequired registers fn to run when the user must sign in again.
func (c *Client) OnSignInRequired(fn func()) {
	c.session.OnSignInRequired(fn)
}

// Start resolves the Identity and loads the directory. It may be called
// again to re-check the session; an unchanged Identity keeps a running
// channel, and a channel that gave up reconnecting is started again.
func (c *Client) Start(ctx context.Context) (model.Identity, error) {
	identity, err := c.session.Init(ctx)
	if err != nil {
		return model.Identity{}, err
	}
	c.channel.Acquire(context.Background(), identity)
	c.Refresh(ctx)
	c.logger.Info("client started", "identity_id", identity.ID)
	return identity, nil
}

// Refresh reloads peers and conversations.
func (c *Client) Refresh(ctx context.Context) {
	c.directory.Load(ctx)
	c.store.SetConversations(c.directory.Conversations())
}

// Logout clears the credential and tears down the channel.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Close releases the channel and the credential store.
func (c *Client) Close() error {
	c.channel.Release()
	return c.creds.Close()
}

// Session returns the session holding the Identity.
func (c *Client) Session() *session.Session { return c.session }

// Directory returns the peer and conversation directory.
func (c *Client) Directory() *directory.Cache { return c.directory }

// Channel returns the real-time channel manager.
func (c *Client) Channel() *channel.Manager { return c.channel }

// Conversations returns the conversation store.
func (c *Client) Conversations() *conversation.Store { return c.store }

// Dispatcher returns the message dispatcher.
func (c *Client) Dispatcher() *dispatch.Dispatcher { return c.dispatcher }

// Composer returns the draft composer bound to the dispatcher.
func (c *Client) Composer() *dispatch.Composer { return c.composer }
