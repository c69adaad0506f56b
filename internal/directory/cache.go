// ABOUTME: Directory Cache of peers and conversations fetched from the REST API
// ABOUTME: Each list loads independently; a failure yields an empty list and a log line

package directory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/2389/tutorchat/internal/model"
)

// Source is the subset of the REST client the cache reads from.
type Source interface {
	ListPeers(ctx context.Context) ([]model.Peer, error)
	ListConversations(ctx context.Context) ([]model.Conversation, error)
}

// Cache holds the last fetched directory lists.
type Cache struct {
	src    Source
	logger *slog.Logger

	mu            sync.RWMutex
	peers         []model.Peer
	conversations []model.Conversation
}

// New creates an empty cache. Pass nil logger for default.
func New(src Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		src:    src,
		logger: logger.With("component", "directory"),
	}
}

// Load fetches peers and conversations concurrently.
func (c *Cache) Load(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.LoadPeers(gctx)
		return nil
	})
	g.Go(func() error {
		c.LoadConversations(gctx)
		return nil
	})
	_ = g.Wait()
}

// LoadPeers fetches the peer directory. On failure the list is empty.
func (c *Cache) LoadPeers(ctx context.Context) []model.Peer {
	peers, err := c.src.ListPeers(ctx)
	if err != nil {
		c.logger.Warn("directory unavailable", "list", "peers", "error", err)
		peers = nil
	}

	c.mu.Lock()
	c.peers = peers
	c.mu.Unlock()

	c.logger.Debug("peers loaded", "count", len(peers))
	return slices.Clone(peers)
}

// LoadConversations fetches the conversation list. On failure the list is empty.
func (c *Cache) LoadConversations(ctx context.Context) []model.Conversation {
	convs, err := c.src.ListConversations(ctx)
	if err != nil {
		c.logger.Warn("directory unavailable", "list", "conversations", "error", err)
		convs = nil
	}

	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()

	c.logger.Debug("conversations loaded", "count", len(convs))
	return slices.Clone(convs)
}

// Peers returns the cached peer directory.
func (c *Cache) Peers() []model.Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.peers)
}

// Conversations returns the cached conversation list.
func (c *Cache) Conversations() []model.Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.conversations)
}

// Peer looks up a peer by id.
func (c *Cache) Peer(id string) (model.Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.peers {
		if p.ID == id {
			return p, true
		}
	}
	return model.Peer{}, false
}
