// Package client wires the chat components into one object a front end
// drives.
//
// # Data Flow
//
//	Session ──identity──▶ Channel ──messages──▶ Conversation Store
//	   │                                              ▲
//	   └──▶ Directory ──conversations─────────────────┘
//	                                 Dispatch ──append/broadcast──┘
//
// Start resolves the Identity; publishing it acquires the channel, and
// the directory lists are loaded. Clearing the Identity (logout or an
// expired credential) releases the channel and forgets the conversation
// state.
//
// # Usage
//
//	c := client.New(cfg, creds, logger)
//	c.OnSignInRequired(func() { ... })
//	if _, err := c.Start(ctx); err != nil { ... }
//	defer c.Close()
//
//	c.Conversations().StartConversation(ctx, peerID)
//	c.Dispatcher().Send(ctx, "hello")
package client
