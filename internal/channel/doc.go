// Package channel owns the real-time connection to the chat service.
//
// # Wire Protocol
//
// Every websocket frame is a JSON envelope:
//
//	{"event": "<name>", "data": <json>}
//
// Client to server:
//
//	connect         {"token": "<bearer>"}       first frame on every connection
//	user:register   "<identityId>"              sent once the connection is acknowledged
//	chat:join       "<chatId>"                  subscribe to a conversation room
//	chat:message    {"chatId", "message"}       relay a persisted message to the room
//
// Server to client:
//
//	connect          {"sid": "<id>"}            handshake acknowledgement
//	connect_error    {"message": "<reason>"}    credential rejected
//	chat:message:new <Message>                  a message was created in a joined room
//
// # Lifecycle
//
// Manager holds at most one connection per Identity. Acquire starts it,
// Release tears it down. A lost transport is retried with bounded
// exponential backoff; each new connection re-registers and re-joins the
// last requested room. A rejected credential is never retried.
//
// Inbound messages are delivered only for rooms joined on the live
// connection, so nothing reaches subscribers before the join that follows
// registration.
package channel
