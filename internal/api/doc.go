// Package api is the client for the durable REST layer, the system of
// record for identities, conversations and messages.
//
// # Endpoints
//
//	GET  /user/me                 current Identity
//	GET  /user                    directory of Peers
//	GET  /chats                   Conversations of the current Identity
//	POST /chats/user/{peerId}     existing-or-new Conversation (idempotent)
//	GET  /chats/{id}/messages     message history, ascending by creation
//	POST /chats/{id}/messages     create a Message from {content}
//	PUT  /chats/{id}/mark-read    acknowledge read
//
// # Authentication
//
// Every request carries the stored credential:
//
//	Authorization: Bearer <token>
//
// When no credential is stored the request is not sent and the call fails
// with ErrNoCredential, so nothing reaches the service after a sign-out.
//
// # Errors
//
// Non-2xx responses become *StatusError carrying the status code and the
// service's "message" field when present. IsUnauthorized reports 401/403.
package api
