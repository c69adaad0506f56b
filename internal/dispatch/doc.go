// Package dispatch sends chat messages.
//
// A send is a durable write followed by a real-time relay:
//
//  1. POST the content to the active conversation
//  2. Append the returned canonical message to the conversation store
//  3. Broadcast it on the channel for the other participants
//
// Nothing is committed locally until the durable write succeeds, and the
// relay never blocks the send. Composer wraps Dispatcher with the draft
// text an input box holds.
package dispatch
