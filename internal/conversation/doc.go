// Package conversation holds the message sequence of the active
// conversation and the list of visible conversations.
//
// # Sequence
//
// Messages are kept in a Sequence: an ordered map keyed by message id.
// Appending an id that is already present is a no-op, so a message that
// arrives both from the send response and from a channel echo shows once.
// Order is append order; nothing is resequenced by timestamp.
//
// # Selection
//
// Select makes a conversation active:
//
//  1. The sequence is cleared and the history fetch starts
//  2. The result replaces the sequence (live messages that arrived during
//     the fetch are kept after it)
//  3. The channel is asked to join the room
//  4. The conversation is marked read
//
// Every fetch is tagged with a selection generation. A fetch that returns
// after another Select has started is discarded, so rapid switching never
// shows another conversation's history. A failed fetch leaves the sequence
// empty.
package conversation
