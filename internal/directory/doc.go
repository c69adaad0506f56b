// Package directory holds the peer directory and the conversation list of
// the current Identity.
//
// Both lists are fetched independently. A failed fetch leaves that list
// empty and is logged; it never affects the other list or the rest of the
// client. There is no retry; calling Load again re-fetches.
package directory
