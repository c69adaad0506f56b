// Package model defines the chat entities shared across tutorchat.
//
// Wire decoding is tolerant of the shapes the service emits: display names
// as "fullName" or "name", participants as ids or embedded objects, and the
// message sender as "senderId" or a "sender" id/object.
package model
