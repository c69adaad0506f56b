// ABOUTME: Ordered, id-keyed message sequence with O(1) duplicate detection
// ABOUTME: Uses a doubly-linked list for insertion order and a map for lookup

package conversation

import (
	"container/list"

	"github.com/2389/tutorchat/internal/model"
)

// Sequence is an ordered set of messages keyed by id. It is not safe for
// concurrent use; Store guards it.
type Sequence struct {
	index map[string]*list.Element
	order *list.List // model.Message values, oldest at front
}

// NewSequence returns an empty sequence.
func NewSequence() *Sequence {
	return &Sequence{
		index: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Append adds msg at the end. Returns false and leaves the sequence
// unchanged when a message with the same id is already present.
func (s *Sequence) Append(msg model.Message) bool {
	if _, ok := s.index[msg.ID]; ok {
		return false
	}
	s.index[msg.ID] = s.order.PushBack(msg)
	return true
}

// Contains reports whether id is present.
func (s *Sequence) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of messages.
func (s *Sequence) Len() int {
	return s.order.Len()
}

// Messages returns the messages in order.
func (s *Sequence) Messages() []model.Message {
	out := make([]model.Message, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(model.Message))
	}
	return out
}

// Reset removes every message.
func (s *Sequence) Reset() {
	clear(s.index)
	s.order.Init()
}
