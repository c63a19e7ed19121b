package inbox

import (
	"sort"
	"sync"

	"github.com/swarmdeck/swarmdeck/core"
)

// InMemoryStore is a volatile InboxStore keeping mailboxes in process-local
// maps keyed by (session, participant). It is safe for concurrent use; reads
// return copies so callers can never mutate a stored message, and read state
// changes only through MarkAllRead.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionBoxes
}

// sessionBoxes holds one session's mailboxes plus the set of participants
// that have ever sent or received a message in it.
type sessionBoxes struct {
	boxes        map[string][]*core.Message
	participants map[string]bool
}

// NewInMemoryStore constructs an empty in-memory inbox store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*sessionBoxes)}
}

// Register ensures a mailbox exists for the participant so it is counted as
// known (and receives broadcasts) before its first message.
func (s *InMemoryStore) Register(sessionID, participant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.ensureSessionLocked(sessionID)
	sess.participants[participant] = true
	if _, ok := sess.boxes[participant]; !ok {
		sess.boxes[participant] = []*core.Message{}
	}
	return nil
}

// Write appends an unread message to the (sessionID, to) mailbox.
func (s *InMemoryStore) Write(sessionID, from, to string, body core.Body) (*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := core.NewMessage(from, to, body)
	s.appendLocked(sessionID, msg)
	return cloneMessage(msg), nil
}

// Broadcast writes an independent copy of body into every known worker
// mailbox of the session, excluding the sender. Each recipient gets its own
// message id and read flag.
func (s *InMemoryStore) Broadcast(sessionID, from string, body core.Body) ([]*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delivered []*core.Message
	for _, worker := range s.workersLocked(sessionID) {
		if worker == from {
			continue
		}
		msg := core.NewMessage(from, worker, body)
		s.appendLocked(sessionID, msg)
		delivered = append(delivered, cloneMessage(msg))
	}
	return delivered, nil
}

// Read returns the mailbox's messages in timestamp order, optionally filtered
// to unread ones. Reading never flips read flags.
func (s *InMemoryStore) Read(sessionID, participant string, unreadOnly bool) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []core.Message{}, nil
	}
	box := sess.boxes[participant]
	out := make([]core.Message, 0, len(box))
	for _, msg := range box {
		if unreadOnly && msg.Read {
			continue
		}
		out = append(out, *msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// MarkAllRead flags every message addressed to participant as read and
// returns the number of messages that changed.
func (s *InMemoryStore) MarkAllRead(sessionID, participant string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	flipped := 0
	for _, msg := range sess.boxes[participant] {
		if !msg.Read {
			msg.Read = true
			flipped++
		}
	}
	return flipped, nil
}

// Count returns the (optionally unread-filtered) cardinality of a mailbox.
func (s *InMemoryStore) Count(sessionID, participant string, unreadOnly bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	if !unreadOnly {
		return len(sess.boxes[participant]), nil
	}
	n := 0
	for _, msg := range sess.boxes[participant] {
		if !msg.Read {
			n++
		}
	}
	return n, nil
}

// Workers returns the worker participants that have sent or received at least
// one message in the session, in sorted order. The user and system
// identifiers are never included.
func (s *InMemoryStore) Workers(sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := s.workersLocked(sessionID)
	return workers, nil
}

// workersLocked lists worker participants; caller must hold at least a read lock.
func (s *InMemoryStore) workersLocked(sessionID string) []string {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return []string{}
	}
	workers := make([]string, 0, len(sess.participants))
	for p := range sess.participants {
		if p == core.ParticipantUser || p == core.ParticipantSystem {
			continue
		}
		workers = append(workers, p)
	}
	sort.Strings(workers)
	return workers
}

// appendLocked stores a message and records both endpoints as participants;
// caller must hold the write lock.
func (s *InMemoryStore) appendLocked(sessionID string, msg *core.Message) {
	sess := s.ensureSessionLocked(sessionID)
	sess.boxes[msg.To] = append(sess.boxes[msg.To], msg)
	sess.participants[msg.From] = true
	sess.participants[msg.To] = true
}

func (s *InMemoryStore) ensureSessionLocked(sessionID string) *sessionBoxes {
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &sessionBoxes{
			boxes:        map[string][]*core.Message{},
			participants: map[string]bool{},
		}
		s.sessions[sessionID] = sess
	}
	return sess
}

func cloneMessage(msg *core.Message) *core.Message {
	clone := *msg
	return &clone
}

// Interface compliance (compile-time assertion).
var _ core.InboxStore = (*InMemoryStore)(nil)
