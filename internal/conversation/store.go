// Package conversation provides the per-conversation message log.
//
// The store owns the in-memory map of conversation id to ordered message
// sequence. Messages are only ever appended at the tail; trimming drops
// the oldest entries beyond a fixed window. The whole map is serialized
// to a single JSON file after each completed turn and reloaded at
// process start.
package conversation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adavila/ada/internal/llm"
)

// DefaultMaxHistory bounds the message window per conversation.
const DefaultMaxHistory = 20

// Conversation holds the state of a single conversation.
type Conversation struct {
	ID        string        `json:"id"`
	Messages  []llm.Message `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store manages conversation history.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	turnLocks     map[string]*sync.Mutex
	path          string
	maxHistory    int
	logger        *slog.Logger
}

// NewStore creates a conversation store backed by the given JSON file.
func NewStore(path string, maxHistory int, logger *slog.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		conversations: make(map[string]*Conversation),
		turnLocks:     make(map[string]*sync.Mutex),
		path:          path,
		maxHistory:    maxHistory,
		logger:        logger,
	}
}

// Begin acquires the turn lock for a conversation and returns the
// release function. Turns for the same conversation id run strictly one
// at a time; a double-send waits for the first turn to finish rather
// than interleaving appends.
func (s *Store) Begin(conversationID string) func() {
	s.mu.Lock()
	lock, ok := s.turnLocks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.turnLocks[conversationID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns a copy of the conversation's messages, or an empty slice
// if the conversation does not exist yet.
func (s *Store) Get(conversationID string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return []llm.Message{}
	}

	msgs := make([]llm.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return msgs
}

// Append adds messages at the tail of a conversation, creating it if
// needed. Insertion order is conversation order; entries are never
// reordered or rewritten.
func (s *Store) Append(conversationID string, msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = &Conversation{
			ID:        conversationID,
			CreatedAt: time.Now(),
		}
		s.conversations[conversationID] = conv
	}

	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = time.Now()
}

// Trim drops the oldest messages beyond the configured window, keeping
// the most recent entries in their original order.
func (s *Store) Trim(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	if len(conv.Messages) > s.maxHistory {
		conv.Messages = conv.Messages[len(conv.Messages)-s.maxHistory:]
	}
}

// Len returns the number of messages in a conversation.
func (s *Store) Len(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return 0
	}
	return len(conv.Messages)
}

// persistedState is the on-disk shape: the whole conversation map plus a
// format version for future migrations.
type persistedState struct {
	Version       int                      `json:"version"`
	SavedAt       time.Time                `json:"saved_at"`
	Conversations map[string]*Conversation `json:"conversations"`
}

// Persist serializes the entire conversation map to the backing file,
// overwriting prior state. The write goes through a temp file and
// rename so a crash mid-write cannot corrupt the previous snapshot.
func (s *Store) Persist() error {
	s.mu.Lock()
	state := persistedState{
		Version:       1,
		SavedAt:       time.Now(),
		Conversations: make(map[string]*Conversation, len(s.conversations)),
	}
	for id, conv := range s.conversations {
		msgs := make([]llm.Message, len(conv.Messages))
		copy(msgs, conv.Messages)
		state.Conversations[id] = &Conversation{
			ID:        conv.ID,
			Messages:  msgs,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		}
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.logger.Debug("conversations persisted",
		"path", s.path,
		"conversations", len(state.Conversations),
		"bytes", len(data),
	)
	return nil
}

// Load replaces the in-memory map from the backing file. A missing file
// is not an error; the store simply starts empty. Called once at
// process start.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	s.conversations = state.Conversations
	if s.conversations == nil {
		s.conversations = make(map[string]*Conversation)
	}
	s.mu.Unlock()

	s.logger.Info("conversations loaded",
		"path", s.path,
		"conversations", len(state.Conversations),
	)
	return nil
}

// Stats returns store statistics for diagnostics.
func (s *Store) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	totalMessages := 0
	for _, conv := range s.conversations {
		totalMessages += len(conv.Messages)
	}

	return map[string]any{
		"conversations": len(s.conversations),
		"messages":      totalMessages,
		"max_history":   s.maxHistory,
	}
}
