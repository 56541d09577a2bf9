// Package session implements per-session conversation history: bounded
// sliding-window storage over the KV Cache Substrate, with enriched-query
// composition for downstream agents.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"shopfront/internal/cache"
)

const (
	// maxPairs is the sliding-window cap: 10 user/assistant pairs (20 entries).
	maxPairs    = 10
	maxMessages = maxPairs * 2

	// maxStoredContentBytes bounds a single stored message's content so
	// session history doesn't grow unboundedly from large agent payloads.
	// The full response is still returned to the HTTP caller for that turn;
	// only the persisted copy is truncated.
	maxStoredContentBytes = 4000

	keyPrefix = "session:"
)

// ChatMessage is one turn in a session's history.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Memory is the Session Memory collaborator.
type Memory struct {
	cache cache.Cache
	ttl   time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New constructs Session Memory over the given cache handle (the "session:"
// namespace) with the configured TTL.
func New(c cache.Cache, ttl time.Duration) *Memory {
	return &Memory{cache: c, ttl: ttl, locks: make(map[string]*sync.Mutex)}
}

// CreateSession allocates a fresh 128-bit session identifier. The session
// itself is created lazily on first append.
func (m *Memory) CreateSession() string {
	return uuid.NewString()
}

// CacheBackend names which Cache implementation backs this session's
// namespace ("redis" or "memory"), surfaced by the health endpoint.
func (m *Memory) CacheBackend() string {
	return m.cache.Backend()
}

// GetHistory returns the stored messages for a session, or an empty slice if
// none exist or the stored value is corrupt.
func (m *Memory) GetHistory(ctx context.Context, sessionID string) []ChatMessage {
	raw, ok := m.cache.Get(ctx, sessionID)
	if !ok {
		return []ChatMessage{}
	}
	var msgs []ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("session: corrupt history, treating as empty")
		return []ChatMessage{}
	}
	return msgs
}

// AppendTurn appends a user/assistant pair, trims from the front to the
// sliding-window cap, and refreshes the TTL. The read-modify-write is
// serialized per session_id to avoid dropping concurrent appends outright;
// across processes sharing a remote backend without coordination, last
// writer still wins (see design notes).
func (m *Memory) AppendTurn(ctx context.Context, sessionID, userText, assistantText string) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().Unix()
	history := m.GetHistory(ctx, sessionID)
	history = append(history,
		ChatMessage{Role: "user", Content: truncate(userText), Timestamp: now},
		ChatMessage{Role: "assistant", Content: truncate(assistantText), Timestamp: now},
	)
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	raw, err := json.Marshal(history)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("session: failed to marshal history")
		return
	}
	m.cache.Set(ctx, sessionID, raw, m.ttl)
}

// Clear removes a session's history. It returns whether the session
// previously existed; the operation is idempotent either way.
func (m *Memory) Clear(ctx context.Context, sessionID string) bool {
	_, existed := m.cache.Get(ctx, sessionID)
	m.cache.Delete(ctx, sessionID)
	return existed
}

// BuildEnrichedQuery prefixes the current query with conversation history,
// or returns it verbatim when there is no history.
func BuildEnrichedQuery(currentQuery string, history []ChatMessage) string {
	if len(history) == 0 {
		return currentQuery
	}
	var b strings.Builder
	b.WriteString("[CONVERSATION HISTORY]\n")
	for _, h := range history {
		fmt.Fprintf(&b, "%s: %s\n", h.Role, h.Content)
	}
	b.WriteString("[CURRENT QUERY]\n")
	fmt.Fprintf(&b, "user: %s", currentQuery)
	return b.String()
}

func (m *Memory) lockFor(sessionID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}

func truncate(s string) string {
	if len(s) <= maxStoredContentBytes {
		return s
	}
	cut := maxStoredContentBytes
	for cut > 0 && !isRuneBoundary(s, cut) {
		cut--
	}
	return s[:cut]
}

// isRuneBoundary reports whether cutting s at byte offset i keeps every rune
// whole: true when the byte at i starts a new rune (is not a continuation).
func isRuneBoundary(s string, i int) bool {
	return i == 0 || i >= len(s) || s[i]&0xC0 != 0x80
}
