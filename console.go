package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

var errInvalidParams = errors.New("params must be a JSON array or a string")

// coerceParam turns one console token into a typed value when it is valid
// JSON (numbers, booleans, quoted strings, objects, arrays); anything else
// is passed through as a string.
func coerceParam(tok string) interface{} {
	if tok == "" {
		return tok
	}
	var v interface{}
	if err := fastJSONUnmarshal([]byte(tok), &v); err != nil {
		return tok
	}
	return v
}

func coerceParams(tokens []string) []interface{} {
	out := make([]interface{}, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, coerceParam(tok))
	}
	return out
}

// parseConsoleCommand splits a console line into the method and its
// parameters.
func parseConsoleCommand(line string) (string, []interface{}) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], coerceParams(fields[1:])
}

// parseExecuteParams decodes the params member of an execute-rpc body.
func parseExecuteParams(raw json.RawMessage) ([]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []interface{}{}, nil
	}
	switch raw[0] {
	case '[':
		var params []interface{}
		if err := fastJSONUnmarshal(raw, &params); err != nil {
			return nil, errInvalidParams
		}
		return params, nil
	case '"':
		var s string
		if err := fastJSONUnmarshal(raw, &s); err != nil {
			return nil, errInvalidParams
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			var params []interface{}
			if err := fastJSONUnmarshal([]byte(s), &params); err == nil {
				return params, nil
			}
		}
		return coerceParams(strings.Fields(s)), nil
	default:
		return nil, errInvalidParams
	}
}

// commandHistory is the console's recall list: newest first, capped, with a
// cursor for arrow-key navigation. -1 means "not browsing".
type commandHistory struct {
	items []string
	index int
}

func newCommandHistory(items []string) *commandHistory {
	if len(items) > consoleHistoryLimit {
		items = items[:consoleHistoryLimit]
	}
	return &commandHistory{items: append([]string(nil), items...), index: -1}
}

func (h *commandHistory) Add(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}
	h.items = append([]string{cmd}, h.items...)
	if len(h.items) > consoleHistoryLimit {
		h.items = h.items[:consoleHistoryLimit]
	}
	h.index = -1
}

func (h *commandHistory) Recent(n int) []string {
	if n > len(h.items) {
		n = len(h.items)
	}
	return append([]string(nil), h.items[:n]...)
}

func (h *commandHistory) Len() int { return len(h.items) }

// Navigate moves the cursor; +1 walks to older commands. It returns the
// command to place in the input and whether the input should change at all.
// Stepping past the newest entry clears the input; stepping past the oldest
// stays on it.
func (h *commandHistory) Navigate(direction int) (string, bool) {
	h.index += direction
	if h.index < 0 {
		h.index = -1
		return "", true
	}
	if h.index >= len(h.items) {
		h.index = len(h.items) - 1
	}
	if h.index < 0 {
		return "", false
	}
	return h.items[h.index], true
}

// historyStore persists each user's console history.
type historyStore struct {
	db *sql.DB
}

func newHistoryStore(db *sql.DB) *historyStore {
	return &historyStore{db: db}
}

func (s *historyStore) Load(ctx context.Context, username string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT command FROM console_history
		WHERE username = ?
		ORDER BY id DESC
		LIMIT ?
	`, username, consoleHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load console history: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var cmd string
		if err := rows.Scan(&cmd); err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, rows.Err()
}

func (s *historyStore) Append(ctx context.Context, username, cmd string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO console_history (username, command, created_at_unix) VALUES (?, ?, ?)`,
		username, cmd, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("append console history: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM console_history
		WHERE username = ? AND id NOT IN (
			SELECT id FROM console_history WHERE username = ? ORDER BY id DESC LIMIT ?
		)
	`, username, username, consoleHistoryLimit)
	if err != nil {
		return fmt.Errorf("prune console history: %w", err)
	}
	return nil
}

type consoleEntry struct {
	Command string
	Result  string
	Error   string
	At      time.Time
}

// consoleSession is one browser session's console: its transcript and the
// history cursor.
type consoleSession struct {
	mu         sync.Mutex
	history    *commandHistory
	transcript []consoleEntry
	cleared    bool
	lastUsed   time.Time
}

type consoleSnapshot struct {
	Entries []consoleEntry
	Recent  []string
	Cleared bool
}

func (c *consoleSession) record(entry consoleEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Add(entry.Command)
	c.transcript = append(c.transcript, entry)
	if over := len(c.transcript) - consoleTranscriptMax; over > 0 {
		c.transcript = append([]consoleEntry(nil), c.transcript[over:]...)
	}
}

func (c *consoleSession) clear() {
	c.mu.Lock()
	c.transcript = nil
	c.cleared = true
	c.mu.Unlock()
}

func (c *consoleSession) navigate(direction int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Navigate(direction)
}

func (c *consoleSession) snapshot() consoleSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return consoleSnapshot{
		Entries: append([]consoleEntry(nil), c.transcript...),
		Recent:  c.history.Recent(consoleHistoryVisible),
		Cleared: c.cleared,
	}
}

const maxConsoleSessions = 64

// consoleSessions maps session token IDs to consoles. The least recently
// used console is evicted when the map is full.
type consoleSessions struct {
	mu       sync.Mutex
	sessions map[string]*consoleSession
	now      func() time.Time
}

func newConsoleSessions() *consoleSessions {
	return &consoleSessions{sessions: make(map[string]*consoleSession), now: time.Now}
}

// get returns the console for id, creating it with load's history when new.
func (m *consoleSessions) get(id string, load func() []string) *consoleSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if c, ok := m.sessions[id]; ok {
		c.lastUsed = now
		return c
	}
	if len(m.sessions) >= maxConsoleSessions {
		var oldestID string
		var oldest time.Time
		for k, c := range m.sessions {
			if oldestID == "" || c.lastUsed.Before(oldest) {
				oldestID, oldest = k, c.lastUsed
			}
		}
		delete(m.sessions, oldestID)
	}
	var items []string
	if load != nil {
		items = load()
	}
	c := &consoleSession{history: newCommandHistory(items), lastUsed: now}
	m.sessions[id] = c
	return c
}

func (m *consoleSessions) drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *consoleSessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// consoleFor returns the console of the request's session, seeding its
// history from the database.
func (s *WebServer) consoleFor(r *http.Request) *consoleSession {
	claims := currentSession(r)
	id := ""
	if claims != nil {
		id = claims.ID
	}
	user := currentUser(r)
	return s.consoles.get(id, func() []string {
		items, err := s.history.Load(r.Context(), user)
		if err != nil {
			logger.Warn("load console history", "user", user, "error", err)
		}
		return items
	})
}

// runConsoleCommand executes one console line.
func (s *WebServer) runConsoleCommand(r *http.Request, line string) (consoleEntry, apiResult) {
	line = strings.TrimSpace(line)
	method, params := parseConsoleCommand(line)
	return s.executeConsole(r, line, method, params)
}

// executeConsole runs method and records the outcome in the session
// transcript and the persisted history.
func (s *WebServer) executeConsole(r *http.Request, line, method string, params []interface{}) (consoleEntry, apiResult) {
	entry := consoleEntry{Command: line, At: time.Now()}

	ctx, cancel := s.rpcContext(r.Context())
	defer cancel()
	res := s.rpc.Execute(ctx, method, params)
	if res.Success {
		entry.Result = safeStringify(res.Data)
	} else {
		entry.Error = res.errorOr("Unknown error")
	}
	s.consoleFor(r).record(entry)
	if err := s.history.Append(r.Context(), currentUser(r), line); err != nil {
		logger.Warn("store console history", "error", err)
	}
	return entry, res
}

// consoleLine renders method and params back into a console line.
func consoleLine(method string, params []interface{}) string {
	parts := []string{method}
	for _, p := range params {
		if str, ok := p.(string); ok {
			parts = append(parts, str)
			continue
		}
		data, err := fastJSONMarshal(p)
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, " ")
}
