package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/thunk/internal/canonical"
	"github.com/roach88/thunk/store"
)

// Entry is one reduced action.
type Entry struct {
	ID         string         `json:"id"`
	Session    string         `json:"session"`
	Seq        int64          `json:"seq"`
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload"`
}

// NewEntry builds an entry for action with its content-addressed ID.
// Payloads are taken from store.Record; other Action implementations are
// recorded by type only.
func NewEntry(session string, seq int64, action store.Action) (Entry, error) {
	payload := map[string]any{}
	switch r := action.(type) {
	case store.Record:
		if r.Payload != nil {
			payload = r.Payload
		}
	case *store.Record:
		if r != nil && r.Payload != nil {
			payload = r.Payload
		}
	}

	e := Entry{
		Session:    session,
		Seq:        seq,
		ActionType: action.ActionType(),
		Payload:    payload,
	}

	id, err := canonical.Hash(canonical.DomainEntry, map[string]any{
		"session": e.Session,
		"seq":     e.Seq,
		"type":    e.ActionType,
		"payload": e.Payload,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("entry id: %w", err)
	}
	e.ID = id
	return e, nil
}

// Append writes e. Writing the same entry twice is a no-op.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	payloadJSON, err := canonical.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("append entry: payload: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO entries (id, session, seq, action_type, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, e.Session, e.Seq, e.ActionType, string(payloadJSON))
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// Entries returns the entries of session in sequence order.
func (j *Journal) Entries(ctx context.Context, session string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, action_type, payload
		FROM entries
		WHERE session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.ID, &e.Session, &e.Seq, &e.ActionType, &payload); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Payload, err = decodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// SessionSummary describes one session in the journal.
type SessionSummary struct {
	Session string `json:"session"`
	Entries int    `json:"entries"`
	LastSeq int64  `json:"last_seq"`
}

// Sessions lists every session with its entry count, ordered by session.
func (j *Journal) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session, COUNT(*), MAX(seq)
		FROM entries
		GROUP BY session
		ORDER BY session COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.Session, &s.Entries, &s.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest sequence number written for session, or 0.
func (j *Journal) LastSeq(ctx context.Context, session string) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM entries WHERE session = ?`, session,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// decodePayload parses canonical JSON back into Go values. Numbers come back
// as int64 since canonical JSON carries no floats.
func decodePayload(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	v, err := fromJSONNumbers(m)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func fromJSONNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("decode payload: non-integer number %q", val)
		}
		return n, nil
	case []any:
		for i, elem := range val {
			conv, err := fromJSONNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[i] = conv
		}
		return val, nil
	case map[string]any:
		for k, elem := range val {
			conv, err := fromJSONNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[k] = conv
		}
		return val, nil
	default:
		return v, nil
	}
}
