// package models defines the data model for the license entry client
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// KVStore is a durable string slot store keyed by name.
//
// Get reports ok=false (and a nil error) when the key has never been written.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TokenPair holds the two credentials issued by the authentication endpoint.
type TokenPair struct {
	PrimaryToken   string `json:"primaryToken"`
	SecondaryToken string `json:"secondaryToken"`
}

// Valid reports whether both tokens are present.
func (p TokenPair) Valid() bool {
	return p.PrimaryToken != "" && p.SecondaryToken != ""
}

// CachedTokenEntry is the value persisted in the token slot.
type CachedTokenEntry struct {
	Tokens     TokenPair
	AcquiredAt time.Time
}

type cachedTokenEntryJSON struct {
	Tokens     TokenPair `json:"tokens"`
	AcquiredAt int64     `json:"acquiredAt"` // epoch milliseconds
}

// NewCachedTokenEntry stamps tokens with acquiredAt, truncated to millisecond precision so the entry survives a storage round-trip unchanged.
func NewCachedTokenEntry(tokens TokenPair, acquiredAt time.Time) CachedTokenEntry {
	return CachedTokenEntry{Tokens: tokens, AcquiredAt: time.UnixMilli(acquiredAt.UnixMilli())}
}

// Age returns how long ago the entry was acquired.
func (e CachedTokenEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.AcquiredAt)
}

// Fresh reports whether the entry is strictly younger than ttl. An entry exactly ttl old is expired.
func (e CachedTokenEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return e.Tokens.Valid() && e.Age(now) < ttl
}

// MarshalJSON encodes the entry as {"tokens": {...}, "acquiredAt": <epoch-ms>}.
func (e CachedTokenEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(cachedTokenEntryJSON{Tokens: e.Tokens, AcquiredAt: e.AcquiredAt.UnixMilli()})
}

// UnmarshalJSON implements [json.Unmarshaler]
func (e *CachedTokenEntry) UnmarshalJSON(b []byte) error {
	var raw cachedTokenEntryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if !raw.Tokens.Valid() {
		return fmt.Errorf("cached entry is missing a token")
	}
	e.Tokens = raw.Tokens
	e.AcquiredAt = time.UnixMilli(raw.AcquiredAt)
	return nil
}

// Steps with special meaning in a [ProgressEvent]. Every other step is an intermediate update.
const (
	StepComplete = "complete"
	StepError    = "error"
)

// ProgressEvent is one decoded frame of the create-entry progress stream.
type ProgressEvent struct {
	Progress float64 `json:"progress"`         // 0-100
	Step     string  `json:"step"`             // Open vocabulary; see StepComplete, StepError
	Message  string  `json:"message"`          // Human-readable status
	UserID   string  `json:"userId,omitempty"` // Set on StepComplete only
}

// Terminal reports whether the event ends the interaction.
func (e ProgressEvent) Terminal() bool {
	return e.Step == StepComplete || e.Step == StepError
}

// Failed reports whether the backend reported an application-level failure.
func (e ProgressEvent) Failed() bool {
	return e.Step == StepError
}
