// Package sessioncache implements the gateway's best-effort session cache:
// two namespaces (previous_response_id, thought_signature map), sha256-keyed,
// 24h retention, 100-entry LRU cap on thought-signature maps, with a
// gronx-driven periodic expiry sweep.
package sessioncache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// Namespace disambiguates the two cache uses sharing one key space.
type Namespace string

const (
	NamespacePreviousResponseID Namespace = "previous_response_id"
	NamespaceThoughtSignature   Namespace = "thought_signature"
)

const (
	retention     = 24 * time.Hour
	thoughtSigCap = 100
)

// Cache is the external collaborator interface:
// {get(key)->opt<bytes>, put(key,bytes,ttl)}. Implementations must treat
// any I/O error as a miss rather than propagating it.
type Cache interface {
	Get(ctx context.Context, sessionKey string, ns Namespace) ([]byte, bool)
	Put(ctx context.Context, sessionKey string, ns Namespace, value []byte) error

	// GetThoughtSignature and PutThoughtSignature manage the per-call_id
	// thought-signature map within a session, bounded to thoughtSigCap
	// entries and LRU-evicted by updatedAt.
	GetThoughtSignature(ctx context.Context, sessionKey, callID string) (string, bool)
	PutThoughtSignature(ctx context.Context, sessionKey, callID, signature string) error
}

// StorageKey derives the sha256("<prefix>_<sessionKey>") cache key: the
// same sessionKey always maps to the same storage key.
func StorageKey(ns Namespace, sessionKey string) string {
	sum := sha256.Sum256([]byte(string(ns) + "_" + sessionKey))
	return hex.EncodeToString(sum[:])
}

// DeriveSessionKey implements the header → user field → hash(model +
// first user text) precedence the gateway uses to name a conversation.
func DeriveSessionKey(headerSessionID, userField, model, firstUserText string) string {
	if headerSessionID != "" {
		return headerSessionID
	}
	if userField != "" {
		return userField
	}
	sum := sha256.Sum256([]byte(model + "\x00" + firstUserText))
	return hex.EncodeToString(sum[:])
}

// entry is one stored value with its write/expiry bookkeeping.
type entry struct {
	value     []byte
	updatedAt time.Time
	expiresAt time.Time
}

// Memory is an in-process Cache guarded by a mutex; the default backend
// and the one used in tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	// thoughtSigOrder tracks sessionKey -> ordered call_ids for the
	// 100-entry LRU cap on thought-signature maps.
	thoughtSigOrder map[string][]string
}

// NewMemory constructs an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries:         map[string]entry{},
		thoughtSigOrder: map[string][]string{},
	}
}

func (m *Memory) Get(ctx context.Context, sessionKey string, ns Namespace) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[StorageKey(ns, sessionKey)]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Put(ctx context.Context, sessionKey string, ns Namespace, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.entries[StorageKey(ns, sessionKey)] = entry{value: value, updatedAt: now, expiresAt: now.Add(retention)}
	return nil
}

// PutThoughtSignature records one call_id's thought signature for a
// session, evicting lowest-updatedAt entries until the session's map is
// back within thoughtSigCap entries.
func (m *Memory) PutThoughtSignature(ctx context.Context, sessionKey, callID, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey + "\x00" + callID
	now := time.Now()
	m.entries[StorageKey(NamespaceThoughtSignature, key)] = entry{value: []byte(signature), updatedAt: now, expiresAt: now.Add(retention)}

	order := m.thoughtSigOrder[sessionKey]
	order = append(removeString(order, callID), callID)
	m.thoughtSigOrder[sessionKey] = order

	for len(m.thoughtSigOrder[sessionKey]) > thoughtSigCap {
		before := len(m.thoughtSigOrder[sessionKey])
		m.evictOldestThoughtSig(sessionKey)
		if len(m.thoughtSigOrder[sessionKey]) == before {
			break
		}
	}
	return nil
}

// GetThoughtSignature returns the most recently recorded signature for
// callID within sessionKey, or false if absent or expired.
func (m *Memory) GetThoughtSignature(ctx context.Context, sessionKey, callID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey + "\x00" + callID
	e, ok := m.entries[StorageKey(NamespaceThoughtSignature, key)]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return string(e.value), true
}

func (m *Memory) evictOldestThoughtSig(sessionKey string) {
	order := m.thoughtSigOrder[sessionKey]
	if len(order) == 0 {
		return
	}
	type kv struct {
		callID    string
		updatedAt time.Time
	}
	var candidates []kv
	for _, id := range order {
		key := StorageKey(NamespaceThoughtSignature, sessionKey+"\x00"+id)
		if e, ok := m.entries[key]; ok {
			candidates = append(candidates, kv{callID: id, updatedAt: e.updatedAt})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].updatedAt.Before(candidates[j].updatedAt) })
	if len(candidates) == 0 {
		return
	}
	oldest := candidates[0].callID
	delete(m.entries, StorageKey(NamespaceThoughtSignature, sessionKey+"\x00"+oldest))
	m.thoughtSigOrder[sessionKey] = removeString(order, oldest)
}

func removeString(s []string, v string) []string {
	out := s[:0:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Sweep removes every entry past its retention window. Called periodically
// by a gronx-scheduled sweep (see Sweeper) or directly by tests.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}
