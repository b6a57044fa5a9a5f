// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package credstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemoryStore is a SecretStore and Locker that keeps secrets in memory.
// It is used in tests in place of a real secret management service.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]*memorySecret
	locks   map[string]*LockInfo

	// Puts counts the writes that changed a secret, for tests.
	Puts int
}

type memorySecret struct {
	value   string
	version int
	tokens  map[string]struct{}
}

var (
	_ SecretStore = (*MemoryStore)(nil)
	_ Locker      = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		secrets: map[string]*memorySecret{},
		locks:   map[string]*LockInfo{},
	}
}

// SetSecret overwrites a secret directly, as another client might.
func (s *MemoryStore) SetSecret(secretID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(secretID, value)
}

// Secret returns the raw current value of a secret.
func (s *MemoryStore) Secret(secretID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[secretID]
	if !ok {
		return "", false
	}
	return sec.value, true
}

func (s *MemoryStore) set(secretID, value string) *memorySecret {
	sec, ok := s.secrets[secretID]
	if !ok {
		sec = &memorySecret{tokens: map[string]struct{}{}}
		s.secrets[secretID] = sec
	}
	sec.value = value
	sec.version++
	return sec
}

func (s *MemoryStore) FetchSecret(_ context.Context, secretID string) (SecretValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.secrets[secretID]
	if !ok {
		return SecretValue{}, nil
	}
	return SecretValue{
		Data:      sec.value,
		Exists:    true,
		VersionID: strconv.Itoa(sec.version),
	}, nil
}

func (s *MemoryStore) PutSecret(_ context.Context, secretID string, req PutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, exists := s.secrets[secretID]
	if exists {
		if _, seen := sec.tokens[req.IdempotencyToken]; seen {
			// a retry of a write we already applied
			return nil
		}
	}
	if req.CheckVersion {
		current := ""
		if exists {
			current = strconv.Itoa(sec.version)
		}
		if current != req.ExpectedVersion {
			return &ConflictError{
				SecretID:        secretID,
				ExpectedVersion: req.ExpectedVersion,
				CurrentVersion:  current,
			}
		}
	}

	sec = s.set(secretID, req.Value)
	if req.IdempotencyToken != "" {
		sec.tokens[req.IdempotencyToken] = struct{}{}
	}
	s.Puts++
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, info *LockInfo) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.locks[info.Path]; ok {
		return "", &LockError{
			Info: existing,
			Err:  fmt.Errorf("already locked"),
		}
	}
	s.locks[info.Path] = info
	return info.ID, nil
}

func (s *MemoryStore) Unlock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, info := range s.locks {
		if info.ID == id {
			delete(s.locks, path)
			return nil
		}
	}
	return &LockError{Err: fmt.Errorf("no lock with id %q", id)}
}
