// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package credstore implements the credential helper operations on top of a
// single remote secret that holds the credentials for all registries.
//
// Every operation fetches the whole secret, and operations that change it
// write the whole secret back. By default nothing prevents two concurrent
// writers from overwriting each other's changes; see [WithVersionCheck] and
// [WithLocker] for the available protections.
package credstore

import (
	"context"
	"fmt"
	"log"

	"github.com/docker/docker-credential-helpers/credentials"
	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/opentofu/docker-credential-secretsmanager/internal/secretmap"
)

// newIdempotencyToken is a variable so that tests can make tokens
// predictable.
var newIdempotencyToken = uuid.NewString

// Store performs credential helper operations against one secret.
type Store struct {
	backend  SecretStore
	secretID string

	versionCheck bool
	locker       Locker
}

// Option customizes a [Store].
type Option func(*Store)

// WithVersionCheck makes every write require that the secret still has the
// version that was read at the start of the operation.
func WithVersionCheck() Option {
	return func(s *Store) {
		s.versionCheck = true
	}
}

// WithLocker makes store and erase hold the given lock for the duration of
// their read-modify-write cycle.
func WithLocker(l Locker) Option {
	return func(s *Store) {
		s.locker = l
	}
}

// New returns a Store for the given secret.
func New(backend SecretStore, secretID string, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		secretID: secretID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the credentials stored for the given server URL.
func (s *Store) Get(ctx context.Context, serverURL string) (secretmap.CredentialRecord, error) {
	m, _, err := s.fetch(ctx)
	if err != nil {
		return secretmap.CredentialRecord{}, err
	}
	rec, ok, err := m.Lookup(serverURL)
	if !ok {
		return secretmap.CredentialRecord{}, &NotFoundError{ServerURL: serverURL}
	}
	if err != nil {
		return secretmap.CredentialRecord{}, fmt.Errorf("credentials for %s: %w", serverURL, err)
	}
	return rec, nil
}

// Store saves the credentials for the given server URL, replacing any that
// were already stored for it.
func (s *Store) Store(ctx context.Context, serverURL string, rec secretmap.CredentialRecord) error {
	if serverURL == "" {
		return credentials.NewErrCredentialsMissingServerURL()
	}
	entry, err := secretmap.EncodeRecord(rec)
	if err != nil {
		return err
	}
	return s.update(ctx, credentials.ActionStore, func(m secretmap.SecretMap) error {
		if _, exists := m[serverURL]; exists {
			log.Printf("[DEBUG] credstore: replacing credentials for %s", serverURL)
		}
		m[serverURL] = entry
		return nil
	})
}

// Erase removes the credentials for the given server URL. It fails if there
// is no valid credential record for that URL, so that entries written by
// other tools are never removed.
func (s *Store) Erase(ctx context.Context, serverURL string) error {
	return s.update(ctx, credentials.ActionErase, func(m secretmap.SecretMap) error {
		if _, ok, err := m.Lookup(serverURL); !ok || err != nil {
			if err != nil {
				log.Printf("[DEBUG] credstore: refusing to erase malformed entry for %s: %s", serverURL, err)
			}
			return &NotFoundError{ServerURL: serverURL}
		}
		delete(m, serverURL)
		return nil
	})
}

// List returns the username for each server URL that has valid credentials.
// Malformed entries are skipped.
func (s *Store) List(ctx context.Context) (map[string]string, error) {
	m, _, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	ret := m.Usernames()
	if skipped := len(m) - len(ret); skipped > 0 {
		log.Printf("[DEBUG] credstore: skipped %d malformed entries in secret %s", skipped, s.secretID)
	}
	return ret, nil
}

func (s *Store) fetch(ctx context.Context) (secretmap.SecretMap, SecretValue, error) {
	log.Printf("[TRACE] credstore: fetching secret %s", s.secretID)
	val, err := s.backend.FetchSecret(ctx, s.secretID)
	if err != nil {
		return nil, val, err
	}
	if !val.Exists {
		log.Printf("[DEBUG] credstore: secret %s does not exist yet; treating it as empty", s.secretID)
		return secretmap.SecretMap{}, val, nil
	}
	m, err := secretmap.DecodeMap(val.Data)
	if err != nil {
		return nil, val, fmt.Errorf("secret %s: %w", s.secretID, err)
	}
	return m, val, nil
}

// update runs one read-modify-write cycle, holding the lock if one is
// configured. Nothing is written if mutate returns an error.
func (s *Store) update(ctx context.Context, operation string, mutate func(secretmap.SecretMap) error) (err error) {
	if s.locker != nil {
		info := NewLockInfo(operation)
		lockID, lockErr := s.locker.Lock(ctx, info)
		if lockErr != nil {
			return lockErr
		}
		log.Printf("[DEBUG] credstore: acquired lock %s for %s", lockID, operation)
		defer func() {
			if unlockErr := s.locker.Unlock(ctx, lockID); unlockErr != nil {
				log.Printf("[WARN] credstore: failed to release lock %s: %s", lockID, unlockErr)
				if err != nil {
					merr := multierror.Append(err, unlockErr)
					merr.ErrorFormat = SingleLineErrors
					err = merr
				} else {
					err = unlockErr
				}
			}
		}()
	}

	m, val, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	if err := mutate(m); err != nil {
		return err
	}
	raw, err := secretmap.EncodeMap(m)
	if err != nil {
		return err
	}

	req := PutRequest{
		Value:            raw,
		IdempotencyToken: newIdempotencyToken(),
		Create:           !val.Exists,
	}
	if s.versionCheck {
		req.CheckVersion = true
		req.ExpectedVersion = val.VersionID
	}
	log.Printf("[DEBUG] credstore: writing secret %s with %d entries (token %s)", s.secretID, len(m), req.IdempotencyToken)
	return s.backend.PutSecret(ctx, s.secretID, req)
}
