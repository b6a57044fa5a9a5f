// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"time"

	uuid "github.com/hashicorp/go-uuid"

	"github.com/opentofu/docker-credential-secretsmanager/version"
)

// Locker is implemented by secret stores that can serialize read-modify-write
// cycles across processes.
type Locker interface {
	// Lock acquires the lock described by info, returning the lock ID that
	// must be passed to Unlock.
	Lock(ctx context.Context, info *LockInfo) (string, error)
	Unlock(ctx context.Context, id string) error
}

// LockInfo describes the holder of a lock. It is stored alongside the lock
// so that a failed attempt can report who is holding it.
type LockInfo struct {
	// Unique ID for the lock. NewLockInfo provides a random ID, but this may
	// be overridden by the lock implementation.
	ID string

	// Operation is the credential helper command that took the lock.
	Operation string

	// Path is the lock's location in the locking service.
	Path string

	// Who is "user@hostname" of the process holding the lock.
	Who string

	// Version of the helper that took the lock.
	Version string

	Created time.Time
}

// NewLockInfo creates a LockInfo with the ID, Who, Version and Created
// fields populated.
func NewLockInfo(operation string) *LockInfo {
	id, err := uuid.GenerateUUID()
	if err != nil {
		panic(err)
	}

	info := &LockInfo{
		ID:        id,
		Operation: operation,
		Who:       processOwner(),
		Version:   version.String(),
		Created:   time.Now().UTC(),
	}
	return info
}

func processOwner() string {
	userName := ""
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("%s@%s", userName, host)
}

// Marshal returns a JSON representation of the lock info.
func (l *LockInfo) Marshal() []byte {
	js, err := json.Marshal(l)
	if err != nil {
		panic(err)
	}
	return js
}

// String returns a one-line description of the lock holder.
func (l *LockInfo) String() string {
	return fmt.Sprintf("lock %s held by %s for %q since %s (version %s)",
		l.ID, l.Who, l.Operation, l.Created.Format(time.RFC3339), l.Version)
}

// LockError is returned when a lock could not be acquired or released.
type LockError struct {
	// Info describes the current holder, when known.
	Info *LockInfo
	Err  error
}

func (e *LockError) Error() string {
	msg := "failed to lock credentials secret"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Info != nil {
		msg += "; " + e.Info.String()
	}
	return msg
}

func (e *LockError) Unwrap() error {
	return e.Err
}
