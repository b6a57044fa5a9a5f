// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package credstore

import (
	"context"
)

// SecretStore is the remote service holding the secret value. It is
// implemented for AWS Secrets Manager by package secretsmanager, and in
// memory by [MemoryStore].
type SecretStore interface {
	// FetchSecret returns the current value of the given secret. A secret
	// that does not exist is not an error: the result then has Exists set
	// to false.
	FetchSecret(ctx context.Context, secretID string) (SecretValue, error)

	// PutSecret replaces the whole value of the given secret.
	PutSecret(ctx context.Context, secretID string, req PutRequest) error
}

// SecretValue is the result of fetching a secret.
type SecretValue struct {
	Data   string
	Exists bool

	// VersionID identifies the fetched value, if the store supports
	// versioning. It is passed back as PutRequest.ExpectedVersion when
	// version checking is enabled.
	VersionID string
}

// PutRequest describes a single write of a secret value.
type PutRequest struct {
	Value string

	// IdempotencyToken is unique per logical write, so that the store can
	// recognize a retried submission of the same write.
	IdempotencyToken string

	// CheckVersion asks the store to fail with a ConflictError unless the
	// secret's current version is ExpectedVersion, the version the new
	// value was derived from. An empty ExpectedVersion together with Create
	// means the secret must not exist yet.
	CheckVersion    bool
	ExpectedVersion string

	// Create is set when the secret did not exist at the time it was read.
	Create bool
}
