// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package secretmap contains the encoding used to keep the credentials for
// any number of container registries inside a single secret value.
//
// The secret value is a JSON object whose keys are registry server URLs and
// whose values are strings that each contain a separately-encoded JSON
// object with the fields "Username" and "Secret". The second level of
// encoding means that a single malformed entry cannot prevent the rest of
// the map from being decoded, so callers can decide per operation whether a
// malformed entry is an error.
package secretmap

import (
	"encoding/json"
	"fmt"
)

// SecretMap is the decoded form of the whole secret value, mapping registry
// server URLs to their serialized credential records.
type SecretMap map[string]string

// CredentialRecord is the username and secret stored for a single registry.
//
// The JSON field names are part of the Docker credential helper protocol
// and must not change.
type CredentialRecord struct {
	Username string `json:"Username"`
	Secret   string `json:"Secret"`
}

// DecodeMap parses the raw text of a secret value.
func DecodeMap(raw string) (SecretMap, error) {
	var m SecretMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, &FormatError{Subject: "secret value", Err: err}
	}
	if m == nil {
		// "null" is valid JSON but not a valid secret map
		return nil, &FormatError{Subject: "secret value", Err: fmt.Errorf("expected a JSON object")}
	}
	return m, nil
}

// EncodeMap produces the text to store as the secret value. Keys are always
// written in lexical order so that storing the same map twice produces
// identical text.
func EncodeMap(m SecretMap) (string, error) {
	if m == nil {
		m = SecretMap{}
	}
	raw, err := json.Marshal(map[string]string(m))
	if err != nil {
		return "", fmt.Errorf("failed to encode secret map: %w", err)
	}
	return string(raw), nil
}

// DecodeRecord parses a single entry of a [SecretMap]. Both the "Username"
// and "Secret" fields must be present, though either may be empty.
func DecodeRecord(entry string) (CredentialRecord, error) {
	vals, err := DecodeFields("credential record", []byte(entry), "Username", "Secret")
	if err != nil {
		return CredentialRecord{}, err
	}
	return CredentialRecord{
		Username: vals[0],
		Secret:   vals[1],
	}, nil
}

// DecodeFields parses data as a single JSON object and returns the string
// value of each of the named fields, in the order given. Field names must
// match exactly, unlike encoding/json's struct decoding which folds case.
// A field that is absent or null is reported as missing. Other fields are
// ignored. Errors are *FormatError values describing subject.
func DecodeFields(subject string, data []byte, names ...string) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &FormatError{Subject: subject, Err: err}
	}
	vals := make([]string, len(names))
	for i, name := range names {
		raw, ok := obj[name]
		if !ok || string(raw) == "null" {
			return nil, &FormatError{Subject: subject, Err: fmt.Errorf("missing field %q", name)}
		}
		if err := json.Unmarshal(raw, &vals[i]); err != nil {
			return nil, &FormatError{Subject: subject, Err: err}
		}
	}
	return vals, nil
}

// EncodeRecord produces the text stored as a single entry of a [SecretMap].
func EncodeRecord(r CredentialRecord) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode credential record: %w", err)
	}
	return string(raw), nil
}

// Lookup decodes the entry for the given server URL. The boolean result is
// false if there is no entry at all, in which case the error is always nil.
func (m SecretMap) Lookup(serverURL string) (CredentialRecord, bool, error) {
	entry, ok := m[serverURL]
	if !ok {
		return CredentialRecord{}, false, nil
	}
	rec, err := DecodeRecord(entry)
	return rec, true, err
}

// Usernames returns the username for each entry that decodes as a valid
// credential record. Entries that don't decode are skipped without error,
// because the map may contain entries written by other tools.
func (m SecretMap) Usernames() map[string]string {
	ret := make(map[string]string, len(m))
	for serverURL, entry := range m {
		rec, err := DecodeRecord(entry)
		if err != nil {
			continue
		}
		ret[serverURL] = rec.Username
	}
	return ret
}
