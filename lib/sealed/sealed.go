// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts secret configuration values at rest. It
// wraps filippo.io/age for the operations strata needs: seal a staged
// file's content to one or more recipients before it enters the object
// store, and unseal it again during apply or show.
//
// Sealed content is the raw binary age v1 format, stored as an
// ordinary blob; [IsSealed] recognizes it by the format header.
// Identities (private keys) and unsealed plaintext travel in
// [secret.Buffer] values backed by locked memory outside the Go heap.
//
// [Sealer] and [Unsealer] parse key material once and are then reused
// across the many files of a stage or apply pass. Identity files use
// the age-keygen layout; see [LoadIdentity] and [WriteIdentityFile].
package sealed

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/secret"
)

// header is the first bytes of every age v1 ciphertext.
const header = "age-encryption.org/v1"

// IsSealed reports whether content is age-encrypted, by format header.
// Callers use it to route blobs between the unsealing path and plain
// content handling.
func IsSealed(content []byte) bool {
	return bytes.HasPrefix(content, []byte(header))
}

// Sealer encrypts content to a fixed set of recipients.
type Sealer struct {
	recipients []age.Recipient
	keys       []string
}

// NewSealer parses the recipient public keys (age1... format) once for
// reuse across files. At least one recipient is required.
func NewSealer(recipientKeys []string) (*Sealer, error) {
	if len(recipientKeys) == 0 {
		return nil, errkind.Configf("sealing requires at least one recipient")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, errkind.Configf("invalid age recipient %q: %v", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return &Sealer{recipients: recipients, keys: recipientKeys}, nil
}

// Recipients returns the recipient public keys this Sealer encrypts
// to, for status output.
func (s *Sealer) Recipients() []string {
	return s.keys
}

// Seal encrypts plaintext to every recipient and returns the binary
// age ciphertext. Empty plaintext is refused: a sealed empty secret is
// almost always a staging mistake.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, errkind.Configf("refusing to seal empty content")
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, s.recipients...)
	if err != nil {
		return nil, fmt.Errorf("starting age encryption: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealing content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing sealed content: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Unsealer decrypts sealed content with a fixed identity.
type Unsealer struct {
	identity *age.X25519Identity
}

// NewUnsealer parses the identity once for reuse across files. The
// buffer is borrowed, not closed.
func NewUnsealer(identity *secret.Buffer) (*Unsealer, error) {
	// age's parser wants a string; the heap copy is brief and the
	// locked buffer remains the durable home of the key.
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return nil, errkind.Configf("invalid age identity: %v", err)
	}
	return &Unsealer{identity: parsed}, nil
}

// Unseal decrypts binary age ciphertext and returns the plaintext in
// locked memory. The caller must Close the returned buffer. Content
// reaches this point already hash-verified by the object store, so a
// failure here means the identity does not match the recipients the
// content was sealed to.
func (u *Unsealer) Unseal(ciphertext []byte) (*secret.Buffer, error) {
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), u.identity)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, err, "unsealing content")
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, err, "unsealing content")
	}
	if len(plaintext) == 0 {
		return nil, errkind.Configf("sealed content is empty")
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting unsealed content: %w", err)
	}
	return buffer, nil
}
