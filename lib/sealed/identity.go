// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"filippo.io/age"

	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/secret"
)

// identityPrefix starts the secret key line of an identity file.
const identityPrefix = "AGE-SECRET-KEY-1"

// Keypair holds a freshly generated age x25519 keypair. The identity
// lives in locked memory; the recipient is a plain string, safe to
// publish and to record in tool configuration.
type Keypair struct {
	Identity  *secret.Buffer
	Recipient string
}

// Close releases the identity memory. Idempotent.
func (k *Keypair) Close() error {
	if k.Identity != nil {
		return k.Identity.Close()
	}
	return nil
}

// GenerateKeypair creates a new age x25519 keypair for sealing. The
// caller must Close the returned Keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	// identity.String() is an immutable heap string we cannot scrub;
	// the locked buffer becomes the durable copy and the string is
	// left for the collector, same as every age caller.
	buffer, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting generated identity: %w", err)
	}
	return &Keypair{
		Identity:  buffer,
		Recipient: identity.Recipient().String(),
	}, nil
}

// ValidateRecipient checks that a string is a well-formed age x25519
// public key. Used on configured recipients before any sealing starts.
func ValidateRecipient(recipientKey string) error {
	if _, err := age.ParseX25519Recipient(recipientKey); err != nil {
		return errkind.Configf("invalid age recipient %q: %v", recipientKey, err)
	}
	return nil
}

// RecipientOf derives the public recipient key of an identity, letting
// a user recover the value for sealed.recipients from the identity
// file alone. The buffer is borrowed, not closed.
func RecipientOf(identity *secret.Buffer) (string, error) {
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return "", errkind.Configf("invalid age identity: %v", err)
	}
	return parsed.Recipient().String(), nil
}

// LoadIdentity reads an age identity file in the age-keygen layout:
// comment lines starting with "#", blank lines, and one
// AGE-SECRET-KEY-1 line. The returned buffer holds only the key line
// and must be closed by the caller; every heap copy of the file
// content is zeroed before returning.
func LoadIdentity(path string) (*secret.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, err, "reading identity file")
	}

	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if !bytes.HasPrefix(line, []byte(identityPrefix)) {
			continue
		}
		// NewFromBytes zeros the line, which aliases data; the rest of
		// data is scrubbed below.
		buffer, err := secret.NewFromBytes(line)
		secret.Zero(data)
		if err != nil {
			return nil, err
		}
		return buffer, nil
	}

	secret.Zero(data)
	return nil, errkind.Configf("no age identity found in %s", path)
}

// WriteIdentityFile writes a generated keypair as an identity file in
// the age-keygen layout, mode 0600, refusing to overwrite an existing
// file. The recipient comment lets users recover their public key
// without unsealing anything.
func WriteIdentityFile(path string, keypair *Keypair, created time.Time) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return errkind.Configf("identity file %s already exists; refusing to overwrite", path)
		}
		return errkind.Wrap(errkind.IO, err, "creating identity file")
	}

	written := false
	defer func() {
		file.Close()
		if !written {
			os.Remove(path)
		}
	}()

	if _, err := fmt.Fprintf(file, "# created: %s\n# public key: %s\n",
		created.Format(time.RFC3339), keypair.Recipient); err != nil {
		return errkind.Wrap(errkind.IO, err, "writing identity file")
	}
	if _, err := file.Write(keypair.Identity.Bytes()); err != nil {
		return errkind.Wrap(errkind.IO, err, "writing identity file")
	}
	if _, err := file.Write([]byte("\n")); err != nil {
		return errkind.Wrap(errkind.IO, err, "writing identity file")
	}
	if err := file.Sync(); err != nil {
		return errkind.Wrap(errkind.IO, err, "writing identity file")
	}
	written = true
	return nil
}
