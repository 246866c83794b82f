// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/strata-config/strata/lib/errkind"
)

// OID is a 32-byte BLAKE3 digest identifying one immutable object.
// Blob, tree, and commit identifiers are all this size.
type OID [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures that the same input bytes produce different
// identifiers in different contexts, so a blob whose content happens
// to equal an encoded tree can never collide with that tree.
type domainKey [32]byte

// Domain separation keys. These are fixed constants; changing them
// invalidates every object already on disk. The byte values are the
// ASCII encoding of the domain name, zero-padded to 32 bytes, which
// keeps the keys inspectable in hex dumps.
var (
	blobDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 'o', 'b', 'j', 'e', 'c', 't', '.',
		'b', 'l', 'o', 'b', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	treeDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 'o', 'b', 'j', 'e', 'c', 't', '.',
		't', 'r', 'e', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	commitDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 'o', 'b', 'j', 'e', 'c', 't', '.',
		'c', 'o', 'm', 'm', 'i', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashBlob computes the blob-domain identifier of raw file content.
// Blob identifiers are always computed on uncompressed bytes so
// deduplication works across compression algorithm changes.
func HashBlob(content []byte) OID {
	return keyedHash(blobDomainKey, content)
}

// hashTree computes the tree-domain identifier of a canonically
// encoded tree body.
func hashTree(encoded []byte) OID {
	return keyedHash(treeDomainKey, encoded)
}

// hashCommit computes the commit-domain identifier of a canonically
// encoded commit body.
func hashCommit(encoded []byte) OID {
	return keyedHash(commitDomainKey, encoded)
}

// IsZero reports whether the identifier is the all-zero value, which
// is never a valid object identifier.
func (oid OID) IsZero() bool {
	return oid == OID{}
}

// FormatOID returns the 64-character hex representation. This is the
// canonical format for refs on disk, logs, and CLI output.
func FormatOID(oid OID) string {
	return hex.EncodeToString(oid[:])
}

// ShortOID returns the first 12 hex characters, the abbreviated form
// shown in history listings.
func ShortOID(oid OID) string {
	return hex.EncodeToString(oid[:6])
}

// ParseOID parses a 64-character hex string into an OID.
func ParseOID(hexString string) (OID, error) {
	var oid OID
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return oid, errkind.Parsef("parsing object id: %v", err)
	}
	if len(decoded) != 32 {
		return oid, errkind.Parsef("object id is %d bytes, want 32", len(decoded))
	}
	copy(oid[:], decoded)
	return oid, nil
}

// keyedHash computes the BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) OID {
	// NewKeyed requires exactly 32 bytes, which domainKey guarantees.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("objstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var oid OID
	copy(oid[:], hasher.Sum(nil))
	return oid
}
