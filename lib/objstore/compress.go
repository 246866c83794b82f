// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/strata-config/strata/lib/errkind"
)

// Compression identifies the algorithm used for an object payload.
// The values are stored in object envelopes; changing them breaks
// every store already on disk.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed. Used for
	// already-compressed content (images, archives) where compression
	// adds CPU cost without reducing size.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression. Fast default for
	// binary payloads with modest ratios.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level. Best ratios for
	// the text and structured documents that dominate a config store.
	CompressionZstd Compression = 2
)

// String returns the name used in configuration files and CLI output.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name from configuration.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, errkind.Configf("unknown compression %q (want none, lz4, or zstd)", name)
	}
}

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("objstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("objstore: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible reports that compressed output would not be
// smaller than the input. Callers fall back to CompressionNone.
var errIncompressible = errors.New("data is incompressible")

// compress compresses data with the requested algorithm. When the
// output would not shrink, it returns the original bytes tagged
// CompressionNone instead.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(data) == 0 {
		return data, CompressionNone, nil
	}

	var compressed []byte
	var err error
	switch c {
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZstd:
		compressed, err = compressZstd(data)
	default:
		return nil, 0, errkind.ObjectStoref("unsupported compression tag %d", c)
	}
	if err != nil {
		if errors.Is(err, errIncompressible) {
			return data, CompressionNone, nil
		}
		return nil, 0, err
	}
	return compressed, c, nil
}

// decompress reverses compress. uncompressedSize must match the
// original length exactly; a mismatch means the object is corrupt.
func decompress(payload []byte, c Compression, uncompressedSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(payload) != uncompressedSize {
			return nil, errkind.ObjectStoref("uncompressed payload is %d bytes, envelope says %d",
				len(payload), uncompressedSize)
		}
		return payload, nil
	case CompressionLZ4:
		return decompressLZ4(payload, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(payload, uncompressedSize)
	default:
		return nil, errkind.ObjectStoref("unsupported compression tag %d", c)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "lz4 compress")
	}

	// CompressBlock returns 0 when it determines the data is
	// incompressible; output at or above input size is not worth
	// storing either.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(payload []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(payload, destination)
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "lz4 decompress")
	}
	if read != uncompressedSize {
		return nil, errkind.ObjectStoref("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(payload []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, err, "zstd decompress")
	}
	if len(result) != uncompressedSize {
		return nil, errkind.ObjectStoref("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}
