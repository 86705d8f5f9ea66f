// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package frame implements the payload framing pipeline of spec.md §4.E:
// optional compression, optional hash append, Reed–Solomon, and
// repetition, plus its reversible inverse.
package frame

import (
	"bytes"
	"compress/zlib"
	"crypto/md5"
	"crypto/sha256"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/zanicar/steganocore/pattern"
	"github.com/zanicar/steganocore/redundancy"
)

// ErrIntegrityFailure is returned when the recomputed hash does not match
// the embedded digest. The best-effort recovered bytes are attached via
// RecoveredBytes for forensic use (spec.md §7).
type ErrIntegrityFailure struct {
	RecoveredBytes []byte
}

func (e *ErrIntegrityFailure) Error() string {
	return "frame: integrity check failed"
}

// HashSize returns the fixed digest length for a hash algorithm (spec.md
// §4.E): md5 -> 16, sha256 -> 32, none -> 0.
func HashSize(alg pattern.HashAlgorithm) int {
	switch alg {
	case pattern.HashMD5:
		return md5.Size
	case pattern.HashSHA256:
		return sha256.Size
	default:
		return 0
	}
}

func newHasher(alg pattern.HashAlgorithm) hash.Hash {
	switch alg {
	case pattern.HashMD5:
		return md5.New()
	case pattern.HashSHA256:
		return sha256.New()
	default:
		return nil
	}
}

// Assemble turns raw payload bytes into a framed, carrier-ready byte
// stream: optional compression, optional hash append, Reed–Solomon, then
// repetition (spec.md §4.E, inner to outer). It also returns the exact
// byte length of the pre-repetition, post-RS stream (rsLen) and the
// pre-RS, post-hash body length (bodyLen), both of which the header/
// decoder need to invert the pipeline deterministically.
func Assemble(payload []byte, p pattern.Pattern) (framed []byte, bodyLen int, rsLen int, err error) {
	body := payload
	if p.Compression == pattern.CompressionZlib {
		body, err = compress(body, p.CompressionStrength)
		if err != nil {
			return nil, 0, 0, errors.Wrap(err, "frame: compress")
		}
	}

	if h := newHasher(p.HashCheck); h != nil {
		h.Write(body)
		body = append(body, h.Sum(nil)...)
	}
	bodyLen = len(body)

	rsBody := body
	if p.AdvancedRedundancy == pattern.RedundancyReedSolomon {
		rsParams := redundancy.DeriveRSParams(p.AdvancedRedundancyCorrectionFactor)
		rsBody, err = redundancy.EncodeRS(body, rsParams)
		if err != nil {
			return nil, 0, 0, errors.Wrap(err, "frame: reed-solomon encode")
		}
	}
	rsLen = len(rsBody)

	unit := repetitionUnitSize(p, rsParamsOrZero(p))
	framed = redundancy.Repeat(rsBody, p.RepetitiveRedundancy, unit)
	return framed, bodyLen, rsLen, nil
}

// Disassemble inverts Assemble, given the exact bodyLen and rsLen recorded
// at encode time (carried by the header, or supplied by the caller).
// Hash mismatches are reported as *ErrIntegrityFailure with the best-effort
// recovered bytes attached, per spec.md §7.
func Disassemble(framed []byte, p pattern.Pattern, bodyLen, rsLen int) ([]byte, error) {
	unit := repetitionUnitSize(p, rsParamsOrZero(p))
	rsBody := redundancy.MajorityDecode(framed, p.RepetitiveRedundancy, unit)

	body := rsBody
	if p.AdvancedRedundancy == pattern.RedundancyReedSolomon {
		rsParams := redundancy.DeriveRSParams(p.AdvancedRedundancyCorrectionFactor)
		decoded, err := redundancy.DecodeRS(rsBody, bodyLen, rsParams)
		if err != nil {
			return nil, errors.Wrap(err, "frame: reed-solomon decode")
		}
		body = decoded
	} else if bodyLen >= 0 && bodyLen <= len(body) {
		body = body[:bodyLen]
	}

	hashSize := HashSize(p.HashCheck)
	if hashSize == 0 {
		return decompressIfNeeded(body, p)
	}
	if len(body) < hashSize {
		return nil, &ErrIntegrityFailure{RecoveredBytes: body}
	}
	content := body[:len(body)-hashSize]
	wantDigest := body[len(body)-hashSize:]

	h := newHasher(p.HashCheck)
	h.Write(content)
	if !bytes.Equal(h.Sum(nil), wantDigest) {
		recovered, _ := decompressIfNeeded(content, p)
		if recovered == nil {
			recovered = content
		}
		return nil, &ErrIntegrityFailure{RecoveredBytes: recovered}
	}

	return decompressIfNeeded(content, p)
}

func decompressIfNeeded(data []byte, p pattern.Pattern) ([]byte, error) {
	if p.Compression != pattern.CompressionZlib {
		return data, nil
	}
	out, err := decompress(data)
	if err != nil {
		return nil, errors.Wrap(err, "frame: decompress")
	}
	return out, nil
}

// repetitionUnitSize resolves the repetition unit size per spec.md §9's
// resolved open question: one post-RS block in block mode, one byte in
// byte_per_byte mode.
func repetitionUnitSize(p pattern.Pattern, rsParams redundancy.RSParams) int {
	if p.RepetitiveRedundancyMode == pattern.RepetitionBlock &&
		p.AdvancedRedundancy == pattern.RedundancyReedSolomon {
		return rsParams.N
	}
	return 1
}

// FramedLength computes the exact post-repetition byte length the driver
// must read from (or write to) the carrier for a body of bodyLen bytes
// under pattern p, without re-running Assemble. It mirrors Assemble's
// rsLen/framed-length arithmetic so a decoder that only knows bodyLen (via
// the header or a caller-supplied value) can size its read deterministically.
func FramedLength(bodyLen int, p pattern.Pattern) (rsLen, framedLen int) {
	rsLen = bodyLen
	if p.AdvancedRedundancy == pattern.RedundancyReedSolomon {
		rsParams := redundancy.DeriveRSParams(p.AdvancedRedundancyCorrectionFactor)
		blocks := (bodyLen + rsParams.K - 1) / rsParams.K
		if blocks == 0 {
			blocks = 1
		}
		rsLen = blocks * rsParams.N
	}
	framedLen = rsLen * p.RepetitiveRedundancy
	return rsLen, framedLen
}

func rsParamsOrZero(p pattern.Pattern) redundancy.RSParams {
	if p.AdvancedRedundancy == pattern.RedundancyReedSolomon {
		return redundancy.DeriveRSParams(p.AdvancedRedundancyCorrectionFactor)
	}
	return redundancy.RSParams{}
}

func compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, normalizeLevel(level))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func normalizeLevel(level int) int {
	if level < 0 {
		return zlib.DefaultCompression
	}
	if level > 9 {
		return 9
	}
	return level
}

