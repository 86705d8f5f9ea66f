// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package redundancy implements the two advanced-redundancy codecs of
// spec.md §4.D: a systematic, block-oriented Reed–Solomon codec over
// GF(2^8), and byte/block repetition with majority-vote decoding.
package redundancy

import (
	"math"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// MaxBlockSize is the Reed–Solomon block length n (data symbols + parity
// symbols), capped at the GF(2^8) symbol space per spec.md §4.D.
const MaxBlockSize = 255

// ErrUncorrectable is returned when a Reed–Solomon block has more errors
// than its parity can correct.
var ErrUncorrectable = errors.New("redundancy: reed-solomon block uncorrectable")

// RSParams are the derived Reed–Solomon block parameters for a given
// correction factor, grounded on spec.md §4.D's
// "nsym = round(factor * n), k = n - nsym".
type RSParams struct {
	N    int // block size (data + parity symbols)
	NSym int // parity symbols
	K    int // data symbols per block
}

// DeriveRSParams computes the block parameters for a correction factor in
// [0, 1], using the maximum GF(2^8) block size.
func DeriveRSParams(factor float64) RSParams {
	n := MaxBlockSize
	nsym := int(math.Round(factor * float64(n)))
	if nsym < 0 {
		nsym = 0
	}
	if nsym > n-1 {
		nsym = n - 1
	}
	return RSParams{N: n, NSym: nsym, K: n - nsym}
}

// Correctable is the number of byte errors per block RSParams can correct
// (floor(nsym/2)).
func (p RSParams) Correctable() int {
	return p.NSym / 2
}

// EncodeRS splits data into ceil(len(data)/k) blocks of k bytes (the final
// block zero-padded), and systematically encodes each into an n-byte
// codeword (k data bytes followed by nsym parity bytes). The caller
// retains the original data length separately (the frame/header layer) so
// decode can trim the final block's zero padding.
func EncodeRS(data []byte, p RSParams) ([]byte, error) {
	if p.NSym == 0 {
		return passthroughPad(data, p.K), nil
	}
	enc, err := reedsolomon.New(p.K, p.NSym)
	if err != nil {
		return nil, errors.Wrap(err, "redundancy: reedsolomon.New")
	}

	var out []byte
	for _, block := range chunk(data, p.K) {
		shards, err := enc.Split(block)
		if err != nil {
			return nil, errors.Wrap(err, "redundancy: split")
		}
		if err := enc.Encode(shards); err != nil {
			return nil, errors.Wrap(err, "redundancy: encode")
		}
		for _, s := range shards {
			out = append(out, s...)
		}
	}
	return out, nil
}

// DecodeRS is the inverse of EncodeRS: it walks encoded in n-byte
// codewords, verifying and, where necessary, correcting each block up to
// p.Correctable() byte errors via bounded erasure-combination search
// (klauspost/reedsolomon is an erasure codec; since the corrupted byte
// positions are unknown here, we search small subsets of symbol positions
// to mark as erasures and let Reconstruct fill them in, accepting the
// first combination whose parity re-verifies). It returns the joined data
// bytes trimmed to originalLen, or ErrUncorrectable if no block within
// p.Correctable() errors could be reconstructed.
func DecodeRS(encoded []byte, originalLen int, p RSParams) ([]byte, error) {
	if p.NSym == 0 {
		return passthroughUnpad(encoded, originalLen), nil
	}
	enc, err := reedsolomon.New(p.K, p.NSym)
	if err != nil {
		return nil, errors.Wrap(err, "redundancy: reedsolomon.New")
	}

	var out []byte
	for _, codeword := range chunk(encoded, p.N) {
		block, err := decodeBlock(enc, codeword, p)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	if originalLen >= 0 && originalLen <= len(out) {
		return out[:originalLen], nil
	}
	return out, nil
}

func decodeBlock(enc reedsolomon.Encoder, codeword []byte, p RSParams) ([]byte, error) {
	shards := toShards(codeword)
	if ok, _ := enc.Verify(shards); ok {
		return joinData(shards, p.K), nil
	}

	t := p.Correctable()
	for erasures := 1; erasures <= t; erasures++ {
		if fixed, ok := tryReconstruct(enc, codeword, p, erasures); ok {
			return joinData(fixed, p.K), nil
		}
	}
	return nil, ErrUncorrectable
}

// tryReconstruct exhaustively marks every combination of `count` symbol
// positions as erasures and asks the erasure decoder to fill them in,
// accepting the first combination whose parity re-verifies. This is only
// practical for small `count` (a handful of correctable bytes per block),
// which matches the intended use: localized carrier-bit corruption, not
// wholesale block loss.
//
// TODO: this degrades to C(n, count) Reconstruct calls per block, which is
// only practical while p.Correctable() stays in the single digits; a
// syndrome-based locator would make large-nsym blocks tractable.
func tryReconstruct(enc reedsolomon.Encoder, codeword []byte, p RSParams, count int) ([][]byte, bool) {
	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}
	for {
		shards := toShards(codeword)
		for _, idx := range indices {
			shards[idx] = nil
		}
		if err := enc.Reconstruct(shards); err == nil {
			if ok, _ := enc.Verify(shards); ok {
				return shards, true
			}
		}
		if !nextCombination(indices, p.N) {
			return nil, false
		}
	}
}

// nextCombination advances indices (a strictly increasing slice of
// distinct values in [0, n)) to the next combination in lexicographic
// order, returning false once all combinations have been produced.
func nextCombination(indices []int, n int) bool {
	k := len(indices)
	i := k - 1
	for i >= 0 && indices[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	indices[i]++
	for j := i + 1; j < k; j++ {
		indices[j] = indices[j-1] + 1
	}
	return true
}

func toShards(codeword []byte) [][]byte {
	shards := make([][]byte, len(codeword))
	for i, b := range codeword {
		shards[i] = []byte{b}
	}
	return shards
}

func joinData(shards [][]byte, k int) []byte {
	out := make([]byte, k)
	for i := 0; i < k; i++ {
		out[i] = shards[i][0]
	}
	return out
}

func chunk(data []byte, size int) [][]byte {
	var out [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		block := make([]byte, size)
		copy(block, data[i:end])
		out = append(out, block)
	}
	if len(out) == 0 {
		out = append(out, make([]byte, size))
	}
	return out
}

func passthroughPad(data []byte, k int) []byte {
	var out []byte
	for _, b := range chunk(data, k) {
		out = append(out, b...)
	}
	return out
}

func passthroughUnpad(encoded []byte, originalLen int) []byte {
	if originalLen >= 0 && originalLen <= len(encoded) {
		return encoded[:originalLen]
	}
	return encoded
}
