// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

package main

import (
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"crypto/sha256"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	steganocore "github.com/zanicar/steganocore"
	"github.com/zanicar/steganocore/pattern"
	"github.com/zanicar/steganocore/png"
)

// opts carries the CLI-level, outside-the-core options: outer zip
// compression and AES-GCM encryption applied to the payload before it
// ever reaches the codec core. Neither is part of the core's own scope
// (spec.md's Non-goals exclude cryptographic secrecy from the core
// itself); they stay available here purely as outer transforms, exactly
// as the teacher's CLI offered them.
type opts struct {
	zip   bool
	key   []byte
	force bool // surface best-effort recovered bytes on IntegrityFailure
}

func usage() {
	fmt.Printf("steganocore: correct usage examples:\n")
	fmt.Printf("\t> steganocore [options] -conceal -data {datafile} -in {inputfile} -out {outputfile}\n")
	fmt.Printf("\t> steganocore [options] -reveal -in {inputfile} -out {outputfile}\n")
}

// buildPattern assembles a pattern.Pattern from the pattern-related flags,
// deferring range/channel validation to pattern.Normalize inside the core.
func buildPattern(bitFreq int, hash, compression string, compressLevel int, rs bool, rsFactor float64, repeat int, repeatMode string, header, headerSize, headerPattern bool) (pattern.Pattern, error) {
	p := pattern.Default()
	p.BitFrequency = bitFreq

	switch hash {
	case "", "none":
		p.HashCheck = pattern.HashNone
	case "md5":
		p.HashCheck = pattern.HashMD5
	case "sha256":
		p.HashCheck = pattern.HashSHA256
	default:
		return pattern.Pattern{}, fmt.Errorf("unknown -hash %q", hash)
	}

	switch compression {
	case "", "none":
		p.Compression = pattern.CompressionNone
	case "zlib":
		p.Compression = pattern.CompressionZlib
		p.CompressionStrength = compressLevel
	default:
		return pattern.Pattern{}, fmt.Errorf("unknown -compress %q", compression)
	}

	if rs {
		p.AdvancedRedundancy = pattern.RedundancyReedSolomon
		p.AdvancedRedundancyCorrectionFactor = rsFactor
	}

	if repeat > 0 {
		p.RepetitiveRedundancy = repeat
	}
	switch repeatMode {
	case "", "byte":
		p.RepetitiveRedundancyMode = pattern.RepetitionBytePerByte
	case "block":
		p.RepetitiveRedundancyMode = pattern.RepetitionBlock
	default:
		return pattern.Pattern{}, fmt.Errorf("unknown -repeat-mode %q", repeatMode)
	}

	p.Header.Enabled = header
	p.Header.WriteDataSize = headerSize
	p.Header.WritePattern = headerPattern
	return p, nil
}

func conceal(dataFile, inputFile, outputFile string, p pattern.Pattern, options opts) error {
	data, err := os.ReadFile(dataFile)
	if err != nil {
		return fmt.Errorf("data file: %w", err)
	}

	rfh, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("input file: %w", err)
	}
	defer rfh.Close()

	wfh, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("output file: %w", err)
	}
	defer wfh.Close()

	if options.zip {
		zdata, err := compress(data)
		if err != nil {
			return fmt.Errorf("compress: %w", err)
		}
		data = zdata
	}

	if options.key != nil {
		cdata, err := encrypt(data, options.key)
		if err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
		data = cdata
	}

	stegano := png.NewWithPattern(p)
	if err := stegano.Conceal(data, rfh, wfh); err != nil {
		return errors.Wrap(err, "conceal")
	}

	return nil
}

func reveal(inputFile, outputFile string, p pattern.Pattern, options opts) error {
	rfh, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("input file: %w", err)
	}
	defer rfh.Close()

	buf := new(bytes.Buffer)

	stegano := png.NewWithPattern(p)
	if err := stegano.Reveal(rfh, buf); err != nil {
		var coreErr *steganocore.Error
		if options.force && stderrors.As(err, &coreErr) && coreErr.Kind == steganocore.KindIntegrityFailure && coreErr.Recovered != nil {
			log.Warn().Msg("integrity check failed, writing best-effort recovered bytes (-force)")
			buf.Reset()
			buf.Write(coreErr.Recovered)
		} else {
			return errors.Wrap(err, "reveal")
		}
	}

	if options.key != nil {
		pdata, err := decrypt(buf.Bytes(), options.key)
		if err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
		buf.Reset()
		if _, err := buf.Write(pdata); err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
	}

	if options.zip {
		zdata, err := decompress(buf.Bytes())
		if err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
		buf.Reset()
		if _, err := buf.Write(zdata); err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
	}

	wfh, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("output file: %w", err)
	}
	defer wfh.Close()

	buf.WriteTo(wfh)

	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := zlib.NewWriter(&buf)
	n, err := zw.Write(data)
	if err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	log.Debug().Int("in", n).Int("out", buf.Len()).Msg("outer zip compress")
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	var ibuf bytes.Buffer
	ibuf.Write(data)

	zr, err := zlib.NewReader(&ibuf)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var obuf bytes.Buffer
	if _, err := io.Copy(&obuf, zr); err != nil {
		return nil, err
	}

	log.Debug().Int("in", len(data)).Int("out", obuf.Len()).Msg("outer zip decompress")
	return obuf.Bytes(), nil
}

func encrypt(data []byte, key []byte) ([]byte, error) {
	var buf bytes.Buffer

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, 12)
	if _, err := crand.Read(nonce); err != nil {
		return nil, err
	}
	buf.Write(nonce)

	cd := aesgcm.Seal(data[:0], nonce, data, nil)
	buf.Write(cd)

	log.Debug().Int("in", len(data)).Int("out", buf.Len()).Msg("outer encrypt")
	return buf.Bytes(), nil
}

func decrypt(data []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := data[:12]
	cd := data[12:]

	ptb, err := aesgcm.Open(nil, nonce, cd, nil)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("in", len(data)).Int("out", len(ptb)).Msg("outer decrypt")
	return ptb, nil
}

// exitCode maps err onto spec.md §6's CLI exit codes via the core's typed
// Kind, falling back to 1 for anything the core didn't originate.
func exitCode(err error) int {
	var coreErr *steganocore.Error
	if stderrors.As(err, &coreErr) {
		return coreErr.Kind.ExitCode()
	}
	return 1
}

func main() {
	zerolog.SetGlobalLevel(zerolog.Disabled)

	var fhelp bool
	flag.BoolVar(&fhelp, "h", false, "help")

	var fverbose bool
	flag.BoolVar(&fverbose, "v", false, "verbose mode")

	var fconceal, freveal bool
	flag.BoolVar(&fconceal, "conceal", false, "executes the conceal operation")
	flag.BoolVar(&freveal, "reveal", false, "executes the reveal operation")

	var dataFile, inputFile, outputFile string
	flag.StringVar(&dataFile, "data", "", "path to data file")
	flag.StringVar(&inputFile, "in", "", "path to input file")
	flag.StringVar(&outputFile, "out", "", "path to output file (create, overwrite)")

	var fzip bool
	flag.BoolVar(&fzip, "z", false, "applies outer zip compression or decompression, before/after the core")

	var key string
	flag.StringVar(&key, "key", "", "key used for outer AES-GCM encryption/decryption (use a secure key)")

	var fforce bool
	flag.BoolVar(&fforce, "force", false, "on reveal, write best-effort recovered bytes even if the integrity check failed")

	var bitFreq int
	flag.IntVar(&bitFreq, "bitfreq", 1, "bits used per channel sample (1-8)")

	var hash string
	flag.StringVar(&hash, "hash", "none", "integrity digest: none, md5, sha256")

	var compression string
	flag.StringVar(&compression, "compress", "none", "payload compression: none, zlib")

	var compressLevel int
	flag.IntVar(&compressLevel, "compress-level", 6, "zlib compression level (0-9)")

	var rs bool
	flag.BoolVar(&rs, "rs", false, "applies Reed-Solomon error correction")

	var rsFactor float64
	flag.Float64Var(&rsFactor, "rs-factor", 0.1, "Reed-Solomon correction factor (0-1)")

	var repeat int
	flag.IntVar(&repeat, "repeat", 1, "repetition redundancy factor")

	var repeatMode string
	flag.StringVar(&repeatMode, "repeat-mode", "byte", "repetition unit: byte, block")

	var header bool
	flag.BoolVar(&header, "header", true, "writes a self-describing header so reveal needs no out-of-band length/pattern")

	var headerSize bool
	flag.BoolVar(&headerSize, "header-datasize", true, "header carries the payload length")

	var headerPattern bool
	flag.BoolVar(&headerPattern, "header-pattern", true, "header carries the embedding pattern descriptor")

	flag.Parse()

	if fhelp {
		usage()
		fmt.Printf("\nflag and option details:\n")
		flag.PrintDefaults()
		return
	}

	if fverbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(os.Stderr)
	}

	options := opts{zip: fzip, force: fforce}
	if key != "" {
		shaKey := sha256.Sum256([]byte(key))
		options.key = shaKey[:]
	}

	p, err := buildPattern(bitFreq, hash, compression, compressLevel, rs, rsFactor, repeat, repeatMode, header, headerSize, headerPattern)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(steganocore.KindInvalidPattern.ExitCode())
	}

	if fconceal && dataFile != "" && inputFile != "" && outputFile != "" && !freveal {
		if err := conceal(dataFile, inputFile, outputFile, p, options); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitCode(err))
		}
		return
	}

	if freveal && inputFile != "" && outputFile != "" && !fconceal {
		if err := reveal(inputFile, outputFile, p, options); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitCode(err))
		}
		return
	}

	usage()
}
