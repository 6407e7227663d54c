package pngmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
)

const (
	// Upper bound for a single text chunk and for its inflated value.
	maxTextSize = 64 << 20
	// Length of the 8-byte PNG signature.
	signatureSize = 8
)

var (
	ErrNotPNG       = errors.New("not a PNG file")
	ErrBadCRC       = errors.New("chunk CRC mismatch")
	ErrTruncated    = errors.New("truncated PNG stream")
	ErrBadTextChunk = errors.New("malformed text chunk")
)

// Extract reads every tEXt, zTXt and iTXt chunk of the PNG file at path.
// An image without text chunks yields an empty, non-nil Metadata.
func Extract(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read is Extract for an already opened stream.
func Read(r io.Reader) (*Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading PNG stream: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Metadata, error) {
	pmp := pngstructure.NewPngMediaParser()
	if len(data) < signatureSize || !pmp.LooksLikeFormat(data) {
		return nil, ErrNotPNG
	}

	mc, err := pmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing PNG chunks: %w", err)
	}
	cs, ok := mc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, fmt.Errorf("unexpected PNG media context %T", mc)
	}

	chunks := cs.Chunks()
	if len(chunks) == 0 || chunks[len(chunks)-1].Type != "IEND" {
		return nil, ErrTruncated
	}

	md := New()
	for _, c := range chunks {
		switch c.Type {
		case "tEXt", "zTXt", "iTXt":
		default:
			continue
		}
		if !c.CheckCrc32() {
			return nil, fmt.Errorf("%s chunk: %w", c.Type, ErrBadCRC)
		}
		if len(c.Data) > maxTextSize {
			return nil, fmt.Errorf("%s chunk too large (%d bytes)", c.Type, len(c.Data))
		}
		key, value, err := decodeText(c.Type, c.Data)
		if err != nil {
			return nil, fmt.Errorf("%s chunk: %w", c.Type, err)
		}
		md.Set(key, value)
	}
	return md, nil
}

func decodeText(chunkType string, data []byte) (string, string, error) {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(keyword) == 0 || len(keyword) > 79 {
		return "", "", ErrBadTextChunk
	}
	key, err := latin1(keyword)
	if err != nil {
		return "", "", err
	}

	switch chunkType {
	case "tEXt":
		value, err := latin1(rest)
		return key, value, err

	case "zTXt":
		if len(rest) < 1 || rest[0] != 0 {
			return "", "", fmt.Errorf("%w: unknown compression method", ErrBadTextChunk)
		}
		raw, err := inflate(rest[1:])
		if err != nil {
			return "", "", err
		}
		value, err := latin1(raw)
		return key, value, err

	default: // iTXt
		if len(rest) < 2 {
			return "", "", ErrBadTextChunk
		}
		compressed, method := rest[0] == 1, rest[1]
		rest = rest[2:]

		// Language tag and translated keyword are not kept.
		for i := 0; i < 2; i++ {
			var found bool
			if _, rest, found = bytes.Cut(rest, []byte{0}); !found {
				return "", "", ErrBadTextChunk
			}
		}

		if !compressed {
			return key, string(rest), nil
		}
		if method != 0 {
			return "", "", fmt.Errorf("%w: unknown compression method", ErrBadTextChunk)
		}
		raw, err := inflate(rest)
		if err != nil {
			return "", "", err
		}
		return key, string(raw), nil
	}
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error opening zlib stream: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxTextSize+1))
	if err != nil {
		return nil, fmt.Errorf("error inflating text: %w", err)
	}
	if len(out) > maxTextSize {
		return nil, fmt.Errorf("%w: inflated text exceeds %d bytes", ErrBadTextChunk, maxTextSize)
	}
	return out, nil
}

func latin1(b []byte) (string, error) {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("error decoding Latin-1 text: %w", err)
	}
	return string(s), nil
}
