// Package blob stores uploaded mod payloads on the local filesystem or in S3.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps a single mod payload.
const DefaultMaxUploadBytes int64 = 16 << 20

var (
	ErrFileTooLarge   = errors.New("blob file too large")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidKey     = errors.New("invalid blob key")
	ErrNotFound       = errors.New("blob not found")
)

// Store persists opaque payloads by key. Put is all-or-nothing: a payload
// that fails validation or exceeds the limit leaves nothing behind.
type Store interface {
	Put(ctx context.Context, key string, src io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	MaxUploadBytes() int64
}

// ModFileKey returns a fresh object key for a payload of modID. Each upload
// gets its own key so a replaced payload can be removed after the row update commits.
func ModFileKey(modID string) string {
	return path.Join("mods", modID, uuid.NewString())
}

func validateKey(key string) (string, error) {
	clean := path.Clean(strings.TrimSpace(key))
	if clean == "." || clean == "/" || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// screen rejects executables by signature and returns a reader yielding the
// full payload.
func screen(src io.Reader) (io.Reader, error) {
	sniff := make([]byte, 512)
	n, err := io.ReadFull(src, sniff)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading blob data: %w", err)
	}
	sniff = sniff[:n]

	if isExecutableSignature(sniff) {
		return nil, ErrExecutableFile
	}
	return io.MultiReader(bytes.NewReader(sniff), src), nil
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	return sniff[0] == '#' && sniff[1] == '!'
}
