// internal/pipeline/sampler.go
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"fileagent/internal/domain/events"
)

// Sampler extracts a bounded text preview from a ready file. Read-only: the
// source file is never mutated.
type Sampler struct {
	allowed  map[string]bool
	maxBytes int
}

func NewSampler(extensions []string, maxBytes int) *Sampler {
	allowed := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		allowed[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &Sampler{allowed: allowed, maxBytes: maxBytes}
}

// Sample returns a preview for textual files in the allowed extension set.
// Unsupported extensions and undecodable content yield an error and no
// sample.
func (s *Sampler) Sample(path string) (*events.ContentSample, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !s.allowed[ext] {
		return nil, fmt.Errorf("unsupported extension %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open for sampling: %w", err)
	}
	defer f.Close()

	buf := make([]byte, s.maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read preview: %w", err)
	}
	buf = buf[:n]

	if bytes.IndexByte(buf, 0) >= 0 {
		return nil, fmt.Errorf("binary content in %q file", ext)
	}

	// the byte cap may have split a trailing multi-byte rune; that can only
	// happen when the read filled the whole buffer
	if n == s.maxBytes {
		for i := 0; i < utf8.UTFMax-1 && len(buf) > 0 && !utf8.Valid(buf); i++ {
			buf = buf[:len(buf)-1]
		}
	}
	if !utf8.Valid(buf) {
		return nil, fmt.Errorf("content is not valid UTF-8")
	}

	return &events.ContentSample{
		Path:      path,
		Preview:   string(buf),
		Extension: ext,
	}, nil
}
