// internal/pipeline/sampler_test.go
package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestSamplerReadsTextualPreview(t *testing.T) {
	path := writeTemp(t, "notes.txt", []byte("algebra homework for chapter 3"))
	s := NewSampler([]string{".txt", ".md"}, 4096)

	sample, err := s.Sample(path)
	require.NoError(t, err)
	assert.Equal(t, path, sample.Path)
	assert.Equal(t, ".txt", sample.Extension)
	assert.Equal(t, "algebra homework for chapter 3", sample.Preview)
}

func TestSamplerBoundsPreviewLength(t *testing.T) {
	path := writeTemp(t, "big.txt", []byte(strings.Repeat("a", 10000)))
	s := NewSampler([]string{".txt"}, 100)

	sample, err := s.Sample(path)
	require.NoError(t, err)
	assert.Len(t, sample.Preview, 100)
}

func TestSamplerTrimsSplitRune(t *testing.T) {
	// 99 ASCII bytes then a 3-byte rune; a 100-byte cap splits it
	content := strings.Repeat("a", 99) + "€"
	path := writeTemp(t, "split.txt", []byte(content))
	s := NewSampler([]string{".txt"}, 100)

	sample, err := s.Sample(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 99), sample.Preview)
}

func TestSamplerRejectsUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "image.png", []byte{0x89, 0x50, 0x4e, 0x47})
	s := NewSampler([]string{".txt", ".md"}, 4096)

	_, err := s.Sample(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestSamplerRejectsBinaryContent(t *testing.T) {
	path := writeTemp(t, "fake.txt", []byte{'a', 0x00, 'b'})
	s := NewSampler([]string{".txt"}, 4096)

	_, err := s.Sample(path)
	require.Error(t, err)
}

func TestSamplerRejectsInvalidUTF8(t *testing.T) {
	path := writeTemp(t, "latin1.txt", []byte{'c', 'a', 0xe9, 'f', 'e'})
	s := NewSampler([]string{".txt"}, 4096)

	_, err := s.Sample(path)
	require.Error(t, err)
}

func TestSamplerCaseInsensitiveExtension(t *testing.T) {
	path := writeTemp(t, "NOTES.TXT", []byte("uppercase name"))
	s := NewSampler([]string{".txt"}, 4096)

	sample, err := s.Sample(path)
	require.NoError(t, err)
	assert.Equal(t, ".txt", sample.Extension)
}
