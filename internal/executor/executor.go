// internal/executor/executor.go
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fileagent/internal/domain/events"
	"fileagent/internal/llm"

	"go.uber.org/zap"
)

// maxCollisionSuffix bounds the "name (N).ext" disambiguation search.
const maxCollisionSuffix = 1000

// Publisher sends completed-action events to downstream consumers. May be
// nil when messaging is disabled.
type Publisher interface {
	PublishAction(ctx context.Context, ev events.FileActionEvent) error
}

// Archiver uploads a written sidecar to remote storage. May be nil when
// archiving is disabled.
type Archiver interface {
	Archive(ctx context.Context, localPath string) (string, error)
}

// Executor performs the decided filesystem action. A failed action leaves
// the original file untouched; moves and sidecar writes are all-or-nothing.
type Executor struct {
	root       string
	summarizer llm.Summarizer
	publisher  Publisher
	archiver   Archiver
	log        *zap.Logger
}

func New(root string, summarizer llm.Summarizer, publisher Publisher, archiver Archiver, log *zap.Logger) *Executor {
	return &Executor{
		root:       root,
		summarizer: summarizer,
		publisher:  publisher,
		archiver:   archiver,
		log:        log,
	}
}

// Execute runs one decision and returns where it landed: the moved file's
// new path for a route, the sidecar path for a summarize, empty for none.
// The sample is required for summarize.
func (x *Executor) Execute(ctx context.Context, dec events.Decision, sample *events.ContentSample) (string, error) {
	switch dec.Action {
	case events.ActionRoute:
		return x.route(ctx, dec)
	case events.ActionSummarize:
		return x.summarize(ctx, dec, sample)
	case events.ActionNone:
		return "", nil
	default:
		return "", fmt.Errorf("unknown action %q", dec.Action)
	}
}

// route moves the file into a category subdirectory of the watch root,
// creating it on demand and disambiguating name collisions with a counter
// suffix rather than overwriting.
func (x *Executor) route(ctx context.Context, dec events.Decision) (string, error) {
	destDir := filepath.Join(x.root, dec.Category)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create category dir: %w", err)
	}

	dest, err := disambiguate(destDir, filepath.Base(dec.Path))
	if err != nil {
		return "", err
	}

	if err := moveFile(dec.Path, dest); err != nil {
		return "", fmt.Errorf("move to %s: %w", dec.Category, err)
	}

	x.log.Info("routed file",
		zap.String("path", dec.Path),
		zap.String("category", dec.Category),
		zap.String("dest", dest))

	x.publish(ctx, events.FileActionEvent{
		Path:        dec.Path,
		Action:      string(events.ActionRoute),
		Category:    dec.Category,
		Destination: dest,
		Timestamp:   time.Now(),
	})

	return dest, nil
}

// summarize writes a bullet+tag sidecar next to the original. The original
// is never moved or deleted.
func (x *Executor) summarize(ctx context.Context, dec events.Decision, sample *events.ContentSample) (string, error) {
	if sample == nil {
		return "", fmt.Errorf("summarize requires a content sample")
	}
	if x.summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}

	summary, err := x.summarizer.Summarize(ctx, filepath.Base(dec.Path), sample.Preview)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	sidecar := SidecarPath(dec.Path)
	if err := writeAtomic(sidecar, FormatSidecar(summary)); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}

	x.log.Info("wrote summary sidecar",
		zap.String("path", dec.Path),
		zap.String("sidecar", sidecar))

	if x.archiver != nil {
		if key, err := x.archiver.Archive(ctx, sidecar); err != nil {
			x.log.Warn("sidecar archive failed", zap.String("sidecar", sidecar), zap.Error(err))
		} else {
			x.log.Info("archived sidecar", zap.String("key", key))
		}
	}

	x.publish(ctx, events.FileActionEvent{
		Path:        dec.Path,
		Action:      string(events.ActionSummarize),
		Destination: sidecar,
		Timestamp:   time.Now(),
	})

	return sidecar, nil
}

func (x *Executor) publish(ctx context.Context, ev events.FileActionEvent) {
	if x.publisher == nil {
		return
	}
	if err := x.publisher.PublishAction(ctx, ev); err != nil {
		x.log.Warn("failed to publish action event", zap.String("path", ev.Path), zap.Error(err))
	}
}

// SidecarPath derives the summary filename: same directory and stem, with a
// .summary.txt suffix.
func SidecarPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".summary.txt"
}

// FormatSidecar renders the human-readable bullet+tag format.
func FormatSidecar(s *llm.Summary) []byte {
	var b strings.Builder
	for _, bullet := range s.Bullets {
		b.WriteString("- ")
		b.WriteString(bullet)
		b.WriteString("\n")
	}
	if len(s.Tags) > 0 {
		b.WriteString("\ntags: ")
		b.WriteString(strings.Join(s.Tags, ", "))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// disambiguate returns a destination path that does not exist yet, appending
// " (1)", " (2)", ... before the extension when needed.
func disambiguate(dir, name string) (string, error) {
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxCollisionSuffix; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("collision suffixes exhausted for %s", name)
}

// moveFile renames src to dst, falling back to copy-then-remove across
// filesystems. The source stays intact unless the destination was fully
// written.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".fileagent-move-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Remove(src)
}

// writeAtomic writes content to a temp file and renames it into place so a
// failed write never leaves a partial file.
func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fileagent-sidecar-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
