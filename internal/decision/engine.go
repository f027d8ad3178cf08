// internal/decision/engine.go
package decision

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fileagent/internal/config"
	"fileagent/internal/domain/events"
	"fileagent/internal/llm"
	"fileagent/internal/util"

	"go.uber.org/zap"
)

// fallbackCategory receives empty files when the configured taxonomy
// includes it.
const fallbackCategory = "Other"

// Engine applies the routing policy to one settled file:
//
//  1. a summary marker in the filename always wins (cheap, deterministic,
//     the user's manual override)
//  2. extensions in the classify set go to the external classifier, whose
//     label must come from the closed category set
//  3. other extensions fall back to the static route table
//  4. otherwise no action
type Engine struct {
	classifier llm.Classifier

	marker       string
	categories   []string
	categorySet  map[string]bool
	classifyExts map[string]bool
	routes       map[string]string
	maxAttempts  int
	retryDelay   time.Duration

	log *zap.Logger
}

func NewEngine(cfg config.DecisionConfig, retryDelay time.Duration, classifier llm.Classifier, log *zap.Logger) *Engine {
	categorySet := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categorySet[c] = true
	}
	classifyExts := make(map[string]bool, len(cfg.ClassifyExtensions))
	for _, e := range cfg.ClassifyExtensions {
		classifyExts[strings.ToLower(strings.TrimSpace(e))] = true
	}
	routes := make(map[string]string, len(cfg.ExtensionRoutes))
	for ext, folder := range cfg.ExtensionRoutes {
		routes[strings.ToLower(strings.TrimSpace(ext))] = folder
	}

	return &Engine{
		classifier:   classifier,
		marker:       strings.ToLower(cfg.SummaryMarker),
		categories:   cfg.Categories,
		categorySet:  categorySet,
		classifyExts: classifyExts,
		routes:       routes,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   retryDelay,
		log:          log,
	}
}

// WantsSummary reports whether the filename carries the summary marker.
func (e *Engine) WantsSummary(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return e.marker != "" && strings.Contains(strings.ToLower(stem), e.marker)
}

// Decide maps {path, sample} to a Decision. A non-nil error means the
// external classifier exhausted its retry budget; the returned decision is
// then ActionNone.
func (e *Engine) Decide(ctx context.Context, path string, sample *events.ContentSample) (events.Decision, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if e.WantsSummary(path) {
		if sample == nil {
			return events.Decision{
				Path:      path,
				Action:    events.ActionNone,
				Rationale: "summary requested but file has no readable text",
			}, nil
		}
		return events.Decision{
			Path:      path,
			Action:    events.ActionSummarize,
			Rationale: fmt.Sprintf("filename contains summary marker %q", e.marker),
		}, nil
	}

	if e.classifyExts[ext] && sample != nil {
		// nothing to classify in an empty file; skip the model call and use
		// the catch-all folder when the taxonomy has one
		if strings.TrimSpace(sample.Preview) == "" {
			if e.categorySet[fallbackCategory] {
				return events.Decision{
					Path:      path,
					Action:    events.ActionRoute,
					Category:  fallbackCategory,
					Rationale: "empty text, filed under catch-all",
				}, nil
			}
			return events.Decision{
				Path:      path,
				Action:    events.ActionNone,
				Rationale: "empty text, nothing to classify",
			}, nil
		}
		return e.classify(ctx, path, sample)
	}

	if folder, ok := e.routes[ext]; ok {
		return events.Decision{
			Path:      path,
			Action:    events.ActionRoute,
			Category:  folder,
			Rationale: fmt.Sprintf("extension rule %s -> %s", ext, folder),
		}, nil
	}

	return events.Decision{
		Path:      path,
		Action:    events.ActionNone,
		Rationale: "no applicable rule",
	}, nil
}

// classify calls the external classifier with a bounded retry budget. An
// out-of-set label counts as a failed attempt, never as a valid route: a
// silent default category would misfile the file.
func (e *Engine) classify(ctx context.Context, path string, sample *events.ContentSample) (events.Decision, error) {
	if e.classifier == nil {
		err := fmt.Errorf("no classifier configured")
		return e.failed(path, err), err
	}
	filename := filepath.Base(path)

	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(util.Backoff(e.retryDelay, attempt)):
			case <-ctx.Done():
				return e.failed(path, ctx.Err()), ctx.Err()
			}
		}

		label, err := e.classifier.Classify(ctx, filename, sample.Preview, e.categories)
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			e.log.Warn("classifier call failed",
				zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		if !e.categorySet[label] {
			lastErr = fmt.Errorf("attempt %d: label %q not in category set", attempt+1, label)
			e.log.Warn("classifier returned unrecognized label",
				zap.String("path", path), zap.String("label", label))
			continue
		}

		return events.Decision{
			Path:      path,
			Action:    events.ActionRoute,
			Category:  label,
			Rationale: fmt.Sprintf("classified as %s", label),
		}, nil
	}

	err := fmt.Errorf("classification failed after %d attempts: %w", e.maxAttempts, lastErr)
	return e.failed(path, err), err
}

func (e *Engine) failed(path string, err error) events.Decision {
	return events.Decision{
		Path:      path,
		Action:    events.ActionNone,
		Rationale: err.Error(),
	}
}
