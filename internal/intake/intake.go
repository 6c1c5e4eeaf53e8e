package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/document"
)

// DefaultMaxFiles is the advisory batch size cap.
const DefaultMaxFiles = 10

// Filter represents a single intake step applied to the collected documents.
type Filter interface {
	Name() string
	Apply(ctx context.Context, docs []*document.Document) ([]*document.Document, Step, error)
}

// Step describes the result of executing an intake step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Collect resolves the given paths into documents. Directories are scanned one
// level deep, hidden entries are skipped. The result is sorted by path so that
// submission order is stable between runs.
func Collect(paths []string) ([]*document.Document, error) {
	docs := make([]*document.Document, 0, len(paths))

	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		stat, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !stat.IsDir() {
			doc, err := document.FromPath(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", path, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			doc, err := document.FromPath(filepath.Join(path, entry.Name()))
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Path < docs[j].Path
	})

	return docs, nil
}

// DefaultFilters returns the standard intake steps.
func DefaultFilters(maxFiles int, logger *zap.Logger) []Filter {
	return []Filter{
		NewAcceptedTypes(logger),
		NewDuplicates(),
		NewMaxFiles(maxFiles, logger),
	}
}

// Run executes the supplied filters sequentially.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, docs []*document.Document) ([]*document.Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		next, info, err := step.Apply(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("intake step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		docs = next
	}

	return docs, nil
}
