package intake

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/document"
)

type acceptedTypesFilter struct {
	logger *zap.Logger
}

// NewAcceptedTypes creates a filter that drops files which are neither PDF nor DOCX.
func NewAcceptedTypes(logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &acceptedTypesFilter{logger: logger}
}

func (f *acceptedTypesFilter) Name() string { return "accepted_types" }

func (f *acceptedTypesFilter) Apply(_ context.Context, docs []*document.Document) ([]*document.Document, Step, error) {
	kept := make([]*document.Document, 0, len(docs))
	var dropped []string

	for _, doc := range docs {
		if document.Accepted(doc.MIMEType) {
			kept = append(kept, doc)
			continue
		}
		dropped = append(dropped, doc.Name)
	}

	if len(dropped) > 0 {
		f.logger.Warn("skipping unsupported files. Only PDF and DOCX are accepted",
			zap.Strings("files", dropped),
		)
	}

	return kept, Step{Initial: len(docs), Dropped: len(dropped), Left: len(kept)}, nil
}

type duplicatesFilter struct{}

// NewDuplicates creates a filter that removes files listed more than once.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Apply(_ context.Context, docs []*document.Document) ([]*document.Document, Step, error) {
	seen := make(map[string]struct{}, len(docs))
	kept := make([]*document.Document, 0, len(docs))

	for _, doc := range docs {
		// in-memory documents have no path and are never duplicates
		if doc.Path == "" {
			kept = append(kept, doc)
			continue
		}

		key := filepath.Clean(doc.Path)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}

		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, doc)
	}

	return kept, Step{Initial: len(docs), Dropped: len(docs) - len(kept), Left: len(kept)}, nil
}

type maxFilesFilter struct {
	limit  int
	logger *zap.Logger
}

// NewMaxFiles creates a filter that keeps at most limit files. Zero or less disables the cap.
func NewMaxFiles(limit int, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &maxFilesFilter{limit: limit, logger: logger}
}

func (f *maxFilesFilter) Name() string { return "max_files" }

func (f *maxFilesFilter) Apply(_ context.Context, docs []*document.Document) ([]*document.Document, Step, error) {
	initial := len(docs)
	if f.limit <= 0 || initial <= f.limit {
		return docs, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	skipped := make([]string, 0, initial-f.limit)
	for _, doc := range docs[f.limit:] {
		skipped = append(skipped, doc.Name)
	}

	f.logger.Warn("too many files for one batch, the rest are skipped",
		zap.Int("max_files", f.limit),
		zap.Strings("skipped", skipped),
		zap.String("hint", "raise intake.max-files or pass --max-files 0 to disable the cap"),
	)

	return docs[:f.limit], Step{Initial: initial, Dropped: initial - f.limit, Left: f.limit}, nil
}
