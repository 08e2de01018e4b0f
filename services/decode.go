package services

import (
	"log/slog"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/lib/logger/sl"
)

// decodeAll decodes docs in order, dropping and logging the malformed ones.
func decodeAll[T any](log *slog.Logger, docs []docstore.Document, decode func(docstore.Document) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			log.Error("skipping malformed document", slog.String("path", doc.Path), sl.Err(err))
			continue
		}
		out = append(out, v)
	}
	return out
}
