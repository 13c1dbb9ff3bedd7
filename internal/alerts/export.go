package alerts

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"clearsky/internal/types"
)

// Exporter streams the full alert set as gzip-compressed JSON Lines, one
// alert per line. The archive format is stable: conditions are written in
// their tagged wire form, so an export can be re-imported through the batch
// create path.
type Exporter struct {
	store  AlertStore
	logger *slog.Logger
}

// ExporterConfig holds the configuration for creating an Exporter.
type ExporterConfig struct {
	Store  AlertStore
	Logger *slog.Logger
}

// NewExporter creates a new Exporter with the given configuration.
func NewExporter(cfg ExporterConfig) *Exporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: cfg.Store, logger: logger}
}

// Export writes every alert to w as gzip-compressed JSONL and returns the
// number of alerts written.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	alerts, err := e.store.All(ctx)
	if err != nil {
		return 0, err
	}

	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	written := 0
	for _, a := range alerts {
		if err := enc.Encode(a); err != nil {
			gz.Close()
			return written, types.NewAppError(types.ErrCodeInternalEncoding, "failed to encode alert", err)
		}
		written++
	}
	if err := gz.Close(); err != nil {
		return written, types.NewAppError(types.ErrCodeInternalEncoding, "failed to finalize archive", err)
	}

	e.logger.InfoContext(ctx, "alert archive exported", "count", written)
	return written, nil
}
