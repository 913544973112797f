package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/strideteam/competition-engine/storage"
)

// RunReporter архивирует итог каждого запуска планировщика в объектное
// хранилище. Архивирование best-effort: недоступное хранилище не влияет на
// сам запуск.
type RunReporter struct {
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewRunReporter принимает nil uploader: в этом случае архивирование
// отключено.
func NewRunReporter(uploader storage.FileUploader, logger *slog.Logger) *RunReporter {
	return &RunReporter{uploader: uploader, logger: logger}
}

func (r *RunReporter) Archive(ctx context.Context, summary *RunSummary) {
	if r.uploader == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		r.logger.Error("failed to encode scheduler run report",
			slog.String("run_id", summary.RunID),
			slog.Any("error", err))
		return
	}

	key := fmt.Sprintf("reports/scheduler/%s/%s.json", summary.StartedAt.UTC().Format("2006-01-02"), summary.RunID)
	result, err := r.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		r.logger.Error("failed to archive scheduler run report",
			slog.String("run_id", summary.RunID),
			slog.String("key", key),
			slog.Any("error", err))
		return
	}

	r.logger.Info("scheduler run report archived",
		slog.String("run_id", summary.RunID),
		slog.String("location", result.Location))
}
