package app

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// StartExportWorker launches background workers to process export tasks concurrently.
// If too many workers are configured, the number is automatically limited based on available CPU cores.
func (app *App) StartExportWorker(ctx context.Context) {
	numWorkers := app.Config.Export.Workers
	if numWorkers <= 0 {
		numWorkers = 4
	}

	maxWorkers := runtime.NumCPU() * 2
	if numWorkers > maxWorkers {
		numWorkers = maxWorkers
	}

	slog.InfoContext(ctx, "starting export workers", "count", numWorkers)

	for i := 0; i < numWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					return
				default:
					task, err := app.Cache.PopExportTask()
					if err != nil {
						time.Sleep(time.Second)
						continue
					}

					if err := app.Exporter.ProcessTask(ctx, task); err != nil {
						slog.ErrorContext(ctx, "export task failed",
							"workerID", workerID,
							"taskID", task.TaskID,
							"queryID", task.QueryID,
							"error", err)
					}
				}
			}
		}(i + 1)
	}
}
