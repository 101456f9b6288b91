package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker registers the snapshot workflow and activity on taskQueue and
// starts polling. Each activity already runs a parallel pipeline, so
// maxSnapshots caps how many snapshots one worker processes at once; zero
// keeps the SDK default.
func StartWorker(c client.Client, taskQueue string, maxSnapshots int) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: maxSnapshots,
	})

	w.RegisterWorkflow(ProcessSnapshotWorkflow)
	w.RegisterActivity(ProcessSnapshotActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker on %s: %w", taskQueue, err)
	}
	return w, nil
}
