package temporal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(RefreshWorkflow, workflow.RegisterOptions{Name: RefreshWorkflowName})
	w.RegisterActivity(RefreshFolderActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// RunRefresh starts a refresh workflow on taskQueue and waits for its result.
func RunRefresh(ctx context.Context, c client.Client, taskQueue string, in RefreshInput) (*RefreshOutput, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "sage-refresh-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}, RefreshWorkflowName, in)
	if err != nil {
		return nil, fmt.Errorf("start refresh workflow: %w", err)
	}

	var out RefreshOutput
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("refresh workflow %s: %w", run.GetID(), err)
	}
	return &out, nil
}
