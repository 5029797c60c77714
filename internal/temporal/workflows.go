package temporal

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/codesage/sage/internal/config"
)

// RefreshWorkflowName is the registered name of RefreshWorkflow.
const RefreshWorkflowName = "RefreshWorkflow"

// RefreshInput holds the workflow parameters.
type RefreshInput struct {
	Folders  []string
	Settings config.Settings
}

// FolderResult is the outcome of refreshing one folder. Error is set when
// the folder could not be rebuilt at all.
type FolderResult struct {
	Folder   string
	Written  int
	Reused   int
	Embedded int
	Deleted  []string
	Failed   []string
	Error    string
}

// RefreshOutput holds the workflow result, one entry per input folder in
// input order.
type RefreshOutput struct {
	Results []FolderResult
}

// RefreshWorkflow rebuilds every folder's store. Folders are independent and
// run concurrently; a failing folder does not stop the others. Activities are
// not retried because a rebuild already skips unchanged files and reports
// per-file failures.
func RefreshWorkflow(ctx workflow.Context, input RefreshInput) (*RefreshOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         &sdktemporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	futures := make([]workflow.Future, len(input.Folders))
	for i, folder := range input.Folders {
		futures[i] = workflow.ExecuteActivity(ctx, RefreshFolderActivity, folder, input.Settings)
	}

	out := &RefreshOutput{Results: make([]FolderResult, len(input.Folders))}
	for i, f := range futures {
		var res FolderResult
		if err := f.Get(ctx, &res); err != nil {
			logger.Warn("folder refresh failed", "folder", input.Folders[i], "error", err)
			res = FolderResult{Folder: input.Folders[i], Error: err.Error()}
		}
		out.Results[i] = res
	}
	return out, nil
}
