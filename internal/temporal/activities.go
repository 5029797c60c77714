package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/index"
)

// Refresher rebuilds one folder's store.
type Refresher interface {
	RefreshFolder(ctx context.Context, s config.Settings, folder string) (*index.RebuildResult, error)
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Refresher Refresher
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// RefreshFolderActivity rebuilds one folder and heartbeats while it runs.
func RefreshFolderActivity(ctx context.Context, folder string, s config.Settings) (FolderResult, error) {
	if deps == nil || deps.Refresher == nil {
		return FolderResult{}, errors.New("refresh worker has no dependencies")
	}

	stop := heartbeat(ctx, folder)
	defer stop()

	res, err := deps.Refresher.RefreshFolder(ctx, s, folder)
	if err != nil {
		return FolderResult{}, err
	}
	return toFolderResult(res), nil
}

func toFolderResult(r *index.RebuildResult) FolderResult {
	out := FolderResult{
		Folder:   r.Folder,
		Written:  r.Written,
		Reused:   r.Reused,
		Embedded: r.Embedded,
		Deleted:  r.Deleted,
	}
	for _, e := range r.Errors {
		out.Failed = append(out.Failed, e.Error())
	}
	return out
}

// heartbeat records progress every 30 seconds until stopped. Outside an
// activity context it does nothing.
func heartbeat(ctx context.Context, folder string) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx, folder)
			}
		}
	}()
	return func() { close(done) }
}
