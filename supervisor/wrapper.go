package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/otterwire/nimbusupdate/internal/logger"
)

// RunWrapped runs w under strategy, checking for (and optionally installing)
// an update before, during, or after the workload according to the
// strategy's decomposition, and returns the workload's exit code.
//
// The background worker, when started, is always joined before this
// function returns - the only synchronization the core needs, per the
// concurrency model's join-points-only design.
func RunWrapped(ctx context.Context, sctx *Context, strategy Strategy, w Workload) int {
	d := strategy.decompose()
	if !d.check {
		return runWorkload(ctx, sctx.InstalledBaseDir, w)
	}

	var (
		wg          sync.WaitGroup
		foundUpdate bool
	)

	startWorker := func() {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if d.timing == timingDuring {
				time.Sleep(duringSleep)
			}

			found := sctx.checkAndMaybeInstall(ctx, d.download)
			if found {
				foundUpdate = true
			}
		}()
	}

	if d.timing != timingAfter {
		startWorker()
	}

	if d.timing == timingBefore {
		wg.Wait()
		logger.Info(ctx, "update check completed before workload start")
	}

	exitCode := runWorkload(ctx, sctx.InstalledBaseDir, w)

	if d.timing == timingAfter {
		startWorker()
	}

	wg.Wait()

	if foundUpdate {
		logger.Info(ctx, "update installed, will take effect on next relaunch")
	}

	return exitCode
}

// checkAndMaybeInstall runs one check-for-update cycle, downloading and
// unpacking the result when download is requested and an update was found.
// It reports recoverable failures to sctx's error listener and returns
// whether a new version ended up installed.
func (sctx *Context) checkAndMaybeInstall(ctx context.Context, download bool) bool {
	info, err := sctx.Fetcher.CheckForUpdate(ctx, sctx.Channel)
	if err != nil {
		sctx.reportError(err)
		return false
	}

	if info == nil {
		return false
	}

	if !download {
		return false
	}

	ok, err := sctx.Installer.DownloadAndUnpack(ctx, info)
	if err != nil {
		sctx.reportError(err)
		return false
	}

	if ok {
		sctx.Catalog.Invalidate()
	}

	return ok
}
