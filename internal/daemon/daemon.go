package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/draft"
	"fieldsync/internal/logging"
	"fieldsync/internal/media"
	"fieldsync/internal/store"
	"fieldsync/internal/submission"
	"fieldsync/internal/syncer"
)

// Daemon runs the background sync services and enforces single-instance
// execution per data directory.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.Store
	coordinator *syncer.Coordinator
	monitor     *syncer.ConnectivityMonitor
	drafts      *draft.Autosave
	media       *media.Queue
	submissions *submission.Queue

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	api *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Sync         syncer.Summary
	Health       store.HealthSummary
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, client backend.Client, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || client == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, backend client, and logger")
	}

	mediaQueue := media.NewQueue(st, logger, cfg.Sync.RetryCeiling)
	submissionQueue := submission.NewQueue(st, logger, cfg.Sync.RetryCeiling)
	coordinator := syncer.New(client, st, mediaQueue, submissionQueue, logger)
	probeInterval := time.Duration(cfg.Sync.ProbeInterval) * time.Second
	monitor := syncer.NewConnectivityMonitor(client, coordinator, logger, probeInterval)
	drafts := draft.New(st, logger, time.Duration(cfg.Sync.DraftFlushMillis)*time.Millisecond)

	lockPath := filepath.Join(cfg.Paths.DataDir, "fieldsyncd.lock")
	d := &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		coordinator: coordinator,
		monitor:     monitor,
		drafts:      drafts,
		media:       mediaQueue,
		submissions: submissionQueue,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the connectivity monitor and
// the sync loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldsync daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.monitor.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start connectivity monitor: %w", err)
	}

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.monitor.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.wg.Add(1)
	go d.syncLoop()

	d.running.Store(true)
	d.logger.Info("fieldsync daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.monitor.Stop()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.drafts.Close(); err != nil {
		d.logger.Warn("draft flush on shutdown failed", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("fieldsync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// syncLoop runs pull-then-push passes on the configured interval. A pass that
// fails shortens the wait using exponential backoff; regained connectivity
// wakes the loop immediately.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	failures := 0
	wait := time.Duration(0)
	for {
		var timerC <-chan time.Time
		if wait > 0 {
			timer := time.NewTimer(wait)
			timerC = timer.C
			select {
			case <-d.ctx.Done():
				timer.Stop()
				return
			case <-timerC:
			case <-d.coordinator.WakeChan():
				timer.Stop()
			}
		}

		if d.ctx.Err() != nil {
			return
		}

		probeWait := time.Duration(d.cfg.Sync.ProbeInterval) * time.Second
		if !d.coordinator.Online() {
			wait = probeWait
			continue
		}

		passErr := d.runPass(d.ctx)
		switch {
		case passErr == nil:
			failures = 0
			wait = time.Duration(d.cfg.Sync.PollInterval) * time.Second
		case errors.Is(passErr, context.Canceled):
			return
		case errors.Is(passErr, backend.ErrOffline):
			failures = 0
			wait = probeWait
		case errors.Is(passErr, store.ErrStorageUnavailable):
			// Local storage trouble is not a backend failure; retry on the
			// configured interval instead of escalating backoff.
			failures = 0
			wait = time.Duration(d.cfg.Sync.ErrorRetryInterval) * time.Second
			d.logger.Error("sync pass failed",
				logging.Error(passErr),
				logging.String(logging.FieldEventType, "sync_pass_failed"),
			)
		default:
			failures++
			wait = syncer.NextBackoff(failures)
			d.logger.Warn("sync pass failed",
				logging.Error(passErr),
				logging.Int(logging.FieldRetryCount, failures),
				logging.String(logging.FieldEventType, "sync_pass_failed"),
			)
		}
	}
}

func (d *Daemon) runPass(ctx context.Context) error {
	if err := d.coordinator.DownloadAssignments(ctx); err != nil {
		return err
	}
	report, err := d.coordinator.SyncPendingWork(ctx)
	if err != nil {
		return err
	}
	if !report.Clean() {
		return fmt.Errorf("push pass: %d media and %d submission attempts failed",
			report.MediaFailed, report.SubmissionsFailed)
	}
	return nil
}

// SyncNow triggers an immediate pass on the next loop iteration.
func (d *Daemon) SyncNow() {
	d.coordinator.Wake()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Sync:         d.coordinator.Summary(),
		DBPath:       d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	if health, err := d.store.Health(ctx); err == nil {
		status.Health = health
	}
	return status
}

// MediaNeedingAttention lists media parked in the terminal error state.
func (d *Daemon) MediaNeedingAttention(ctx context.Context) ([]*store.MediaItem, error) {
	return d.media.NeedsAttention(ctx)
}

// SubmissionsNeedingAttention lists submissions flagged for user action.
func (d *Daemon) SubmissionsNeedingAttention(ctx context.Context) ([]*store.Submission, error) {
	return d.submissions.NeedsAttention(ctx)
}
