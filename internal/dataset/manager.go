// Package dataset keeps a local copy of the Open Food Facts parquet file used
// by the offline ingredient lookup.
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/noot-app/recipebox/internal/config"
)

// ErrLockTimeout is returned when another process holds the download lock for too long
var ErrLockTimeout = errors.New("timeout waiting for download by other instance")

// Metadata describes the downloaded file
type Metadata struct {
	SHA256       string    `json:"sha256"`
	DownloadedAt time.Time `json:"downloaded_at"`
	ETag         string    `json:"etag,omitempty"`
	Size         int64     `json:"size"`
}

// Manager downloads the parquet file and tracks its freshness
type Manager struct {
	parquetURL   string
	parquetPath  string
	metadataPath string
	lockPath     string

	disableRemoteCheck bool
	ignoreLock         bool
	retryFor           time.Duration
	pollInterval       time.Duration
	waitTimeout        time.Duration

	http *http.Client
	log  *slog.Logger
}

// NewManager creates a dataset manager from the data settings in cfg
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		parquetURL:         cfg.ParquetURL,
		parquetPath:        cfg.ParquetPath,
		metadataPath:       cfg.MetadataPath,
		lockPath:           cfg.LockFile,
		disableRemoteCheck: cfg.DisableRemoteCheck,
		ignoreLock:         cfg.IgnoreLock,
		retryFor:           cfg.BackendRetryMaxElapsed(),
		pollInterval:       2 * time.Second,
		waitTimeout:        10 * time.Minute,
		http:               &http.Client{Timeout: 30 * time.Minute},
		log:                logger,
	}
}

// ParquetPath returns where the dataset lives on disk
func (m *Manager) ParquetPath() string {
	return m.parquetPath
}

// EnsureDataset makes sure a current copy of the dataset is on disk
func (m *Manager) EnsureDataset(ctx context.Context) error {
	start := time.Now()
	m.log.Info("Ensuring dataset is available", "parquet_path", m.parquetPath)

	if _, err := os.Stat(m.parquetPath); err == nil {
		if m.disableRemoteCheck {
			m.log.Info("Remote checks disabled, using local dataset", "duration", time.Since(start))
			return nil
		}

		upToDate, err := m.isUpToDate(ctx)
		if err != nil {
			m.log.Warn("Failed to verify dataset freshness", "error", err)
		}
		if upToDate {
			m.log.Info("Dataset is up-to-date", "duration", time.Since(start))
			return nil
		}
	}

	if err := m.downloadWithLock(ctx); err != nil {
		return fmt.Errorf("failed to download dataset: %w", err)
	}

	m.log.Info("Dataset ensured", "duration", time.Since(start))
	return nil
}

// isUpToDate compares local metadata with the remote ETag, falling back to size
func (m *Manager) isUpToDate(ctx context.Context) (bool, error) {
	local, err := m.loadMetadata()
	if err != nil {
		m.log.Debug("No local metadata found", "error", err)
		return false, nil
	}

	remote, err := m.remoteMetadata(ctx)
	if err != nil {
		return false, err
	}

	if remote.ETag != "" && local.ETag != "" {
		return remote.ETag == local.ETag, nil
	}
	return remote.Size == local.Size, nil
}

// remoteMetadata issues a HEAD request for the ETag and size
func (m *Manager) remoteMetadata(ctx context.Context) (*Metadata, error) {
	var meta *Metadata
	err := m.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.parquetURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := m.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError("HEAD", resp.StatusCode)
		}
		meta = &Metadata{ETag: resp.Header.Get("ETag"), Size: resp.ContentLength}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Remote metadata fetched", "etag", meta.ETag, "size", meta.Size)
	return meta, nil
}

// downloadWithLock downloads under an exclusive lock file. If another process
// holds the lock, it waits for that process to produce the file instead.
func (m *Manager) downloadWithLock(ctx context.Context) error {
	if m.ignoreLock {
		if err := os.Remove(m.lockPath); err == nil {
			m.log.Warn("IGNORE_LOCK enabled, removed existing lock file", "lock_path", m.lockPath)
		}
	}

	lock, err := acquireLock(m.lockPath)
	if err != nil {
		if !m.ignoreLock {
			m.log.Info("Another instance is downloading, waiting", "lock_path", m.lockPath)
			return m.waitForDownload(ctx)
		}
		m.log.Warn("IGNORE_LOCK enabled but lock still unavailable, proceeding", "error", err)
	}
	if lock != nil {
		defer releaseLock(lock, m.lockPath)
	}

	if err := os.MkdirAll(filepath.Dir(m.parquetPath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// temp file next to the target so the final rename stays on one filesystem
	tmpPath := m.parquetPath + ".tmp"
	etag, err := m.download(ctx, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	sum, size, err := fileDigest(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to compute SHA256: %w", err)
	}

	if err := os.Rename(tmpPath, m.parquetPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move dataset into place: %w", err)
	}

	meta := &Metadata{SHA256: sum, DownloadedAt: time.Now().UTC(), ETag: etag, Size: size}
	if err := m.saveMetadata(meta); err != nil {
		m.log.Warn("Failed to save metadata", "error", err)
	}

	m.log.Info("Dataset downloaded", "size", size, "sha256", sum[:16])
	return nil
}

// download streams the dataset into path and returns the response ETag
func (m *Manager) download(ctx context.Context, path string) (string, error) {
	start := time.Now()
	m.log.Info("Downloading dataset", "url", m.parquetURL, "path", path)

	var etag string
	var written int64
	err := m.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.parquetURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := m.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError("download", resp.StatusCode)
		}

		file, err := os.Create(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer file.Close()

		n, err := io.Copy(file, resp.Body)
		if err != nil {
			return err
		}
		etag = resp.Header.Get("ETag")
		written = n
		return nil
	})
	if err != nil {
		return "", err
	}

	m.log.Info("Download completed", "bytes", written, "duration", time.Since(start))
	return etag, nil
}

// waitForDownload waits until the other instance moves its file into place.
// Directory events wake it early; the ticker covers filesystems without
// change notifications.
func (m *Manager) waitForDownload(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher, err := fsnotify.NewWatcher(); err != nil {
		m.log.Debug("File watching unavailable, polling", "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(filepath.Dir(m.parquetPath)); err != nil {
			m.log.Debug("Failed to watch data directory, polling", "error", err)
		} else {
			events, errs = watcher.Events, watcher.Errors
		}
	}

	timeout := time.After(m.waitTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return ErrLockTimeout
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.parquetPath) {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.log.Debug("Watcher error", "error", err)
			continue
		case <-ticker.C:
		}

		if _, err := os.Stat(m.parquetPath); err == nil {
			m.log.Info("Dataset now available after other instance completed")
			return nil
		}
	}
}

// retry runs op with exponential backoff when a retry window is configured.
// 4xx responses are never retried.
func (m *Manager) retry(ctx context.Context, op backoff.Operation) error {
	if m.retryFor <= 0 {
		err := op()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = m.retryFor
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		m.log.Warn("Dataset request failed, retrying", "error", err, "wait", wait)
	})
}

func statusError(op string, code int) error {
	err := fmt.Errorf("%s request failed with status: %d", op, code)
	if code >= 400 && code < 500 {
		return backoff.Permanent(err)
	}
	return err
}

func (m *Manager) loadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(m.metadataPath)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *Manager) saveMetadata(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.metadataPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.metadataPath, data, 0644)
}

// acquireLock creates the lock file exclusively
func acquireLock(lockPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
}

func releaseLock(f *os.File, lockPath string) {
	f.Close()
	os.Remove(lockPath)
}

// fileDigest returns the hex SHA256 and size of a file
func fileDigest(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hash := sha256.New()
	n, err := io.Copy(hash, file)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), n, nil
}
