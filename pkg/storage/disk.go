// Package storage is where relay keeps its dispatch log.
//
// Two drivers are available:
//   - "local": local filesystem (default), atomic writes
//   - "s3": S3-compatible object storage (AWS S3, MinIO, R2), enabled when
//     S3_BUCKET is configured
//
// The manager boots lazily on first use:
//
//	disk := storage.Use(config.EventLogDisk())
//	err := disk.Put("logs/event_dispatch_log.txt", data)
//
// Besides Put and Get the drivers expose the metadata log:show prints and the
// Delete log:clear needs.
package storage

import (
	"errors"
	"time"
)

// ErrDiskNotConfigured is returned by Lookup-based helpers when no disk is
// registered under the requested name.
var ErrDiskNotConfigured = errors.New("storage: disk is not configured")

// Disk is the filesystem driver interface. Every driver must implement this.
type Disk interface {
	// Put writes content to path, replacing any previous file and creating
	// parent directories as needed.
	Put(path string, content []byte) error

	// Get returns the full content of the file at path. A missing file
	// yields an error matching fs.ErrNotExist.
	Get(path string) ([]byte, error)

	// Missing reports whether no file exists at path.
	Missing(path string) bool

	// Size returns the byte size of the file.
	Size(path string) (int64, error)

	// LastModified returns the file's last-modified time.
	LastModified(path string) (time.Time, error)

	// Delete removes a file. Returns nil if the file did not exist.
	Delete(path string) error
}
