package storage

import (
	"fmt"
	"sync"

	"github.com/shashiranjanraj/relay/config"
	"github.com/shashiranjanraj/relay/pkg/logger"
)

// ─── Manager ──────────────────────────────────────────────────────────────────

var (
	bootOnce  sync.Once
	managerMu sync.RWMutex
	disks     = map[string]Disk{}
)

// Connect boots the storage manager: the local disk always, the s3 disk when
// S3_BUCKET is configured. It runs once; Use and Lookup call it implicitly.
func Connect() {
	bootOnce.Do(func() {
		managerMu.Lock()
		defer managerMu.Unlock()

		if _, ok := disks["local"]; !ok {
			disks["local"] = NewLocal(config.StorageLocalRoot())
		}

		if config.StorageS3Bucket() == "" {
			return
		}
		d, err := newS3Disk()
		if err != nil {
			logger.Warn("storage: s3 disk disabled", "error", err)
			return
		}
		disks["s3"] = d
	})
}

// Lookup returns the named disk, reporting whether it is configured.
func Lookup(name string) (Disk, bool) {
	Connect()
	managerMu.RLock()
	defer managerMu.RUnlock()
	d, ok := disks[name]
	return d, ok
}

// Use returns the named disk and panics when it is not configured.
//
//	storage.Use("s3").Put("logs/event_dispatch_log.txt", data)
func Use(name string) Disk {
	d, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("storage: disk %q is not configured", name))
	}
	return d
}

// Resolve is Lookup with an error instead of a boolean.
func Resolve(name string) (Disk, error) {
	d, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDiskNotConfigured, name)
	}
	return d, nil
}

// RegisterDisk plugs in a custom Disk implementation, replacing any disk
// already registered under name.
func RegisterDisk(name string, d Disk) {
	Connect()
	managerMu.Lock()
	disks[name] = d
	managerMu.Unlock()
}
