package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/relay/config"
	"github.com/shashiranjanraj/relay/pkg/logger"
	"github.com/shashiranjanraj/relay/pkg/storage"
)

var logFollow bool

// relay log:show
var logShowCmd = &cobra.Command{
	Use:   "log:show",
	Short: "Print the last flushed dispatch log",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := config.EventLogDisk()
		disk, err := storage.Resolve(name)
		if err != nil {
			return err
		}
		path := config.EventLogPath()
		if err := showLog(cmd.OutOrStdout(), disk, path); err != nil {
			return err
		}
		if !logFollow {
			return nil
		}
		if name != "local" {
			return fmt.Errorf("relay: --follow needs the local disk, EVENT_LOG_DISK is %q", name)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return followLog(ctx, cmd.OutOrStdout(), disk, config.StorageLocalRoot(), path)
	},
}

// relay log:clear
var logClearCmd = &cobra.Command{
	Use:   "log:clear",
	Short: "Delete the flushed dispatch log",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := storage.Resolve(config.EventLogDisk())
		if err != nil {
			return err
		}
		path := config.EventLogPath()
		removed, err := clearLog(disk, path)
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "No dispatch log at %s.\n", path)
		}
		return nil
	},
}

func init() {
	logShowCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Reprint the log each time it is flushed (local disk only)")
}

func showLog(out io.Writer, disk storage.Disk, path string) error {
	if disk.Missing(path) {
		fmt.Fprintf(out, "No dispatch log at %s. Run with EVENT_DEBUG=true to record one.\n", path)
		return nil
	}
	mod, err := disk.LastModified(path)
	if err != nil {
		return fmt.Errorf("relay: stat dispatch log: %w", err)
	}
	size, err := disk.Size(path)
	if err != nil {
		return fmt.Errorf("relay: stat dispatch log: %w", err)
	}

	data, err := disk.Get(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "Dispatch log at %s was removed.\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("relay: read dispatch log: %w", err)
	}
	fmt.Fprintf(out, "# %s: last flushed %s, %d bytes\n", path, mod.Local().Format(time.DateTime), size)
	_, err = out.Write(data)
	return err
}

// clearLog deletes the flushed log. It reports whether there was one.
func clearLog(disk storage.Disk, path string) (bool, error) {
	if disk.Missing(path) {
		return false, nil
	}
	if err := disk.Delete(path); err != nil {
		return false, fmt.Errorf("relay: clear dispatch log: %w", err)
	}
	return true, nil
}

// followLog watches the log's directory under root and reprints the log
// whenever it is replaced. Flushes rename a temp file into place, so the
// directory is watched rather than the file.
func followLog(ctx context.Context, out io.Writer, disk storage.Disk, root, path string) error {
	target := filepath.Join(root, filepath.FromSlash(path))
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("relay: follow: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("relay: follow: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("relay: follow %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			fmt.Fprintln(out)
			if err := showLog(out, disk, path); err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("relay: follow watcher error", "error", err)
		}
	}
}
