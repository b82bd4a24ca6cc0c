package pkistore

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/certgate/pkg/logger"
)

// Watcher evicts inventory cache entries when issued certificates change on disk.
type Watcher struct {
	inv     *Inventory
	watcher *fsnotify.Watcher
	logger  logger.Logger
	done    chan struct{}
}

// NewWatcher watches the inventory's issued directory. The directory must exist.
func NewWatcher(inv *Inventory, log logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(inv.layout.IssuedDir()); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{inv: inv, watcher: w, logger: log.WithComponent("inventory-watcher"), done: make(chan struct{})}, nil
}

// Run processes events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				w.inv.Evict(ev.Name)
				w.logger.Debug(ctx, "Evicted cached certificate metadata", logger.String("path", ev.Name), logger.String("op", ev.Op.String()))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "Watcher error", logger.Error(err))
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Done is closed once Run has returned.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
