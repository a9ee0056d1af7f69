package figcn

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/getlantern/golog"
	"github.com/pkg/errors"
)

// Reloader reloads a RuleStore from its source on SIGHUP and, optionally,
// whenever the rules file changes.
type Reloader struct {
	log     golog.Logger
	store   *RuleStore
	src     Source
	watcher *fsnotify.Watcher
	sigCh   chan os.Signal
	done    chan struct{}
	stopped chan struct{}
}

// NewReloader starts reloading store from src. If watch is true the directory
// holding src.Path is watched, so that editors replacing the file by renaming
// are noticed too. Call Close to stop.
func NewReloader(store *RuleStore, src Source, watch bool) (*Reloader, error) {
	r := &Reloader{
		log:     golog.LoggerFor("figcn-reloader"),
		store:   store,
		src:     src,
		sigCh:   make(chan os.Signal, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	if watch {
		if src.Kind != SourceExternal || src.Path == "" {
			return nil, errors.New("only an external rules file can be watched")
		}
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, errors.Wrap(err, "could not create file watcher")
		}
		if err := watcher.Add(filepath.Dir(src.Path)); err != nil {
			watcher.Close()
			return nil, errors.Wrapf(err, "could not watch %v", src.Path)
		}
		r.watcher = watcher
	}

	signal.Notify(r.sigCh, syscall.SIGHUP)
	go r.run()
	return r, nil
}

func (r *Reloader) run() {
	defer close(r.stopped)
	defer signal.Stop(r.sigCh)

	var events chan fsnotify.Event
	var errs chan error
	if r.watcher != nil {
		events = r.watcher.Events
		errs = r.watcher.Errors
	}

	target := filepath.Clean(r.src.Path)
	for {
		select {
		case <-r.done:
			return
		case <-r.sigCh:
			r.log.Debug("Received SIGHUP, reloading rules")
			r.store.Load(r.src)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			r.log.Debugf("Rules file changed (%v), reloading", event.Op)
			r.store.Load(r.src)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.log.Errorf("Error watching rules file: %v", err)
		}
	}
}

// Close stops reloading.
func (r *Reloader) Close() error {
	close(r.done)
	<-r.stopped
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}
