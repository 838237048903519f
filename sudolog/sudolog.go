// Package sudolog centralizes logrus setup for the sudo-rs-sub002
// binaries: one shared *logrus.Logger, configured once at startup, with
// per-component entries handed out via For. The teacher's packages each
// call logrus's package-level functions directly with no shared init
// step; this follows the singleton-initializer shape of
// gwcli/clilog.Init (gravwell-gravwell's CLI logging package) instead,
// since a multi-binary CLI suite (cmd/sudo, cmd/visudo, cmd/su,
// cmd/sudo-list) needs one place to decide output stream, level, and
// format before any component starts logging.
package sudolog

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	logger *logrus.Logger
)

// Options configures the shared logger. Debug switches to debug level
// with full timestamps, matching the teacher's sysbox-mgr "debug mode"
// convention of verbose logging during development. Output, when set,
// receives the log in either mode; otherwise it goes to stderr. Syslog is
// accepted and not used.
type Options struct {
	Output io.Writer
	Debug  bool
	Syslog bool
}

// Init configures the shared logger. Safe to call more than once; the
// last call wins. Binaries call this once, at startup, before any
// component obtains a *logrus.Entry via For.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	if opts.Debug {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	logger = l
}

// For returns a component-scoped entry. If Init was never called, it
// lazily configures a default logger writing to stderr at info level,
// so packages that import sudolog don't need a nil check.
func For(component string) *logrus.Entry {
	mu.Lock()
	l := logger
	if l == nil {
		l = logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}
	mu.Unlock()
	return l.WithField("component", component)
}
