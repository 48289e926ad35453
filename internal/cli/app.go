// Package cli is the interactive terminal frontend: a small REPL over the
// session, zones, search, and table layers.
package cli

import (
	"bufio"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/auth"
	"github.com/kjstillabower/weather-zones/internal/search"
	"github.com/kjstillabower/weather-zones/internal/session"
	"github.com/kjstillabower/weather-zones/internal/table"
	"github.com/kjstillabower/weather-zones/internal/ui"
	"github.com/kjstillabower/weather-zones/internal/zones"
)

// App holds the wired client layers plus terminal I/O.
type App struct {
	sessions *session.Store
	auth     *auth.Service
	zones    *zones.Coordinator
	table    *table.Controller
	search   *search.Controller
	notifier *ui.Notifier
	busy     *ui.BusyTracker
	logger   *zap.Logger

	reader *bufio.Reader
	out    io.Writer
}

// Deps lists everything an App needs.
type Deps struct {
	Sessions *session.Store
	Auth     *auth.Service
	Zones    *zones.Coordinator
	Table    *table.Controller
	Search   *search.Controller
	Notifier *ui.Notifier
	Busy     *ui.BusyTracker
	Logger   *zap.Logger
}

// NewApp builds an App reading from stdin and writing to stdout.
func NewApp(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		sessions: d.Sessions,
		auth:     d.Auth,
		zones:    d.Zones,
		table:    d.Table,
		search:   d.Search,
		notifier: d.Notifier,
		busy:     d.Busy,
		logger:   logger,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

func (a *App) isLoggedIn() bool {
	return a.sessions.Session().Authenticated
}
