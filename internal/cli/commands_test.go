package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/auth"
	"github.com/kjstillabower/weather-zones/internal/cache"
	"github.com/kjstillabower/weather-zones/internal/devserver"
	"github.com/kjstillabower/weather-zones/internal/gateway"
	"github.com/kjstillabower/weather-zones/internal/search"
	"github.com/kjstillabower/weather-zones/internal/session"
	"github.com/kjstillabower/weather-zones/internal/table"
	"github.com/kjstillabower/weather-zones/internal/ui"
	"github.com/kjstillabower/weather-zones/internal/zones"
)

// newScriptedApp wires the full client stack against a live dev server, with
// command input read from script instead of a terminal.
func newScriptedApp(t *testing.T, ts *httptest.Server, script string, out io.Writer) *App {
	t.Helper()

	sessions := session.NewStore(session.NewMemoryStorage(), nil)
	client, err := gateway.New(gateway.Config{
		BaseURL:        ts.URL,
		Tokens:         sessions,
		OnUnauthorized: func() { _ = sessions.Clear() },
	})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	engine := cache.NewEngine(cache.Config{}, nil, nil)
	notifier := ui.NewNotifier()
	busy := ui.NewBusyTracker()
	coord := zones.NewCoordinator(client, engine, notifier, busy, sessions, nil)

	return &App{
		sessions: sessions,
		auth:     auth.NewService(client, sessions, engine, notifier, nil),
		zones:    coord,
		table:    table.NewController(coord, 10),
		search:   search.NewController(client, engine, search.Options{Debounce: 10 * time.Millisecond}, nil),
		notifier: notifier,
		busy:     busy,
		logger:   zap.NewNop(),
		reader:   bufio.NewReader(strings.NewReader(script)),
		out:      out,
	}
}

// TestAddPushesSuccessToast verifies the city-pick create flow announces the
// saved zone through the notifier so the REPL's toast drain renders it.
func TestAddPushesSuccessToast(t *testing.T) {
	ts := httptest.NewServer(devserver.New(nil).Router())
	defer ts.Close()

	var out bytes.Buffer
	// City query, result pick, default zone name.
	a := newScriptedApp(t, ts, "London\n1\n\n", &out)
	defer a.search.Close()
	ctx := context.Background()

	if _, err := a.auth.Register(ctx, "ada", "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := a.add(ctx); err != nil {
		t.Fatalf("add() error = %v", err)
	}

	var added *ui.Toast
	for _, toast := range a.notifier.Toasts() {
		if strings.HasPrefix(toast.Message, "Added ") {
			tc := toast
			added = &tc
		}
	}
	if added == nil {
		t.Fatalf("no success toast pushed, toasts = %+v", a.notifier.Toasts())
	}
	if added.Severity != ui.SeveritySuccess {
		t.Fatalf("Severity = %s, want %s", added.Severity, ui.SeveritySuccess)
	}
	if added.Message != "Added London" {
		t.Fatalf("Message = %q, want %q", added.Message, "Added London")
	}
}

// TestAddRejectsPickBeyondRenderedList verifies a pick past the displayed
// rows is refused without creating anything.
func TestAddRejectsPickBeyondRenderedList(t *testing.T) {
	ts := httptest.NewServer(devserver.New(nil).Router())
	defer ts.Close()

	var out bytes.Buffer
	a := newScriptedApp(t, ts, "Lond\n9\n", &out)
	defer a.search.Close()
	ctx := context.Background()

	if _, err := a.auth.Register(ctx, "ada", "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := a.add(ctx); err != nil {
		t.Fatalf("add() error = %v", err)
	}
	if !strings.Contains(out.String(), "Invalid choice.") {
		t.Fatalf("output = %q, want invalid-choice notice", out.String())
	}

	list, _, err := a.zones.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("Total = %d, want no zone created", list.Total)
	}
}
