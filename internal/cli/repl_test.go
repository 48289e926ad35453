package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
)

// stubExec records which commands the REPL dispatched.
type stubExec struct {
	loggedIn bool
	calls    []string
}

func (s *stubExec) record(name string) error {
	s.calls = append(s.calls, name)
	return nil
}

func (s *stubExec) isLoggedIn() bool { return s.loggedIn }
func (s *stubExec) register(ctx context.Context) error { return s.record("register") }
func (s *stubExec) login(ctx context.Context) error { return s.record("login") }
func (s *stubExec) logout(ctx context.Context) error { return s.record("logout") }
func (s *stubExec) list(ctx context.Context) error { return s.record("list") }
func (s *stubExec) sort(column string) error { return s.record("sort " + column) }
func (s *stubExec) nextPage(ctx context.Context) error { return s.record("next") }
func (s *stubExec) prevPage(ctx context.Context) error { return s.record("prev") }
func (s *stubExec) add(ctx context.Context) error { return s.record("add") }
func (s *stubExec) page(ctx context.Context, args []string) error { return s.record("page") }
func (s *stubExec) rename(ctx context.Context, args []string) error { return s.record("rename") }
func (s *stubExec) remove(ctx context.Context, args []string) error { return s.record("delete") }
func (s *stubExec) refresh(ctx context.Context, args []string) error { return s.record("refresh") }

func runScript(t *testing.T, exec execIface, script string) string {
	t.Helper()
	var out bytes.Buffer
	scanner := bufio.NewScanner(strings.NewReader(script))
	runREPL(context.Background(), exec, func() string { return "" }, scanner, &out)
	return out.String()
}

// TestREPLDispatch verifies each command line reaches its handler.
func TestREPLDispatch(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	runScript(t, exec, "list\nsort temp\nnext\nprev\nadd\nrename 1 Home\ndelete 1\nrefresh 1\nlogout\nexit\n")

	want := []string{"list", "sort temp", "next", "prev", "add", "rename", "delete", "refresh", "logout"}
	if len(exec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}
	for i := range want {
		if exec.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %q, want %q", i, exec.calls[i], want[i])
		}
	}
}

// TestREPLAliases verifies short aliases map to the same handlers.
func TestREPLAliases(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	runScript(t, exec, "l\nn\np\nrm 1\nr 1\nquit\n")

	want := []string{"list", "next", "prev", "delete", "refresh"}
	if len(exec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}
}

// TestREPLUnknownCommand verifies unknown input is reported, not fatal.
func TestREPLUnknownCommand(t *testing.T) {
	exec := &stubExec{}
	out := runScript(t, exec, "frobnicate\nlogin\n")

	if !strings.Contains(out, "Unknown command") {
		t.Fatalf("output %q missing unknown-command notice", out)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "login" {
		t.Fatalf("calls = %v, want the loop to continue after an unknown command", exec.calls)
	}
}

// TestREPLHelpByLoginState verifies help adapts to authentication.
func TestREPLHelpByLoginState(t *testing.T) {
	out := runScript(t, &stubExec{}, "help\n")
	if !strings.Contains(out, "register, login") {
		t.Fatalf("logged-out help = %q", out)
	}

	out = runScript(t, &stubExec{loggedIn: true}, "help\n")
	if !strings.Contains(out, "logout") {
		t.Fatalf("logged-in help = %q", out)
	}
}

// TestREPLExitsOnEOF verifies a script without an exit command terminates.
func TestREPLExitsOnEOF(t *testing.T) {
	exec := &stubExec{}
	runScript(t, exec, "")
	if len(exec.calls) != 0 {
		t.Fatalf("calls = %v, want none", exec.calls)
	}
}

// TestREPLSkipsBlankLines verifies empty input lines are ignored.
func TestREPLSkipsBlankLines(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	runScript(t, exec, "\n\nlist\n\nexit\n")
	if len(exec.calls) != 1 || exec.calls[0] != "list" {
		t.Fatalf("calls = %v, want [list]", exec.calls)
	}
}
