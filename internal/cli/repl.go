package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// execIface is the minimal command surface the REPL dispatches to. App
// satisfies it; tests substitute a stub.
type execIface interface {
	isLoggedIn() bool
	register(ctx context.Context) error
	login(ctx context.Context) error
	logout(ctx context.Context) error
	list(ctx context.Context) error
	sort(column string) error
	page(ctx context.Context, args []string) error
	nextPage(ctx context.Context) error
	prevPage(ctx context.Context) error
	add(ctx context.Context) error
	rename(ctx context.Context, args []string) error
	remove(ctx context.Context, args []string) error
	refresh(ctx context.Context, args []string) error
}

// Run starts the interactive loop. It restores the session's user in the
// background and exits on EOF or an explicit exit command.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "weather-zones (type 'help' for commands)")
	a.auth.Bootstrap(ctx)
	if a.isLoggedIn() {
		_ = a.list(ctx)
	}
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin), a.out)
	a.search.Close()
}

func (a *App) status() string {
	s := ""
	if u := a.sessions.Session().User; u != nil {
		s = u.Username
	} else if a.isLoggedIn() {
		s = "signed-in"
	}
	if a.busy.Busy() {
		s += " busy"
	}
	s = strings.TrimSpace(s)
	if s != "" {
		return "(" + s + ")"
	}
	return ""
}

// runREPL reads a command per line and dispatches. Handler errors are shown
// by the handlers themselves (or surface as toasts); the loop only drains
// pending toasts after each command and keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, w io.Writer) {
	drain := func() {}
	if app, ok := a.(*App); ok {
		drain = func() {
			toasts := app.notifier.Toasts()
			renderToasts(w, toasts)
			for _, t := range toasts {
				app.notifier.Remove(t.ID)
			}
		}
	}

	for {
		fmt.Fprintf(w, "zones %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Commands: list, sort <col>, next, prev, page <n>, add, rename <id> <name>, delete <id>, refresh <id>, logout, exit")
			} else {
				fmt.Fprintln(w, "Commands: register, login, exit")
			}
		case "register":
			_ = a.register(ctx)
		case "login":
			_ = a.login(ctx)
		case "logout":
			_ = a.logout(ctx)
		case "list", "l":
			_ = a.list(ctx)
		case "sort":
			col := ""
			if len(args) > 0 {
				col = args[0]
			}
			_ = a.sort(col)
		case "next", "n":
			_ = a.nextPage(ctx)
		case "prev", "p":
			_ = a.prevPage(ctx)
		case "page":
			_ = a.page(ctx, args)
		case "add":
			_ = a.add(ctx)
		case "rename":
			_ = a.rename(ctx, args)
		case "delete", "rm":
			_ = a.remove(ctx, args)
		case "refresh", "r":
			_ = a.refresh(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintf(w, "Unknown command %q (type 'help')\n", cmd)
		}
		drain()
	}
}
