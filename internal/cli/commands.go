package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/gateway"
	"github.com/kjstillabower/weather-zones/internal/models"
	"github.com/kjstillabower/weather-zones/internal/search"
	"github.com/kjstillabower/weather-zones/internal/table"
	"github.com/kjstillabower/weather-zones/internal/ui"
)

func (a *App) register(ctx context.Context) error {
	username, err := promptText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := promptText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := promptPassword(a.reader, a.out)
	if err != nil {
		return err
	}

	user, err := a.auth.Register(ctx, username, email, password)
	if err != nil {
		fmt.Fprintln(a.out, gateway.UserMessage(err))
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s!\n", user.Username)
	return a.list(ctx)
}

func (a *App) login(ctx context.Context) error {
	login, err := promptText(a.reader, "Username or email", a.out)
	if err != nil {
		return err
	}
	password, err := promptPassword(a.reader, a.out)
	if err != nil {
		return err
	}

	user, err := a.auth.Login(ctx, login, password)
	if err != nil {
		fmt.Fprintln(a.out, gateway.UserMessage(err))
		return err
	}
	fmt.Fprintf(a.out, "Welcome back, %s!\n", user.Username)
	return a.list(ctx)
}

func (a *App) logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		a.logger.Debug("logout", zap.Error(err))
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) list(ctx context.Context) error {
	view, err := a.table.Load(ctx)
	if err != nil {
		fmt.Fprintln(a.out, gateway.UserMessage(err))
		return err
	}
	renderTable(a.out, view)
	return nil
}

func (a *App) sort(column string) error {
	var key table.SortKey
	switch column {
	case "name":
		key = table.SortByName
	case "city":
		key = table.SortByCity
	case "temp", "temperature":
		key = table.SortByTemperature
	case "updated":
		key = table.SortByUpdated
	default:
		fmt.Fprintln(a.out, "Usage: sort name|city|temp|updated")
		return nil
	}
	renderTable(a.out, a.table.SetSort(key))
	return nil
}

func (a *App) page(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: page <number>")
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(a.out, "Usage: page <number>")
		return nil
	}
	view, err := a.table.SetPage(ctx, n)
	if err != nil {
		fmt.Fprintln(a.out, gateway.UserMessage(err))
		return err
	}
	renderTable(a.out, view)
	return nil
}

func (a *App) nextPage(ctx context.Context) error {
	view, err := a.table.NextPage(ctx)
	if err != nil {
		fmt.Fprintln(a.out, gateway.UserMessage(err))
		return err
	}
	renderTable(a.out, view)
	return nil
}

func (a *App) prevPage(ctx context.Context) error {
	view, err := a.table.PrevPage(ctx)
	if err != nil {
		fmt.Fprintln(a.out, gateway.UserMessage(err))
		return err
	}
	renderTable(a.out, view)
	return nil
}

// add searches for a city and saves the chosen result as a zone.
func (a *App) add(ctx context.Context) error {
	query, err := promptText(a.reader, "City", a.out)
	if err != nil {
		return err
	}

	a.search.OnInput(query)
	state := a.waitForSearch(query)
	if state.Err != nil {
		fmt.Fprintln(a.out, gateway.UserMessage(state.Err))
		return state.Err
	}
	if len(state.Results) == 0 {
		fmt.Fprintln(a.out, "No matching cities.")
		return nil
	}
	shown := renderSearchResults(a.out, state.Results)

	pickRaw, err := promptText(a.reader, "Pick a number (empty to cancel)", a.out)
	if err != nil {
		return err
	}
	if pickRaw == "" {
		return nil
	}
	pick, err := strconv.Atoi(pickRaw)
	if err != nil || pick < 1 || pick > shown {
		fmt.Fprintln(a.out, "Invalid choice.")
		return nil
	}

	req := models.ZoneFromCity(state.Results[pick-1])
	name, err := promptText(a.reader, fmt.Sprintf("Zone name [%s]", req.Name), a.out)
	if err != nil {
		return err
	}
	if name != "" {
		req.Name = name
	}

	zone, err := a.zones.Create(ctx, req)
	if err != nil {
		return err
	}
	a.notifier.Push(ui.SeveritySuccess, fmt.Sprintf("Added %s", zone.Name))
	return a.list(ctx)
}

// waitForSearch blocks until the debounced lookup for query settles, with a
// hard cap so a dead server cannot hang the prompt.
func (a *App) waitForSearch(query string) search.State {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state := a.search.Snapshot()
		if state.Query == query && !state.Searching && (state.Results != nil || state.Err != nil) {
			return state
		}
		if strings.TrimSpace(query) != "" && len([]rune(strings.TrimSpace(query))) < 2 {
			return state
		}
		time.Sleep(20 * time.Millisecond)
	}
	return a.search.Snapshot()
}

func (a *App) rename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(a.out, "Usage: rename <id> <new name>")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(a.out, "Usage: rename <id> <new name>")
		return nil
	}
	name := strings.Join(args[1:], " ")
	if _, err := a.zones.Update(ctx, id, models.UpdateZoneRequest{Name: &name}); err != nil {
		return err
	}
	return a.list(ctx)
}

func (a *App) remove(ctx context.Context, args []string) error {
	id, ok := a.parseID(args, "Usage: delete <id>")
	if !ok {
		return nil
	}
	if err := a.zones.Delete(ctx, id); err != nil {
		return err
	}
	return a.list(ctx)
}

func (a *App) refresh(ctx context.Context, args []string) error {
	id, ok := a.parseID(args, "Usage: refresh <id>")
	if !ok {
		return nil
	}
	if _, err := a.zones.RefreshWeather(ctx, id); err != nil {
		return err
	}
	return a.list(ctx)
}

func (a *App) parseID(args []string, usage string) (int64, bool) {
	if len(args) != 1 {
		fmt.Fprintln(a.out, usage)
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(a.out, usage)
		return 0, false
	}
	return id, true
}
