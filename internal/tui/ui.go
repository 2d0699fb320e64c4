// Package tui renders the interactive sidebar: a grouped server table with a
// per-server event log pane, plus keybindings that drive start, stop and
// restart through the shared controller.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/portside-dev/portside/internal/api"
	"github.com/portside-dev/portside/internal/cliutil"
	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/monitor"
)

const (
	tableTitle          = "Servers"
	logsTitle           = "Events"
	filterPageName      = "filter"
	defaultLogRetention = 500
	actionTimeout       = 30 * time.Second
)

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of event records retained per server.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// UI coordinates the interactive status interface backed by tview.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	logs   *tview.TextView
	events chan monitor.Event
	ctrl   api.Controller

	servers map[string]*serverState

	visible     []string
	selected    string
	logsPretty  bool
	filter      string
	filterExpr  *regexp.Regexp
	logsFocused bool
	maxLogs     int

	mu sync.RWMutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type serverState struct {
	name      string
	group     string
	url       string
	firstSeen time.Time
	lastEvent time.Time
	state     monitor.EventType
	up        bool
	restarts  int
	message   string

	logs []cliutil.LogRecord
}

// New constructs a UI seeded with the manifest's servers so every configured
// entry is visible before its first event arrives.
func New(ctrl api.Controller, manifest *config.Manifest, opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)
	logs.SetChangedFunc(func() {
		app.Draw()
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 3, true).
		AddItem(logs, 0, 2, false)

	pages := tview.NewPages().AddPage("main", flex, true, true)

	ui := &UI{
		app:        app,
		pages:      pages,
		table:      table,
		logs:       logs,
		events:     make(chan monitor.Event, 256),
		ctrl:       ctrl,
		servers:    make(map[string]*serverState),
		logsPretty: true,
		maxLogs:    defaultLogRetention,
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	if manifest != nil {
		for _, entry := range manifest.Servers {
			if entry == nil {
				continue
			}
			ui.servers[entry.Name] = &serverState{
				name:  entry.Name,
				group: entry.Group,
				url:   entry.URL,
			}
		}
	}

	table.SetSelectedFunc(func(row, column int) {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		ui.syncSelection(row)
		ui.renderLogsLocked()
	})

	table.SetSelectionChangedFunc(func(row, column int) {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		ui.syncSelection(row)
		ui.renderLogsLocked()
	})

	logs.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter || (event.Key() == tcell.KeyRune && event.Rune() == '\n') {
			ui.toggleFocus()
			return nil
		}
		return event
	})

	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.mu.Unlock()

	return ui
}

// EventSink exposes the channel where monitor events should be delivered.
func (u *UI) EventSink() chan<- monitor.Event {
	return u.events
}

// CloseEvents releases the event channel, allowing internal goroutines to exit cleanly.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and processes incoming events until Stop is
// invoked or the provided context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop and releases resources.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	draining := false
	ctxDone := ctx.Done()

	for {
		var tick <-chan time.Time
		if !draining {
			tick = ticker.C
		}

		select {
		case <-ctxDone:
			if !draining {
				draining = true
				ticker.Stop()
			}
			ctxDone = nil
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			if draining {
				continue
			}
			u.applyEvent(evt)
		case <-tick:
			if !draining {
				u.refreshAge()
			}
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if focus := u.app.GetFocus(); focus != nil && focus != u.table && focus != u.logs {
		// An overlay (filter prompt or modal) owns input.
		return event
	}
	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case '/':
			u.showFilterPrompt()
			return nil
		case 'j', 'J':
			u.toggleJSON()
			return nil
		case 's', 'S':
			u.runAction("start")
			return nil
		case 'x', 'X':
			u.runAction("stop")
			return nil
		case 'r', 'R':
			u.runAction("restart")
			return nil
		}
	}
	return event
}

// runAction drives the controller for the selected server off the UI
// goroutine. Failures surface as error events in the log pane.
func (u *UI) runAction(action string) {
	u.mu.RLock()
	name := u.selected
	u.mu.RUnlock()
	if name == "" || u.ctrl == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		var err error
		switch action {
		case "start":
			_, err = u.ctrl.StartServer(ctx, name)
		case "stop":
			_, err = u.ctrl.StopServer(ctx, name)
		case "restart":
			_, err = u.ctrl.RestartServer(ctx, name)
		}
		if err != nil {
			u.applyEvent(monitor.Event{
				Timestamp: time.Now(),
				Server:    name,
				Type:      monitor.EventTypeError,
				Message:   fmt.Sprintf("%s failed", action),
				Err:       err,
			})
		}
	}()
}

func (u *UI) toggleFocus() {
	if u.logsFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
	u.logsFocused = !u.logsFocused
}

func (u *UI) toggleJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logsPretty = !u.logsPretty
	u.renderLogsLocked()
}

func (u *UI) showFilterPrompt() {
	u.mu.RLock()
	current := u.filter
	u.mu.RUnlock()

	input := tview.NewInputField().
		SetLabel("Regex filter: ").
		SetText(current).
		SetFieldWidth(40)

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Apply", func() {
			u.applyFilter(input.GetText())
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		}).
		AddButton("Cancel", func() {
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		})

	form.SetBorder(true).SetTitle("Filter Servers")

	grid := tview.NewGrid().
		SetColumns(0, 60, 0).
		SetRows(0, 7, 0).
		AddItem(form, 1, 1, 1, 1, 0, 0, true)

	u.pages.AddPage(filterPageName, grid, true, true)
	u.app.SetFocus(input)
}

func (u *UI) applyFilter(expr string) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		u.mu.Lock()
		u.filter = ""
		u.filterExpr = nil
		u.mu.Unlock()
		u.queueRefresh(true)
		return
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		u.showErrorModal(fmt.Sprintf("Invalid filter: %v", err))
		return
	}

	u.mu.Lock()
	u.filter = expr
	u.filterExpr = re
	u.mu.Unlock()
	u.queueRefresh(true)
}

func (u *UI) showErrorModal(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		})

	// Ensure previous filter prompt is removed to avoid stacking pages.
	u.pages.RemovePage(filterPageName)
	u.pages.AddPage(filterPageName, modal, true, true)
}

func (u *UI) applyEvent(evt monitor.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	u.mu.Lock()
	u.applyEventLocked(evt)
	selected := evt.Server == u.selected
	updateLogs := selected || u.selected == ""
	u.mu.Unlock()

	u.queueRefresh(updateLogs)
}

func (u *UI) applyEventLocked(evt monitor.Event) {
	state := u.servers[evt.Server]
	if state == nil {
		state = &serverState{name: evt.Server, firstSeen: evt.Timestamp}
		u.servers[evt.Server] = state
	}
	state.lastEvent = evt.Timestamp
	if state.firstSeen.IsZero() {
		state.firstSeen = evt.Timestamp
	}

	state.state = evt.Type
	switch evt.Type {
	case monitor.EventTypeUp:
		state.up = true
	case monitor.EventTypeDown, monitor.EventTypeStopped, monitor.EventTypeKilled, monitor.EventTypeError:
		state.up = false
	case monitor.EventTypeStarting:
		state.restarts++
	}
	state.message = formatEventMessage(evt)

	record := cliutil.NewLogRecord(evt)
	if record.Timestamp.IsZero() {
		record.Timestamp = evt.Timestamp
	}
	state.logs = append(state.logs, record)
	if len(state.logs) > u.maxLogs {
		trim := len(state.logs) - u.maxLogs
		state.logs = append([]cliutil.LogRecord(nil), state.logs[trim:]...)
	}
}

func (u *UI) refreshAge() {
	u.queueRefresh(false)
}

func (u *UI) queueRefresh(updateLogs bool) {
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshTableLocked()
		if updateLogs {
			u.renderLogsLocked()
		}
	})
}

func (u *UI) refreshTableLocked() {
	u.table.Clear()

	headers := []string{"SERVER", "GROUP", "STATE", "UP", "RESTARTS", "AGE", "MESSAGE"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	names := make([]string, 0, len(u.servers))
	for name := range u.servers {
		if u.filterExpr != nil && !u.filterExpr.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := u.servers[names[i]], u.servers[names[j]]
		if a.group != b.group {
			return a.group < b.group
		}
		return a.name < b.name
	})

	u.visible = names

	if u.filter != "" {
		u.table.SetTitle(fmt.Sprintf("%s /%s/", tableTitle, u.filter))
	} else {
		u.table.SetTitle(tableTitle)
	}

	for row, name := range names {
		state := u.servers[name]
		age := "-"
		if !state.firstSeen.IsZero() {
			age = units.HumanDuration(time.Since(state.firstSeen))
		}
		glyph := "○"
		glyphColor := tcell.ColorRed
		if state.up {
			glyph = "●"
			glyphColor = tcell.ColorGreen
		}
		message := cliutil.RedactSecrets(state.message)
		if len(message) > 80 {
			message = message[:77] + "..."
		}

		values := []string{
			name,
			state.group,
			formatState(state.state),
			glyph,
			fmt.Sprintf("%d", state.restarts),
			age,
			message,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell = cell.SetReference(name)
			}
			if col == 3 {
				cell = cell.SetTextColor(glyphColor)
			}
			u.table.SetCell(row+1, col, cell)
		}
	}

	u.ensureSelectionLocked()
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	var state *serverState
	if u.selected != "" {
		state = u.servers[u.selected]
	}
	if state == nil {
		u.logs.SetTitle(logsTitle)
		return
	}

	u.logs.SetTitle(fmt.Sprintf("%s (%s)", logsTitle, state.name))

	for _, record := range state.logs {
		var data []byte
		var err error
		if u.logsPretty {
			data, err = json.MarshalIndent(record, "", "  ")
		} else {
			data, err = json.Marshal(record)
		}
		if err != nil {
			fmt.Fprintf(u.logs, "{\"error\":\"%v\"}\n", err)
			continue
		}
		fmt.Fprintf(u.logs, "%s\n", data)
	}
	u.logs.ScrollToEnd()
}

func (u *UI) ensureSelectionLocked() {
	if len(u.visible) == 0 {
		u.selected = ""
		u.table.Select(0, 0)
		return
	}

	idx := 0
	if u.selected != "" {
		for i, name := range u.visible {
			if name == u.selected {
				idx = i
				break
			}
		}
	} else {
		u.selected = u.visible[0]
	}

	if idx >= len(u.visible) {
		idx = len(u.visible) - 1
	}
	if u.selected == "" && len(u.visible) > 0 {
		u.selected = u.visible[idx]
	}
	u.table.Select(idx+1, 0)
}

func (u *UI) syncSelection(row int) {
	if row <= 0 || row-1 >= len(u.visible) {
		return
	}
	u.selected = u.visible[row-1]
}

func formatEventMessage(evt monitor.Event) string {
	var parts []string
	if evt.Message != "" {
		parts = append(parts, evt.Message)
	}
	if evt.Err != nil {
		parts = append(parts, evt.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func formatState(t monitor.EventType) string {
	if t == "" {
		return "-"
	}
	s := string(t)
	if len(s) <= 1 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
