// Package tui is the interactive shopping list: sign-in, create or join,
// and the live list itself. Every action goes through the app client.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/shoplist/internal/gateway"
	"github.com/idilsaglam/shoplist/internal/identity"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/session"
	"github.com/idilsaglam/shoplist/internal/syncer"
	"github.com/idilsaglam/shoplist/internal/ui"
)

// Client is what the presentation needs from the session context.
type Client interface {
	Identity() *identity.Identity
	ListCode() string
	View() syncer.View
	Updates() <-chan syncer.View
	Refresh()

	SignIn(ctx context.Context, token string) (*identity.Identity, error)
	SignInAnonymously(ctx context.Context) (*identity.Identity, error)
	SignOut(ctx context.Context) error
	Join(code string) (string, error)
	Create() (string, error)
	Leave(confirm func() bool) error
	ShareURL() (string, error)

	Add(ctx context.Context, name string, category model.Category) (string, error)
	ToggleComplete(ctx context.Context, item model.Item) error
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	Delete(ctx context.Context, id string) error
	ClearCompleted(ctx context.Context) (int, error)
}

type screen int

const (
	screenLogin screen = iota
	screenJoin
	screenLoading
	screenList
)

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeToken
	modeCode
	modeConfirmLeave
)

type viewMsg syncer.View

type updatesClosedMsg struct{}

// resultMsg reports a finished mutation.
type resultMsg struct {
	ok  string
	err error
}

// listItem adapts model.Item to bubbles/list.Item.
type listItem struct{ model.Item }

func (i listItem) Title() string       { return i.Name }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Name }

// itemDelegate renders one item per line.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	box := mutedStyle.Render(boxUnchecked)
	name := it.Category.Icon() + " " + it.Name
	if it.Completed {
		box = successStyle.Render(boxChecked)
		name = doneStyle.Render(name)
	}
	line := box + " " + name
	if it.Quantity > 1 {
		line += accentStyle.Render(fmt.Sprintf(" ×%d", it.Quantity))
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

// Model is the bubbletea model for the whole program.
type Model struct {
	ctx    context.Context
	client Client
	keys   keyMap
	copy   func(string) error

	view     syncer.View
	list     list.Model
	input    textinput.Model
	mode     mode
	category model.Category

	status    string
	statusErr bool
	width     int
	height    int
}

func New(ctx context.Context, c Client) Model {
	keys := defaultKeys()

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("item", "items")
	l.KeyMap.Quit.SetEnabled(false)
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.Add, keys.Toggle, keys.Share} }
	l.AdditionalFullHelpKeys = keys.listHelp

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	m := Model{
		ctx:      ctx,
		client:   c,
		keys:     keys,
		copy:     clipboard.WriteAll,
		list:     l,
		input:    ti,
		category: model.General,
		width:    80,
		height:   24,
	}
	m.setView(c.View())
	m.resize()
	return m
}

// Run starts the program on the alternate screen until the user quits.
func Run(ctx context.Context, c Client) error {
	p := tea.NewProgram(New(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd { return waitForView(m.client.Updates()) }

func waitForView(ch <-chan syncer.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return viewMsg(v)
	}
}

func (m Model) screen() screen {
	switch {
	case m.client.Identity() == nil:
		return screenLogin
	case m.client.ListCode() == "":
		return screenJoin
	case m.view.Loading:
		return screenLoading
	default:
		return screenList
	}
}

func (m *Model) setView(v syncer.View) {
	m.view = v
	sorted := model.SortForDisplay(v.Items)
	items := make([]list.Item, len(sorted))
	for i, it := range sorted {
		items[i] = listItem{it}
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) && len(items) > 0 {
		m.list.Select(len(items) - 1)
	}

	done, total := model.Stats(v.Items)
	m.list.Title = fmt.Sprintf("%s %s   %s %d  %s %d  %s %d",
		titleStyle.Render("List"), accentStyle.Render(v.Code),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), total-done,
		accentStyle.Render("Total"), total,
	)
}

// rebound re-reads the client view after a local session transition.
func (m *Model) rebound() { m.setView(m.client.View()) }

func (m *Model) resize() {
	reserved := 6
	if m.mode != modeBrowse {
		reserved += 4
	}
	m.list.SetSize(max(m.width-4, 20), max(m.height-reserved, 5))
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status, m.statusErr = msg, isErr
}

func (m *Model) report(ok string, err error) {
	switch {
	case err == nil:
		m.setStatus(ok, false)
	case errors.Is(err, gateway.ErrEmptyName):
		m.setStatus("Name cannot be empty", true)
	case errors.Is(err, gateway.ErrInvalidQuantity):
		m.setStatus("Quantity must be at least 1", true)
	case errors.Is(err, gateway.ErrNoSession):
		m.setStatus("Sign in and pick a list first", true)
	default:
		m.setStatus(err.Error(), true)
	}
}

// mutate runs fn off the update loop; the store pushes the resulting list.
func (m Model) mutate(ok string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{ok: ok, err: fn(ctx)}
	}
}

func (m *Model) prompt(md mode, placeholder string, echo textinput.EchoMode) tea.Cmd {
	m.mode = md
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.EchoMode = echo
	m.resize()
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.mode = modeBrowse
	m.input.SetValue("")
	m.input.Blur()
	m.resize()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case viewMsg:
		// a view taken off the channel before a local rebound is older
		// than what rebound already showed
		if v := syncer.View(msg); v.Generation >= m.view.Generation {
			m.setView(v)
		}
		return m, waitForView(m.client.Updates())

	case updatesClosedMsg:
		return m, tea.Quit

	case resultMsg:
		m.report(msg.ok, msg.err)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeAdd:
			return m.updateAdd(msg)
		case modeToken, modeCode:
			return m.updatePrompt(msg)
		case modeConfirmLeave:
			return m.updateConfirm(msg)
		}
		switch m.screen() {
		case screenLogin:
			return m.updateLogin(msg)
		case screenJoin:
			return m.updateJoin(msg)
		default:
			return m.updateList(msg)
		}
	}

	var cmd tea.Cmd
	if m.mode != modeBrowse {
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Guest):
		id, err := m.client.SignInAnonymously(m.ctx)
		if err != nil {
			m.report("", err)
			return m, nil
		}
		m.setStatus("Signed in as "+id.Name, false)
		m.rebound()
	case key.Matches(msg, m.keys.Token):
		cmd := m.prompt(modeToken, "Paste your token...", textinput.EchoPassword)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateJoin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Create):
		code, err := m.client.Create()
		if err != nil {
			m.report("", err)
			return m, nil
		}
		m.setStatus("Created list "+code, false)
		m.rebound()
	case key.Matches(msg, m.keys.Join):
		cmd := m.prompt(modeCode, "List code, e.g. 54321", textinput.EchoNormal)
		return m, cmd
	case key.Matches(msg, m.keys.SignOut):
		return m.signOut()
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.SignOut):
		return m.signOut()
	case key.Matches(msg, k.Leave):
		m.mode = modeConfirmLeave
		return m, nil
	case key.Matches(msg, k.Refresh):
		m.client.Refresh()
		m.rebound()
		m.setStatus("Refreshing...", false)
		return m, nil
	case key.Matches(msg, k.Share):
		m.share()
		return m, nil
	case key.Matches(msg, k.Add):
		m.category = model.General
		cmd := m.prompt(modeAdd, "Item name...", textinput.EchoNormal)
		return m, cmd
	case key.Matches(msg, k.Clear):
		ctx, client := m.ctx, m.client
		return m, func() tea.Msg {
			n, err := client.ClearCompleted(ctx)
			return resultMsg{ok: fmt.Sprintf("Cleared %d completed", n), err: err}
		}
	}

	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	switch {
	case key.Matches(msg, k.Toggle):
		return m, m.mutate("", func(ctx context.Context) error { return m.client.ToggleComplete(ctx, it.Item) })
	case key.Matches(msg, k.More):
		return m, m.mutate("", func(ctx context.Context) error { return m.client.UpdateQuantity(ctx, it.ID, it.Quantity+1) })
	case key.Matches(msg, k.Less):
		return m, m.mutate("", func(ctx context.Context) error { return m.client.UpdateQuantity(ctx, it.ID, it.Quantity-1) })
	case key.Matches(msg, k.Delete):
		return m, m.mutate("Removed "+it.Name, func(ctx context.Context) error { return m.client.Delete(ctx, it.ID) })
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closePrompt()
		return m, nil
	case key.Matches(msg, m.keys.Category):
		m.category = m.category.Next()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.setStatus("Name cannot be empty", true)
			return m, nil
		}
		cat := m.category
		m.closePrompt()
		return m, m.mutate("Added "+name, func(ctx context.Context) error {
			_, err := m.client.Add(ctx, name, cat)
			return err
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closePrompt()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		value := m.input.Value()
		md := m.mode
		m.closePrompt()
		if md == modeToken {
			id, err := m.client.SignIn(m.ctx, value)
			if err != nil {
				m.report("", err)
				return m, nil
			}
			m.setStatus("Signed in as "+id.Name, false)
		} else {
			code, err := m.client.Join(value)
			if err != nil {
				if errors.Is(err, session.ErrEmptyCode) {
					m.setStatus("Enter a list code", true)
				} else {
					m.report("", err)
				}
				return m, nil
			}
			m.setStatus("Joined list "+code, false)
		}
		m.rebound()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var answer bool
	switch {
	case key.Matches(msg, m.keys.Yes):
		answer = true
	case key.Matches(msg, m.keys.No):
	default:
		return m, nil
	}
	m.mode = modeBrowse
	code := m.client.ListCode()
	err := m.client.Leave(func() bool { return answer })
	switch {
	case errors.Is(err, session.ErrLeaveDeclined):
		m.setStatus("", false)
	case err != nil:
		m.report("", err)
	default:
		m.setStatus("Left list "+code, false)
		m.rebound()
	}
	return m, nil
}

func (m Model) signOut() (tea.Model, tea.Cmd) {
	if err := m.client.SignOut(m.ctx); err != nil {
		m.report("", err)
		return m, nil
	}
	m.setStatus("Signed out", false)
	m.rebound()
	return m, nil
}

func (m *Model) share() {
	url, err := m.client.ShareURL()
	if err != nil {
		m.report("", err)
		return
	}
	if err := m.copy(url); err != nil {
		m.setStatus("Share this link: "+url, false)
		return
	}
	m.setStatus("Link copied: "+url, false)
}

// ---------------------------------------------------
// Rendering
// ---------------------------------------------------

func (m Model) View() string {
	var body string
	switch m.screen() {
	case screenLogin:
		body = m.loginView()
	case screenJoin:
		body = m.joinView()
	case screenLoading:
		body = titleStyle.Render("Shopping list "+m.view.Code) + "\n\n" + mutedStyle.Render("Loading...")
	default:
		body = m.listView()
	}

	switch m.mode {
	case modeAdd:
		title := fmt.Sprintf("Add item  %s %s  %s", m.category.Icon(), m.category, helpStyle.Render("(tab: category)"))
		body += "\n" + frameStyle.Render(title+"\n"+m.input.View())
	case modeToken:
		body += "\n" + frameStyle.Render("Sign in with token\n"+m.input.View())
	case modeCode:
		body += "\n" + frameStyle.Render("Join a list\n"+m.input.View())
	case modeConfirmLeave:
		body += "\n" + frameStyle.Render(errorStyle.Render("Leave list "+m.client.ListCode()+"?")+"  y/n")
	}

	if m.status != "" {
		st := successStyle
		if m.statusErr {
			st = errorStyle
		}
		body += "\n" + st.Render(m.status)
	}
	return frameStyle.Render(body)
}

func (m Model) loginView() string {
	return strings.Join([]string{
		titleStyle.Render("Shopping list"),
		"",
		"Share a list with anyone who has its code.",
		"",
		helpLine(m.keys.Token, m.keys.Guest, m.keys.Quit),
	}, "\n")
}

func (m Model) joinView() string {
	who := "guest"
	if id := m.client.Identity(); id != nil && id.Name != "" {
		who = id.Name
	}
	return strings.Join([]string{
		titleStyle.Render("Hello, " + who),
		"",
		"Create a new list or join one with its code.",
		"",
		helpLine(m.keys.Create, m.keys.Join, m.keys.SignOut, m.keys.Quit),
	}, "\n")
}

func (m Model) listView() string {
	done, total := model.Stats(m.view.Items)
	lines := []string{mutedStyle.Render(ui.ProgressBar(done, total, 28))}
	if m.view.Err != nil {
		lines = append(lines, errorStyle.Render("Live updates stopped: "+m.view.Err.Error()+" (r to retry)"))
	}
	lines = append(lines, m.list.View())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, accentStyle.Render(h.Key)+" "+helpStyle.Render(h.Desc))
	}
	return strings.Join(parts, "   ")
}
