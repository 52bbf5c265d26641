package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/shoplist/internal/gateway"
	"github.com/idilsaglam/shoplist/internal/identity"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/session"
	"github.com/idilsaglam/shoplist/internal/syncer"
)

// fakeClient records calls and serves a fixed view.
type fakeClient struct {
	id      *identity.Identity
	code    string
	view    syncer.View
	updates chan syncer.View

	added    []model.Item
	toggled  []string
	quantity map[string]int
	deleted  []string
	cleared  int
	left     bool
	refresh  int
	err      error
}

func newFake() *fakeClient {
	return &fakeClient{updates: make(chan syncer.View, 1), quantity: map[string]int{}}
}

func (f *fakeClient) Identity() *identity.Identity { return f.id }
func (f *fakeClient) ListCode() string              { return f.code }
func (f *fakeClient) View() syncer.View             { return f.view }
func (f *fakeClient) Updates() <-chan syncer.View   { return f.updates }
func (f *fakeClient) Refresh()                      { f.refresh++ }

func (f *fakeClient) SignIn(_ context.Context, token string) (*identity.Identity, error) {
	if token != "good" {
		return nil, identity.ErrInvalidToken
	}
	f.id = &identity.Identity{ID: "ana", Kind: identity.Interactive, Name: "Ana"}
	return f.id, nil
}

func (f *fakeClient) SignInAnonymously(context.Context) (*identity.Identity, error) {
	f.id = &identity.Identity{ID: "guest-1", Kind: identity.Anonymous, Name: "Guest"}
	return f.id, nil
}

func (f *fakeClient) SignOut(context.Context) error {
	f.id = nil
	f.view = syncer.View{Generation: f.view.Generation + 1}
	return nil
}

func (f *fakeClient) Join(code string) (string, error) {
	if code == "" {
		return "", session.ErrEmptyCode
	}
	f.code = code
	f.view = syncer.View{Generation: f.view.Generation + 1, IdentityID: f.id.ID, Code: code, Loading: true}
	return code, nil
}

func (f *fakeClient) Create() (string, error) { return f.Join("24680") }

func (f *fakeClient) Leave(confirm func() bool) error {
	if !confirm() {
		return session.ErrLeaveDeclined
	}
	f.left = true
	f.code = ""
	f.view = syncer.View{Generation: f.view.Generation + 1, IdentityID: f.id.ID}
	return nil
}

func (f *fakeClient) ShareURL() (string, error) {
	return "https://shoplist.app/?list=" + f.code, nil
}

func (f *fakeClient) Add(_ context.Context, name string, c model.Category) (string, error) {
	f.added = append(f.added, model.Item{Name: name, Category: c})
	return "new", f.err
}

func (f *fakeClient) ToggleComplete(_ context.Context, it model.Item) error {
	f.toggled = append(f.toggled, it.ID)
	return f.err
}

func (f *fakeClient) UpdateQuantity(_ context.Context, id string, q int) error {
	if q < 1 {
		return gateway.ErrInvalidQuantity
	}
	f.quantity[id] = q
	return f.err
}

func (f *fakeClient) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeClient) ClearCompleted(context.Context) (int, error) {
	f.cleared++
	return 1, f.err
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySpace = tea.KeyMsg{Type: tea.KeySpace}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
)

// press feeds msg to m and runs a returned command once, feeding its
// result back when it is a resultMsg.
func press(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if res, ok := runCmd(cmd).(resultMsg); ok {
			next, _ = m.Update(res)
			m = next.(Model)
		}
	}
	return m
}

// runCmd gives up on commands that wait, such as cursor blinks or the
// updates channel.
func runCmd(cmd tea.Cmd) tea.Msg {
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func signedInOnList(t *testing.T) (*fakeClient, Model) {
	t.Helper()
	f := newFake()
	f.id = &identity.Identity{ID: "ana", Kind: identity.Interactive, Name: "Ana"}
	f.code = "54321"
	f.view = syncer.View{Generation: 1, IdentityID: "ana", Code: "54321", Items: []model.Item{
		{ID: "1", Name: "Milk", Category: model.Dairy, Quantity: 1, Completed: true},
		{ID: "2", Name: "Apples", Category: model.Fruit, Quantity: 3},
	}}
	m := New(context.Background(), f)
	m.copy = func(string) error { return nil }
	return f, m
}

func TestScreens(t *testing.T) {
	f := newFake()
	m := New(context.Background(), f)
	assert.Equal(t, screenLogin, m.screen())
	assert.Contains(t, m.View(), "continue as guest")

	m = press(t, m, keyRunes("g"))
	assert.Equal(t, screenJoin, m.screen())
	assert.Contains(t, m.View(), "Hello, Guest")

	m = press(t, m, keyRunes("n"))
	assert.Equal(t, "24680", f.code)
	assert.Equal(t, screenLoading, m.screen())
	assert.Contains(t, m.View(), "Loading")

	f.view = syncer.View{IdentityID: f.id.ID, Code: "24680"}
	m = press(t, m, viewMsg(f.view))
	assert.Equal(t, screenList, m.screen())
}

func TestTokenSignIn(t *testing.T) {
	f := newFake()
	m := New(context.Background(), f)

	m = press(t, m, keyRunes("t"))
	require.Equal(t, modeToken, m.mode)
	m = press(t, m, keyRunes("bad"))
	m = press(t, m, keyEnter)
	assert.Nil(t, f.id)
	assert.True(t, m.statusErr)

	m = press(t, m, keyRunes("t"))
	m = press(t, m, keyRunes("good"))
	m = press(t, m, keyEnter)
	require.NotNil(t, f.id)
	assert.Equal(t, "Signed in as Ana", m.status)
	assert.Equal(t, screenJoin, m.screen())
}

func TestJoinPrompt(t *testing.T) {
	f := newFake()
	f.id = &identity.Identity{ID: "ana"}
	m := New(context.Background(), f)

	m = press(t, m, keyRunes("j"))
	m = press(t, m, keyEnter)
	assert.Equal(t, "Enter a list code", m.status)

	m = press(t, m, keyRunes("j"))
	m = press(t, m, keyRunes("13579"))
	m = press(t, m, keyEnter)
	assert.Equal(t, "13579", f.code)
	assert.Equal(t, modeBrowse, m.mode)
}

func TestListRendersCompletedLast(t *testing.T) {
	_, m := signedInOnList(t)
	items := m.list.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Apples", items[0].(listItem).Name)
	assert.Equal(t, "Milk", items[1].(listItem).Name)
	assert.Contains(t, m.list.Title, "54321")
}

func TestListActions(t *testing.T) {
	f, m := signedInOnList(t)

	m = press(t, m, keySpace)
	assert.Equal(t, []string{"2"}, f.toggled)

	m = press(t, m, keyRunes("+"))
	assert.Equal(t, 4, f.quantity["2"])

	m = press(t, m, keyDown)
	m = press(t, m, keyRunes("-"))
	assert.Equal(t, "Quantity must be at least 1", m.status)
	assert.NotContains(t, f.quantity, "1")

	m = press(t, m, keyRunes("d"))
	assert.Equal(t, []string{"1"}, f.deleted)
	assert.Equal(t, "Removed Milk", m.status)

	m = press(t, m, keyRunes("c"))
	assert.Equal(t, 1, f.cleared)
	assert.Equal(t, "Cleared 1 completed", m.status)

	m = press(t, m, keyRunes("r"))
	assert.Equal(t, 1, f.refresh)
}

func TestAddWithCategoryCycle(t *testing.T) {
	f, m := signedInOnList(t)

	m = press(t, m, keyRunes("a"))
	require.Equal(t, modeAdd, m.mode)
	m = press(t, m, keyEnter)
	assert.Equal(t, "Name cannot be empty", m.status)
	assert.Empty(t, f.added)

	m = press(t, m, keyRunes("Milk"))
	for range 3 {
		m = press(t, m, keyTab)
	}
	assert.Contains(t, m.View(), "Dairy")
	m = press(t, m, keyEnter)

	require.Len(t, f.added, 1)
	assert.Equal(t, "Milk", f.added[0].Name)
	assert.Equal(t, model.Dairy, f.added[0].Category)
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "Added Milk", m.status)

	m = press(t, m, keyRunes("a"))
	m = press(t, m, keyEsc)
	assert.Equal(t, modeBrowse, m.mode)
	assert.Len(t, f.added, 1)
}

func TestShare(t *testing.T) {
	_, m := signedInOnList(t)
	var copied string
	m.copy = func(s string) error { copied = s; return nil }

	m = press(t, m, keyRunes("s"))
	assert.Equal(t, "https://shoplist.app/?list=54321", copied)
	assert.Equal(t, "Link copied: https://shoplist.app/?list=54321", m.status)

	m.copy = func(string) error { return errors.New("no clipboard") }
	m = press(t, m, keyRunes("s"))
	assert.Equal(t, "Share this link: https://shoplist.app/?list=54321", m.status)
	assert.False(t, m.statusErr)
}

func TestLeaveNeedsConfirmation(t *testing.T) {
	f, m := signedInOnList(t)

	m = press(t, m, keyRunes("L"))
	require.Equal(t, modeConfirmLeave, m.mode)
	assert.Contains(t, m.View(), "Leave list 54321?")
	m = press(t, m, keyRunes("n"))
	assert.False(t, f.left)
	assert.Equal(t, "54321", f.code)

	m = press(t, m, keyRunes("L"))
	m = press(t, m, keyRunes("y"))
	assert.True(t, f.left)
	assert.Equal(t, screenJoin, m.screen())
	assert.Empty(t, m.list.Items())
}

func TestSignOut(t *testing.T) {
	f, m := signedInOnList(t)
	m = press(t, m, keyRunes("o"))
	assert.Nil(t, f.id)
	assert.Equal(t, screenLogin, m.screen())
	assert.Empty(t, m.list.Items())
}

func TestUpdatesClosedQuits(t *testing.T) {
	_, m := signedInOnList(t)
	_, cmd := m.Update(updatesClosedMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestInitDeliversViews(t *testing.T) {
	f, m := signedInOnList(t)
	f.updates <- syncer.View{Generation: 1, Code: "54321", Items: []model.Item{{ID: "9", Name: "Eggs", Quantity: 1}}}
	msg := m.Init()()
	next, cmd := m.Update(msg)
	m = next.(Model)
	assert.NotNil(t, cmd, "keeps listening")
	require.Len(t, m.list.Items(), 1)
	assert.Equal(t, "Eggs", m.list.Items()[0].(listItem).Name)
}

func TestStaleViewAfterJoinIgnored(t *testing.T) {
	f, m := signedInOnList(t)
	next, _ := m.Update(viewMsg(f.view))
	m = next.(Model)
	old := m.view

	// switch lists while a view of the old one is already in flight
	m = press(t, m, keyRunes("L"))
	m = press(t, m, keyRunes("y"))
	require.Equal(t, screenJoin, m.screen())
	m = press(t, m, keyRunes("j"))
	m = press(t, m, keyRunes("11111"))
	m = press(t, m, keyEnter)
	require.Equal(t, "11111", m.view.Code)
	require.Equal(t, screenLoading, m.screen())

	next, cmd := m.Update(viewMsg(old))
	m = next.(Model)
	assert.NotNil(t, cmd, "keeps listening")
	assert.Equal(t, "11111", m.view.Code)
	assert.Equal(t, f.view.Generation, m.view.Generation)
	assert.Equal(t, screenLoading, m.screen())
	assert.Empty(t, m.list.Items())

	fresh := f.view
	fresh.Loading = false
	fresh.Items = []model.Item{{ID: "7", Name: "Bread", Category: model.Bakery, Quantity: 1}}
	next, _ = m.Update(viewMsg(fresh))
	m = next.(Model)
	assert.Equal(t, screenList, m.screen())
	require.Len(t, m.list.Items(), 1)
	assert.Equal(t, "Bread", m.list.Items()[0].(listItem).Name)
}
