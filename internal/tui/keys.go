package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Add      key.Binding
	Toggle   key.Binding
	More     key.Binding
	Less     key.Binding
	Delete   key.Binding
	Clear    key.Binding
	Share    key.Binding
	Leave    key.Binding
	Refresh  key.Binding
	SignOut  key.Binding
	Quit     key.Binding
	Guest    key.Binding
	Token    key.Binding
	Create   key.Binding
	Join     key.Binding
	Category key.Binding
	Submit   key.Binding
	Cancel   key.Binding
	Yes      key.Binding
	No       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Toggle:   key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle")),
		More:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "quantity")),
		Less:     key.NewBinding(key.WithKeys("-")),
		Delete:   key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear done")),
		Share:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "share")),
		Leave:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "leave")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		SignOut:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sign out")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		Guest:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "continue as guest")),
		Token:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "sign in with token")),
		Create:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new list")),
		Join:     key.NewBinding(key.WithKeys("j"), key.WithHelp("j", "join with code")),
		Category: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "category")),
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ok")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Yes:      key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		No:       key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),
	}
}

func (k keyMap) listHelp() []key.Binding {
	return []key.Binding{k.Add, k.Toggle, k.More, k.Delete, k.Clear, k.Share, k.Leave, k.Refresh, k.SignOut}
}
