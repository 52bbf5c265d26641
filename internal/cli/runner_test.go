package cli

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/config"
	"github.com/idilsaglam/shoplist/internal/identity"
	"github.com/idilsaglam/shoplist/internal/store"
	"github.com/idilsaglam/shoplist/internal/store/memstore"
	"github.com/idilsaglam/shoplist/internal/tui"
)

type harness struct {
	t       *testing.T
	cfg     *config.Config
	st      *memstore.Store
	copied  string
	copyErr error
	tuiRuns int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(identity.EnvToken, "")
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Timeouts.Short = 2 * time.Second
	return &harness{t: t, cfg: &cfg, st: memstore.New()}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), args, Options{
		Config: h.cfg,
		Log:    zap.NewNop(),
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errOut,
		OpenStore: func(context.Context, *config.Config, *zap.Logger) (store.ListStore, error) {
			return h.st, nil
		},
		RunTUI: func(ctx context.Context, c tui.Client) error {
			h.tuiRuns++
			return nil
		},
		Clipboard: func(s string) error {
			h.copied = s
			return h.copyErr
		},
	})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func (h *harness) ok(args ...string) string {
	h.t.Helper()
	r := h.run("", args...)
	require.Equal(h.t, ExitOK, r.code, "%v: %s", args, r.stderr)
	return r.stdout
}

func TestUnknownSubcommand(t *testing.T) {
	h := newHarness(t)
	r := h.run("", "frobnicate")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "unknown subcommand: frobnicate")
	assert.Contains(t, r.stderr, "Hint:")
}

func TestBadFlagIsUsage(t *testing.T) {
	h := newHarness(t)
	r := h.run("", "ls", "--nope")
	assert.Equal(t, ExitUsage, r.code)
}

func TestRootRunsTUI(t *testing.T) {
	h := newHarness(t)
	h.ok()
	assert.Equal(t, 1, h.tuiRuns)
}

func TestNeedsIdentityAndList(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "ls")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "not signed in")

	h.ok("guest")
	r = h.run("", "add", "Milk")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "no active list")
}

func TestListWorkflow(t *testing.T) {
	h := newHarness(t)
	h.ok("guest")
	h.ok("join", "12345")

	assert.Contains(t, h.ok("add", "Milk", "-c", "dairy"), "added 🥛 Milk")
	h.ok("add", "Green", "apples", "--category", "Fruit")
	require.Len(t, h.st.List("12345"), 2)

	out := h.ok("ls")
	assert.Regexp(t, `1\. ☐ 🥛 Milk`, out)
	assert.Regexp(t, `2\. ☐ 🍎 Green apples`, out)
	assert.Contains(t, out, "Total 2")

	assert.Contains(t, h.ok("toggle", "1"), "Milk in the cart")
	out = h.ok("ls", "--group")
	assert.Regexp(t, `(?s)To buy.*1\. ☐ 🍎 Green apples.*In the cart.*2\. ☑ 🥛 Milk`, out)

	r := h.run("", "qty", "1", "0")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "quantity must be at least 1")
	assert.Contains(t, h.ok("qty", "1", "3"), "Green apples ×3")

	apples := h.st.List("12345")[1]
	assert.Equal(t, "Green apples", apples.Name)
	assert.Equal(t, 3, apples.Quantity)

	assert.Contains(t, h.ok("clear"), "cleared 1 completed")
	assert.Contains(t, h.ok("clear"), "nothing to clear")
	assert.Contains(t, h.ok("rm", "1"), "removed Green apples")
	assert.Empty(t, h.st.List("12345"))
	assert.Contains(t, h.ok("ls"), "no items")
}

func TestIndexErrors(t *testing.T) {
	h := newHarness(t)
	h.ok("guest")
	h.ok("join", "12345")
	h.ok("add", "Milk")

	r := h.run("", "toggle", "abc")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "toggle: not a number: abc")

	r = h.run("", "rm", "9")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "index out of range: have 1, got 9")
	assert.Contains(t, r.stderr, "shoplist ls")

	r = h.run("", "toggle")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "usage: shoplist toggle <index>")
}

func TestAddValidation(t *testing.T) {
	h := newHarness(t)
	h.ok("guest")
	h.ok("join", "12345")

	r := h.run("", "add", "Tape", "-c", "hardware")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "unknown category")

	r = h.run("", "add", "   ")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "item name is empty")
	assert.Empty(t, h.st.List("12345"))
}

func TestCreateAndShare(t *testing.T) {
	h := newHarness(t)
	h.ok("guest")
	out := h.ok("create")
	m := regexp.MustCompile(`created list (\d{5})`).FindStringSubmatch(out)
	require.Len(t, m, 2)
	code := m[1]

	out = h.ok("share")
	assert.Contains(t, out, "https://shoplist.app/?list="+code)
	assert.Contains(t, out, "link copied")
	assert.Equal(t, "https://shoplist.app/?list="+code, h.copied)

	h.copyErr = errors.New("no clipboard")
	out = h.ok("share")
	assert.Contains(t, out, "?list="+code)
	assert.NotContains(t, out, "link copied")
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	h.ok("guest")
	h.ok("join", "12345")

	r := h.run("n\n", "leave")
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, "Leave list 12345? [y/N]")
	assert.Contains(t, r.stdout, "still on list 12345")

	r = h.run("yes\n", "leave")
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, "left list 12345")

	r = h.run("", "leave")
	assert.Equal(t, ExitUsage, r.code)

	h.ok("join", "24680")
	assert.Contains(t, h.ok("leave", "--yes"), "left list 24680")
	assert.Contains(t, h.ok("whoami"), "(none)")
}

func TestShareURLFlow(t *testing.T) {
	h := newHarness(t)
	out := h.ok("--url", "https://shoplist.app/?list=54321", "whoami")
	assert.Contains(t, out, "not signed in")
	assert.Contains(t, out, "pending: 54321")

	assert.Contains(t, h.ok("guest"), "active list: 54321")
	out = h.ok("whoami")
	assert.Contains(t, out, "list:    54321")
	assert.NotContains(t, out, "pending:")
}

func TestOpen(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.ok("open", "https://shoplist.app/?list=13579"), "list 13579 opens once you sign in")

	r := h.run("", "open", "https://shoplist.app/")
	assert.Equal(t, ExitUsage, r.code)

	h.ok("guest")
	assert.Contains(t, h.ok("open", "https://shoplist.app/?list=97531"), "list 97531 is active")
}

func TestLoginLogout(t *testing.T) {
	h := newHarness(t)

	r := h.run("\n", "login")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "empty token")

	r = h.run("opaque-token-123\n", "login")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Paste your token:")
	assert.Contains(t, r.stdout, "signed in as")

	out := h.ok("whoami")
	assert.Contains(t, out, "kind:    interactive")
	assert.Contains(t, out, "source:  file")

	assert.Contains(t, h.ok("logout"), "signed out")
	assert.Contains(t, h.ok("status"), "not signed in")
}
