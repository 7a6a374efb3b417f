package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/newsbot/core/config"
	coredatabase "github.com/m3rciful/newsbot/core/database"
	"github.com/m3rciful/newsbot/core/telegram/router"
	"github.com/m3rciful/newsbot/news/conversation"
)

// fakeContext implements the parts of tele.Context the transport touches.
type fakeContext struct {
	tele.Context
	sender *tele.User
	text   string
	cb     *tele.Callback
	store  map[string]any
	sent   []any
	opts   [][]any
}

func newFakeContext(text string) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: 42, FirstName: "Alice"},
		text:   text,
		store:  map[string]any{},
	}
}

func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update      { return tele.Update{ID: 1} }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, what)
	f.opts = append(f.opts, opts)
	return nil
}

func (f *fakeContext) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	s, ok := f.sent[len(f.sent)-1].(string)
	require.True(t, ok, "last message is %T", f.sent[len(f.sent)-1])
	return s
}

func testConfig() *Config {
	return &Config{
		Config: coreconfig.Config{
			Session: coreconfig.SessionConfig{TTL: time.Hour, SweepInterval: time.Minute},
		},
		Database: coredatabase.Config{Driver: coredatabase.DriverMemory},
		Render:   RenderConfig{Format: "pdf"},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig(), nil)
	require.NoError(t, err)
	return a
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
telegram:
  token: "123:abc"
database:
  driver: sqlite
  path: ` + filepath.Join(dir, "bot.db") + `
render:
  format: XLSX
news:
  timeout: 3s
events:
  brokers: ["localhost:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "123:abc", cfg.Telegram.Token)
	require.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	require.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "xlsx", cfg.Render.Format)
	require.Equal(t, 3*time.Second, cfg.News.Timeout)
	require.Equal(t, []string{"localhost:9092"}, cfg.Events.Brokers)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	cfg := testConfig()
	cfg.Render.Format = "docx"
	require.Error(t, normalize(cfg))

	cfg = testConfig()
	cfg.Database.Driver = "mysql"
	require.Error(t, normalize(cfg))

	cfg = testConfig()
	cfg.Database.Driver = "sqlite3"
	require.Error(t, normalize(cfg))
}

func TestRegistryExposesEngineCommands(t *testing.T) {
	a := newTestApp(t)

	for _, name := range []string{"/start", "/cancel", "/top_news", "/edit_saved_topics", "/topic_news", "/query_news", "/help", "/sessions"} {
		_, ok := a.registry.LookupCommand(name)
		require.True(t, ok, "missing %s", name)
	}
	visible := a.registry.ListCommands(true)
	for _, c := range visible {
		require.NotEqual(t, "/sessions", c.Text)
	}
	require.Equal(t, []string{buttonKey}, a.registry.ListCallbacks())
}

func TestStartThroughTransport(t *testing.T) {
	a := newTestApp(t)
	c := newFakeContext("/start")

	require.NoError(t, a.transport.command("start")(c))
	require.Equal(t, "Hello, Alice! You have been added to the database.", c.lastText(t))
	require.Equal(t, string(conversation.OutcomeEnded), c.store[router.OutcomeKey])

	c = newFakeContext("/start")
	require.NoError(t, a.transport.command("start")(c))
	require.Equal(t, "Hello there, Alice!", c.lastText(t))
}

func TestTopNewsShowsCountryKeyboard(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.transport.command("start")(newFakeContext("/start")))

	c := newFakeContext("/top_news -c")
	require.NoError(t, a.transport.command("top_news")(c))
	require.True(t, a.transport.InProgress(42))

	require.Len(t, c.opts, 1)
	opts, ok := c.opts[0][0].(*tele.SendOptions)
	require.True(t, ok)
	require.True(t, opts.ReplyMarkup.OneTimeKeyboard)
	require.NotEmpty(t, opts.ReplyMarkup.ReplyKeyboard)

	c = newFakeContext("/cancel")
	require.NoError(t, a.transport.command("cancel")(c))
	require.Equal(t, "Operation cancelled.", c.lastText(t))
	require.False(t, a.transport.InProgress(42))
}

func TestTextOutsideConversation(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.transport.command("start")(newFakeContext("/start")))

	c := newFakeContext("hello")
	require.NoError(t, a.transport.Text(c))
	require.Equal(t, "I only understand commands. Use /help to see what I can do.", c.lastText(t))

	c = newFakeContext("/nope@NewsBot now")
	require.NoError(t, a.transport.Text(c))
	require.Equal(t, "Unknown command. Use /help to see what I can do.", c.lastText(t))
}

func TestEditTopicsButtons(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.transport.command("start")(newFakeContext("/start")))

	c := newFakeContext("/edit_saved_topics")
	require.NoError(t, a.transport.command("edit_saved_topics")(c))
	opts, ok := c.opts[len(c.opts)-1][0].(*tele.SendOptions)
	require.True(t, ok)
	require.NotEmpty(t, opts.ReplyMarkup.InlineKeyboard)
	btn := opts.ReplyMarkup.InlineKeyboard[0][0]
	require.Equal(t, buttonKey, btn.Unique)

	press := newFakeContext("")
	press.cb = &tele.Callback{Data: "\f" + buttonKey + "|" + btn.Data}
	require.NoError(t, a.transport.Button(press))
	require.True(t, a.transport.InProgress(42))
}

func TestHelpText(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.transport.command("start")(newFakeContext("/start")))
	c := newFakeContext("/help")
	require.NoError(t, a.transport.command("help")(c))

	text := c.lastText(t)
	require.True(t, strings.HasPrefix(text, "Here is what I can do:"))
	require.Contains(t, text, "/top_news - ")
	require.Contains(t, text, "/cancel - Cancel the current operation")
	require.Contains(t, text, "/help - Show this message")
	require.NotContains(t, text, "/sessions")
}

func TestHelpRequiresRegistration(t *testing.T) {
	a := newTestApp(t)
	for _, name := range []string{"help", "sessions"} {
		c := newFakeContext("/" + name)
		require.NoError(t, a.transport.command(name)(c))
		require.Contains(t, c.lastText(t), "You are not registered in the system. Please use the /start command to add yourself into the database.")
		require.Equal(t, string(conversation.OutcomeRejected), c.store[router.OutcomeKey])
	}
}

func TestActiveSessionsCount(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.transport.command("start")(newFakeContext("/start")))
	require.NoError(t, a.transport.command("top_news")(newFakeContext("/top_news -c")))

	c := newFakeContext("/sessions")
	require.NoError(t, a.transport.command("sessions")(c))
	require.Equal(t, "Active sessions: 1", c.lastText(t))
}

func TestReplyMarkup(t *testing.T) {
	require.Nil(t, replyMarkup(conversation.Markup{}))
	require.True(t, replyMarkup(conversation.Markup{Remove: true}).RemoveKeyboard)

	m := replyMarkup(conversation.Markup{Buttons: []conversation.Button{{Text: "Yes", Data: "yes"}}})
	require.Equal(t, "yes", m.InlineKeyboard[0][0].Data)
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", displayName(&tele.User{FirstName: "Ada", LastName: "Lovelace"}))
	require.Equal(t, "ada", displayName(&tele.User{Username: "ada"}))
	require.Equal(t, "", displayName(nil))
}
