package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/events"
	"github.com/m3rciful/newsbot/news/model"
	"github.com/m3rciful/newsbot/news/render"
	"github.com/m3rciful/newsbot/news/source"
	"github.com/m3rciful/newsbot/news/store"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type sentText struct {
	text   string
	markup Markup
}

type recorder struct {
	mu    sync.Mutex
	texts []sentText
	docs  []render.Document
}

func (r *recorder) SendText(_ context.Context, text string, m Markup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, sentText{text: text, markup: m})
	return nil
}

func (r *recorder) SendDocument(_ context.Context, doc render.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts, r.docs = nil, nil
}

func (r *recorder) last() sentText {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return sentText{}
	}
	return r.texts[len(r.texts)-1]
}

func (r *recorder) all() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := make([]string, len(r.texts))
	for i, t := range r.texts {
		parts[i] = t.text
	}
	return strings.Join(parts, "\n")
}

type topicCall struct {
	hash, country string
	days          int
}

type searchCall struct {
	query  string
	filter source.Filter
}

type fakeSource struct {
	mu       sync.Mutex
	entries  []model.RawEntry
	err      error
	top      []string
	topics   []topicCall
	searches []searchCall
}

func (f *fakeSource) TopNews(_ context.Context, country string) ([]model.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.top = append(f.top, country)
	return f.entries, f.err
}

func (f *fakeSource) TopicHeadlines(_ context.Context, hash, country string, days int) ([]model.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topicCall{hash: hash, country: country, days: days})
	return f.entries, f.err
}

func (f *fakeSource) Search(_ context.Context, query string, filter source.Filter) ([]model.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, searchCall{query: query, filter: filter})
	return f.entries, f.err
}

type fakeRenderer struct {
	err    error
	panics bool
	titles []string
}

func (f *fakeRenderer) Format() string { return render.FormatPDF }

func (f *fakeRenderer) Render(entries []model.NewsEntry, title, descriptor string) (render.Document, error) {
	if f.panics {
		panic("renderer exploded")
	}
	if f.err != nil {
		return render.Document{}, f.err
	}
	f.titles = append(f.titles, title)
	return render.Document{
		Data:     []byte(strings.Repeat("x", len(entries))),
		Filename: render.Filename(testNow, descriptor, render.FormatPDF),
		MIME:     "application/pdf",
	}, nil
}

type fakePublisher struct {
	mu         sync.Mutex
	deliveries []events.Delivery
}

func (p *fakePublisher) Publish(_ context.Context, d events.Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, d)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu          sync.Mutex
	started     map[string]int
	ended       map[string]int
	validations map[string]int
	documents   int
	evicted     int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{started: map[string]int{}, ended: map[string]int{}, validations: map[string]int{}}
}

func (m *fakeMetrics) ConversationStarted(flow string) {
	m.mu.Lock()
	m.started[flow]++
	m.mu.Unlock()
}

func (m *fakeMetrics) ConversationEnded(flow, outcome string) {
	m.mu.Lock()
	m.ended[flow+"/"+outcome]++
	m.mu.Unlock()
}

func (m *fakeMetrics) ValidationFailed(st string) {
	m.mu.Lock()
	m.validations[st]++
	m.mu.Unlock()
}

func (m *fakeMetrics) DocumentSent(string) {
	m.mu.Lock()
	m.documents++
	m.mu.Unlock()
}

func (m *fakeMetrics) SessionsEvicted(n int) {
	m.mu.Lock()
	m.evicted += n
	m.mu.Unlock()
}

// countingStore counts user lookups.
type countingStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	lookups int
}

func (c *countingStore) UserByExternalID(ctx context.Context, externalID string) (model.User, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	return c.MemoryStore.UserByExternalID(ctx, externalID)
}

type harness struct {
	t         *testing.T
	engine    *Engine
	sessions  state.Manager
	repo      *countingStore
	source    *fakeSource
	renderer  *fakeRenderer
	publisher *fakePublisher
	metrics   *fakeMetrics
	out       *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		sessions:  state.NewMemoryManager(),
		repo:      &countingStore{MemoryStore: store.NewMemoryStore()},
		renderer:  &fakeRenderer{},
		publisher: &fakePublisher{},
		metrics:   newFakeMetrics(),
		out:       &recorder{},
		source: &fakeSource{entries: []model.RawEntry{
			{Title: "Fresh story - Reuters", Link: "https://example.com/fresh", Published: testNow.Add(-24 * time.Hour)},
			{Title: "Old story - AP", Link: "https://example.com/old", Published: testNow.Add(-4 * 24 * time.Hour)},
		}},
	}
	e, err := New(Deps{
		Sessions:  h.sessions,
		Store:     h.repo,
		Source:    h.source,
		Renderer:  h.renderer,
		Publisher: h.publisher,
		Metrics:   h.metrics,
		Now:       func() time.Time { return testNow },
	})
	require.NoError(t, err)
	h.engine = e
	return h
}

// register creates the stored user for a Telegram id.
func (h *harness) register(id int64) uuid.UUID {
	h.t.Helper()
	u, err := h.repo.CreateUser(context.Background(), externalID(id), "tester")
	require.NoError(h.t, err)
	return u.ID
}

func (h *harness) cmd(id int64, text string) Result {
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	return h.engine.Handle(context.Background(), Event{Kind: KindCommand, Command: name, Text: text, SenderID: id, Name: "tester"}, h.out)
}

func (h *harness) text(id int64, text string) Result {
	return h.engine.Handle(context.Background(), Event{Kind: KindText, Text: text, SenderID: id}, h.out)
}

func (h *harness) press(id int64, data string) Result {
	return h.engine.Handle(context.Background(), Event{Kind: KindButton, Data: data, SenderID: id}, h.out)
}

func (h *harness) addTopic(userID uuid.UUID, name, hash, country string) model.TopicPreference {
	h.t.Helper()
	t, err := h.repo.CreateTopic(context.Background(), model.TopicPreference{UserID: userID, TopicName: name, TopicHash: hash, CountryCode: country})
	require.NoError(h.t, err)
	return t
}

func (h *harness) addQuery(userID uuid.UUID, q string) model.UserQuery {
	h.t.Helper()
	out, err := h.repo.CreateQuery(context.Background(), userID, q)
	require.NoError(h.t, err)
	return out
}

func (h *harness) topics(userID uuid.UUID) []model.TopicPreference {
	h.t.Helper()
	list, err := h.repo.ListTopics(context.Background(), userID)
	require.NoError(h.t, err)
	return list
}
