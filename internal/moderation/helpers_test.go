package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"promo-sentinel/internal/invites"
	"promo-sentinel/internal/storage"

	"go.uber.org/zap"
)

type fakeTimer struct {
	mu      sync.Mutex
	stopped bool
	fn      func()
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return true
}

type fakeClock struct {
	mu         sync.Mutex
	now        time.Time
	timers     []*fakeTimer
	delays     []time.Duration
	registered chan struct{}
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0), registered: make(chan struct{}, 16)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	t := &fakeTimer{fn: fn}
	f.timers = append(f.timers, t)
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	f.registered <- struct{}{}
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	pending := append([]*fakeTimer{}, f.timers...)
	f.timers = nil
	f.mu.Unlock()
	for _, timer := range pending {
		timer.mu.Lock()
		stopped := timer.stopped
		timer.mu.Unlock()
		if !stopped {
			timer.fn()
		}
	}
}

var errUnknownMessage = errors.New("unknown message")

type fakeChat struct {
	mu        sync.Mutex
	live      map[string]Message
	deleted   []string
	sent      [][]Warning
	deleteErr map[string]error
	sendErr   error
	fetchErr  error
	replies   int
}

func newFakeChat() *fakeChat {
	return &fakeChat{live: make(map[string]Message), deleteErr: make(map[string]error)}
}

func (f *fakeChat) post(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[msg.ID] = msg
}

// drop removes a message without telling anybody.
func (f *fakeChat) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, id)
}

func (f *fakeChat) FetchMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return Message{}, f.fetchErr
	}
	msg, ok := f.live[messageID]
	if !ok {
		return Message{}, errUnknownMessage
	}
	return msg, nil
}

func (f *fakeChat) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[messageID]; err != nil {
		return err
	}
	delete(f.live, messageID)
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeChat) SendWarning(ctx context.Context, original Message, warnings []Warning) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return Message{}, f.sendErr
	}
	f.replies++
	reply := Message{ID: fmt.Sprintf("reply-%d", f.replies), ChannelID: original.ChannelID, GuildID: original.GuildID}
	f.live[reply.ID] = reply
	f.sent = append(f.sent, warnings)
	return reply, nil
}

func (f *fakeChat) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.deleted...)
}

func (f *fakeChat) sentWarnings() [][]Warning {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]Warning{}, f.sent...)
}

type fakeResolver struct {
	mu    sync.Mutex
	meta  map[string]invites.Metadata
	calls int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{meta: make(map[string]invites.Metadata)}
}

func (f *fakeResolver) permanent(code, guildID string) {
	f.meta[code] = invites.Metadata{GuildID: guildID}
}

func (f *fakeResolver) Resolve(ctx context.Context, refs []invites.Reference) []invites.Resolved {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]invites.Resolved, len(refs))
	for i, ref := range refs {
		out[i] = invites.Resolved{Reference: ref}
		if meta, ok := f.meta[ref.Code]; ok {
			out[i].GuildID = meta.GuildID
			out[i].ExpiresAt = meta.ExpiresAt
		}
	}
	return out
}

type harness struct {
	store    *storage.Store
	chat     *fakeChat
	clock    *fakeClock
	resolver *fakeResolver
	pipeline *Pipeline
	seq      int
}

func testConfig(mode Mode) Config {
	return Config{
		MinDescriptionLength: 20,
		Period: storage.BanPeriod{
			OthersWindow:    7 * 24 * time.Hour,
			SelfWindow:      3 * 24 * time.Hour,
			SelfRepostGrace: 30 * time.Minute,
		},
		Mode:     mode,
		Language: "en",
		Location: time.UTC,
	}
}

func newHarness(t *testing.T, mode Mode) *harness {
	t.Helper()
	cfg := testConfig(mode)
	store, err := storage.New(storage.DriverSQLite, ":memory:", cfg.Period)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := newFakeClock()
	store.WithClock(clock)
	chat := newFakeChat()
	resolver := newFakeResolver()
	pipeline := NewPipeline(cfg, store, resolver, chat, zap.NewNop())
	pipeline.WithClock(clock)

	return &harness{store: store, chat: chat, clock: clock, resolver: resolver, pipeline: pipeline}
}

// post publishes a message in the moderated channel and returns it.
func (h *harness) post(authorID, content string) Message {
	h.seq++
	msg := Message{
		ID:        fmt.Sprintf("m%d", h.seq),
		ChannelID: "ads",
		GuildID:   "home",
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: h.clock.Now(),
	}
	h.chat.post(msg)
	return msg
}

func (h *harness) check(t *testing.T, msg Message) Verdict {
	t.Helper()
	verdict, err := h.pipeline.Check(context.Background(), msg)
	if err != nil {
		t.Fatalf("check %s: %v", msg.ID, err)
	}
	return verdict
}

func (h *harness) records(t *testing.T, authorID string) []storage.ModerationRecord {
	t.Helper()
	records, err := h.store.RecordsByAuthor(context.Background(), "home", authorID, storage.IncludeSoftDeleted())
	if err != nil {
		t.Fatalf("records by author: %v", err)
	}
	return records
}

const longDescription = "A friendly community for board games, weekly events and more!"
