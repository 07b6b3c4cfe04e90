package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"promo-sentinel/internal/storage"

	"go.uber.org/zap"
)

func newTestModerator(h *harness) *Moderator {
	enforcer := NewEnforcer(h.chat, 10*time.Second, zap.NewNop())
	enforcer.WithClock(h.clock)
	return NewModerator(h.pipeline, enforcer, h.store, h.chat, zap.NewNop())
}

func TestHandleMessageWarnsAndCleansUp(t *testing.T) {
	h := newHarness(t, ModeFailFast)
	h.resolver.permanent("abc123", "g1")
	moderator := newTestModerator(h)

	msg := h.post("x", "Join my server! https://discord.gg/abc123")
	errCh := make(chan error, 1)
	go func() {
		errCh <- moderator.HandleMessage(context.Background(), msg)
	}()

	<-h.clock.registered
	sent := h.chat.sentWarnings()
	if len(sent) != 1 || len(sent[0]) != 1 || sent[0][0].Stage != StageDescriptionLength {
		t.Fatalf("expected one description warning, got %+v", sent)
	}
	h.clock.Advance(10 * time.Second)
	if err := <-errCh; err != nil {
		t.Fatalf("handle message: %v", err)
	}

	deleted := h.chat.deletedIDs()
	if len(deleted) != 2 || deleted[0] != "reply-1" || deleted[1] != msg.ID {
		t.Fatalf("expected reply and original to be deleted, got %v", deleted)
	}
}

func TestHandleMessagePassDoesNotReply(t *testing.T) {
	h := newHarness(t, ModeFailFast)
	h.resolver.permanent("abc123", "g1")
	moderator := newTestModerator(h)

	if err := moderator.HandleMessage(context.Background(), h.post("x", longDescription+" https://discord.gg/abc123")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if len(h.chat.sentWarnings()) != 0 {
		t.Fatalf("passing message must not get a warning")
	}
}

func TestHandleMessageStoreErrorSendsNothing(t *testing.T) {
	h := newHarness(t, ModeFailFast)
	h.resolver.permanent("abc123", "g1")
	moderator := newTestModerator(h)
	h.store.Close()

	err := moderator.HandleMessage(context.Background(), h.post("x", longDescription+" https://discord.gg/abc123"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(h.chat.sentWarnings()) != 0 || len(h.chat.deletedIDs()) != 0 {
		t.Fatalf("store failures must leave the channel untouched")
	}
}

func TestHandleMessageSendFailureSkipsEnforcement(t *testing.T) {
	h := newHarness(t, ModeFailFast)
	h.chat.sendErr = errors.New("forbidden")
	moderator := newTestModerator(h)

	err := moderator.HandleMessage(context.Background(), h.post("x", "no invite here"))
	if err == nil {
		t.Fatalf("expected send error")
	}
	if len(h.chat.deletedIDs()) != 0 {
		t.Fatalf("nothing may be deleted when the warning was not sent")
	}
}

func TestHandleDeletedReconcilesStore(t *testing.T) {
	h := newHarness(t, ModeFailFast)
	h.resolver.permanent("abc123", "g1")
	h.resolver.permanent("def456", "g2")
	moderator := newTestModerator(h)
	ctx := context.Background()

	old := h.post("x", longDescription+" https://discord.gg/abc123")
	h.check(t, old)
	h.clock.Advance(time.Hour)
	fresh := h.post("x", longDescription+" https://discord.gg/def456")
	h.check(t, fresh)

	if err := moderator.HandleDeleted(ctx, old.ID, fresh.ID, "unknown"); err != nil {
		t.Fatalf("handle deleted: %v", err)
	}

	all, _ := h.store.RecordsByAuthor(ctx, "home", "x", storage.IncludeSoftDeleted())
	if len(all) != 1 || all[0].MessageID != old.ID || !all[0].SoftDeleted {
		t.Fatalf("expected old record soft-deleted and fresh one purged, got %+v", all)
	}
	live, _ := h.store.RecordsByAuthor(ctx, "home", "x")
	if len(live) != 0 {
		t.Fatalf("soft-deleted record must be hidden by default, got %+v", live)
	}

	if err := moderator.HandleDeleted(ctx, old.ID); err != nil {
		t.Fatalf("second reconcile should be a no-op: %v", err)
	}
}

func TestHandleDeletedJoinsErrors(t *testing.T) {
	h := newHarness(t, ModeFailFast)
	moderator := newTestModerator(h)
	h.store.Close()

	if err := moderator.HandleDeleted(context.Background(), "a", "b"); err == nil {
		t.Fatalf("expected joined error")
	}
}
