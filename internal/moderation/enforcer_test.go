package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEnforceDeletesReplyThenOriginal(t *testing.T) {
	chat := newFakeChat()
	clock := newFakeClock()
	enforcer := NewEnforcer(chat, 10*time.Second, zap.NewNop())
	enforcer.WithClock(clock)

	original := Message{ID: "m1", ChannelID: "ads"}
	reply := Message{ID: "r1", ChannelID: "ads"}
	chat.post(original)
	chat.post(reply)

	done := make(chan struct{})
	go func() {
		enforcer.Enforce(context.Background(), original, reply)
		close(done)
	}()

	<-clock.registered
	if len(chat.deletedIDs()) != 0 {
		t.Fatalf("nothing may be deleted before the delay")
	}
	if clock.delays[0] != 10*time.Second {
		t.Fatalf("unexpected delay %v", clock.delays[0])
	}
	clock.Advance(10 * time.Second)
	<-done

	deleted := chat.deletedIDs()
	if len(deleted) != 2 || deleted[0] != "r1" || deleted[1] != "m1" {
		t.Fatalf("unexpected deletions: %v", deleted)
	}
}

func TestEnforceSwallowsDeleteFailures(t *testing.T) {
	chat := newFakeChat()
	chat.deleteErr["r1"] = errors.New("missing permissions")
	clock := newFakeClock()
	enforcer := NewEnforcer(chat, time.Second, zap.NewNop())
	enforcer.WithClock(clock)

	done := make(chan struct{})
	go func() {
		enforcer.Enforce(context.Background(), Message{ID: "m1", ChannelID: "ads"}, Message{ID: "r1", ChannelID: "ads"})
		close(done)
	}()
	<-clock.registered
	clock.Advance(time.Second)
	<-done

	deleted := chat.deletedIDs()
	if len(deleted) != 1 || deleted[0] != "m1" {
		t.Fatalf("original should still be deleted, got %v", deleted)
	}
}

func TestEnforceStopsOnCancel(t *testing.T) {
	chat := newFakeChat()
	clock := newFakeClock()
	enforcer := NewEnforcer(chat, time.Minute, zap.NewNop())
	enforcer.WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		enforcer.Enforce(ctx, Message{ID: "m1"}, Message{ID: "r1"})
		close(done)
	}()
	<-clock.registered
	cancel()
	<-done

	clock.Advance(time.Minute)
	if len(chat.deletedIDs()) != 0 {
		t.Fatalf("cancelled enforcement must not delete anything")
	}
}
