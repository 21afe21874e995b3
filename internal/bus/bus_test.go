package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"commentflow/internal/domain"
)

func TestRequestBus_CallRoundTrip(t *testing.T) {
	b := New(4, testEBLogger())
	defer b.Close()

	go func() {
		env := <-b.Requests()
		if env.ID == "" {
			t.Error("envelope ID should be set")
		}
		if env.Origin != "renderer" {
			t.Errorf("unexpected origin %q", env.Origin)
		}
		env.Reply <- Result{Response: domain.StringResponse("XL")}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := b.Call(ctx, "renderer", domain.GetFontSize{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !resp.Present || resp.Value != "XL" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRequestBus_PostHasNoReply(t *testing.T) {
	b := New(4, testEBLogger())
	defer b.Close()

	if err := b.Post("renderer", domain.DeleteComment{}); err != nil {
		t.Fatalf("post: %v", err)
	}
	env := <-b.Requests()
	if env.Reply != nil {
		t.Error("posted envelope should not carry a reply channel")
	}
	if _, ok := env.Request.(domain.DeleteComment); !ok {
		t.Errorf("unexpected request %T", env.Request)
	}
}

func TestRequestBus_PreservesOrderPerSender(t *testing.T) {
	b := New(8, testEBLogger())
	defer b.Close()

	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		if err := b.Post("extractor", domain.SetComment{Text: text}); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range texts {
		env := <-b.Requests()
		if got := env.Request.(domain.SetComment).Text; got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestRequestBus_ClosedIsInvalidated(t *testing.T) {
	b := New(1, testEBLogger())
	if !b.Alive() {
		t.Fatal("new bus should be alive")
	}
	b.Close()
	b.Close() // idempotent

	if b.Alive() {
		t.Error("closed bus should not be alive")
	}
	if err := b.Post("extractor", domain.GetColor{}); !errors.Is(err, domain.ErrContextInvalidated) {
		t.Errorf("expected ErrContextInvalidated, got %v", err)
	}
	if _, err := b.Call(context.Background(), "extractor", domain.GetColor{}); !errors.Is(err, domain.ErrContextInvalidated) {
		t.Errorf("expected ErrContextInvalidated, got %v", err)
	}
}

func TestRequestBus_CallHonoursContext(t *testing.T) {
	b := New(1, testEBLogger())
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Call(ctx, "extractor", domain.GetIsEnabledStreaming{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
