package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/careswarm/careswarm/agent"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStoreFromClient(client, "test:session:", time.Hour),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			sess := New()
			if sess.ActiveHandler != agent.Triage {
				t.Fatalf("new session active handler = %s, want Triage", sess.ActiveHandler)
			}

			sess.Append(agent.UserMessage("hello"))
			sess.ActiveHandler = agent.Appointment
			sess.State.PatientID = 7
			sess.State.Verified = true

			if err := store.Put(ctx, sess); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, err := store.Get(ctx, sess.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.ActiveHandler != agent.Appointment {
				t.Errorf("ActiveHandler = %s, want Appointment", got.ActiveHandler)
			}
			if len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
				t.Errorf("Messages = %+v, want single hello message", got.Messages)
			}
			if got.State.PatientID != 7 || !got.State.Verified {
				t.Errorf("State = %+v, want verified patient 7", got.State)
			}
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "no-such-session"); err != ErrNotFound {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreDeleteAndList(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			a, b := New(), New()
			for _, sess := range []*Session{a, b} {
				if err := store.Put(ctx, sess); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
			}

			ids, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(ids) != 2 {
				t.Fatalf("List() = %v, want 2 ids", ids)
			}

			if err := store.Delete(ctx, a.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(ctx, a.ID); err != ErrNotFound {
				t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
			}

			// Deleting an absent session is not an error.
			if err := store.Delete(ctx, a.ID); err != nil {
				t.Errorf("repeat Delete() error = %v", err)
			}
		})
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := store.Put(ctx, New()); err != ErrStoreClosed {
		t.Errorf("Put() after close error = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Get(ctx, "x"); err != ErrStoreClosed {
		t.Errorf("Get() after close error = %v, want ErrStoreClosed", err)
	}
}

func TestMemoryStorePutSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess := New()
	sess.Append(agent.UserMessage("first"))
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Mutating after Put must not leak into the stored snapshot.
	sess.Append(agent.UserMessage("second"))

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Messages) != 1 {
		t.Errorf("stored messages = %d, want snapshot of 1", len(got.Messages))
	}
}
