package session

import (
	"sync"
	"testing"

	"pdfbot/internal/models"
)

func TestStoreLifecycle(t *testing.T) {
	store := NewStore()

	if store.Len() != 0 {
		t.Fatalf("session should not exist before first use")
	}
	se := store.Get(1)
	if se == nil || se.ChatID != 1 || se.State != models.StateIdle {
		t.Fatalf("unexpected new session: %#v", se)
	}
	if again := store.Get(1); again != se {
		t.Fatalf("Get must return the same session")
	}

	se.State = models.StateAwaitingCombineFiles
	se.Files = append(se.Files, models.Attachment{FileID: "a"})
	se.AwaitingFileFor = models.TargetCombine
	if got := store.CountByState()["idle"]; got != 1 {
		t.Fatalf("unpublished change must not be visible, idle=%d", got)
	}
	store.Publish(se)
	if got := store.CountByState()["awaiting_combine_files"]; got != 1 {
		t.Fatalf("state count mismatch: %d", got)
	}

	se.Reset()
	store.Publish(se)
	counts := store.CountByState()
	if counts["idle"] != 1 || counts["awaiting_combine_files"] != 0 {
		t.Fatalf("reset not published: %v", counts)
	}
}

func TestCountByStateWhileOwnerMutates(t *testing.T) {
	store := NewStore()
	se := store.Get(7)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			se.State = models.StateAwaitingCombineFiles
			store.Publish(se)
			se.Reset()
			store.Publish(se)
		}
	}()
	for {
		select {
		case <-done:
			if got := store.CountByState()["idle"]; got != 1 {
				t.Fatalf("expected final idle state, got %d", got)
			}
			return
		default:
			_ = store.CountByState()
		}
	}
}

func TestStoreConcurrentGet(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	results := make([]*models.Session, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Get(42)
		}(i)
	}
	wg.Wait()
	for _, se := range results {
		if se != results[0] {
			t.Fatalf("concurrent Get created more than one session")
		}
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session, got %d", store.Len())
	}
}
