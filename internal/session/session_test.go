package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ljoukov/voice-thinker/internal/models"
)

func TestTrim(t *testing.T) {
	s := New("s1", time.Now())
	for i := 0; i < 3; i++ {
		s.AppendUser("q")
		s.AppendAssistant("a")
	}

	if dropped := s.Trim(10); dropped != 0 {
		t.Fatalf("expected no trim under the window, dropped %d", dropped)
	}

	// 6 messages, window 3 -> drop 3, but index 3 is an assistant message, so drop 4
	if dropped := s.Trim(3); dropped != 4 {
		t.Fatalf("expected 4 dropped, got %d", dropped)
	}
	if len(s.Messages) != 2 || s.Messages[0].Role != models.RoleUser {
		t.Fatalf("expected window to start at a user message, got %+v", s.Messages)
	}
}

func TestHistoryIsCopy(t *testing.T) {
	s := New("s1", time.Now())
	s.AppendUser("hello")
	h := s.History()
	h[0].Content = "changed"
	if s.Messages[0].Content != "hello" {
		t.Error("History must not alias session messages")
	}
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"default", "a1b2-c3_d4", "550e8400-e29b-41d4-a716-446655440000"} {
		if !ValidID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	for _, id := range []string{"", "has space", "../etc", string(make([]byte, 65))} {
		if ValidID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived []*Session
}

func (r *recordingArchiver) ArchiveSession(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archived = append(r.archived, s)
	return nil
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	archiver := &recordingArchiver{}
	m := NewManager(NewMemoryStore(), Options{MaxMessages: 40, IdleTTL: time.Hour, Archiver: archiver})

	s, release, err := m.Acquire(ctx, "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if s.ID != DefaultID {
		t.Errorf("expected default session, got %s", s.ID)
	}
	s.AppendUser("hi")
	s.AppendAssistant("MODE: curious\n\nhello")
	s.Turns++
	if err := m.Commit(ctx, s); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	release()

	again, release, err := m.Acquire(ctx, DefaultID)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if len(again.Messages) != 2 || again.Turns != 1 {
		t.Fatalf("expected persisted history, got %+v", again)
	}
	release()

	if err := m.End(ctx, DefaultID); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if len(archiver.archived) != 1 || archiver.archived[0].ID != DefaultID {
		t.Fatalf("expected session to be archived, got %+v", archiver.archived)
	}
	if _, err := m.Get(ctx, DefaultID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after End, got %v", err)
	}
	if err := m.End(ctx, DefaultID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second End, got %v", err)
	}
}

func TestManagerCreate(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{MaxMessages: 10})
	s, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !ValidID(s.ID) {
		t.Errorf("generated id %q is not a valid session id", s.ID)
	}
	if _, err := m.Get(context.Background(), s.ID); err != nil {
		t.Errorf("created session not stored: %v", err)
	}
}

func TestManagerCommitAppliesWindow(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), Options{MaxMessages: 4})

	s, release, _ := m.Acquire(ctx, "win")
	for i := 0; i < 5; i++ {
		s.AppendUser("q")
		s.AppendAssistant("a")
	}
	if err := m.Commit(ctx, s); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	release()

	stored, _ := m.Get(ctx, "win")
	if len(stored.Messages) != 4 {
		t.Errorf("expected 4 messages after window, got %d", len(stored.Messages))
	}
}

func TestManagerSerializesTurns(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), Options{MaxMessages: 100})

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, release, err := m.Acquire(ctx, "shared")
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer release()
			s.AppendUser("q")
			time.Sleep(time.Millisecond)
			s.AppendAssistant("a")
			s.Turns++
			if err := m.Commit(ctx, s); err != nil {
				t.Errorf("Commit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	s, _ := m.Get(ctx, "shared")
	if s.Turns != workers || len(s.Messages) != 2*workers {
		t.Fatalf("expected %d turns and %d messages, got %d and %d", workers, 2*workers, s.Turns, len(s.Messages))
	}
	for i := 0; i < len(s.Messages); i += 2 {
		if s.Messages[i].Role != models.RoleUser || s.Messages[i+1].Role != models.RoleAssistant {
			t.Fatalf("turns interleaved at %d: %+v", i, s.Messages)
		}
	}

	m.mu.Lock()
	leftover := len(m.locks)
	m.mu.Unlock()
	if leftover != 0 {
		t.Errorf("expected lock table to be empty, got %d entries", leftover)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{MaxMessages: 10})

	_, release, err := m.Acquire(context.Background(), "busy")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := m.Acquire(ctx, "busy"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEvictIdle(t *testing.T) {
	ctx := context.Background()
	archiver := &recordingArchiver{}
	m := NewManager(NewMemoryStore(), Options{MaxMessages: 10, IdleTTL: 10 * time.Minute, Archiver: archiver})

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	for _, id := range []string{"old", "fresh"} {
		s, release, _ := m.Acquire(ctx, id)
		s.AppendUser("hi")
		m.Commit(ctx, s)
		release()
		base = base.Add(15 * time.Minute)
	}

	// now = 12:30; "old" updated 12:00, "fresh" updated 12:15; cutoff 12:20
	n, err := m.EvictIdle(ctx)
	if err != nil {
		t.Fatalf("EvictIdle failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected both sessions evicted, got %d", n)
	}

	s, release, _ := m.Acquire(ctx, "new")
	m.Commit(ctx, s)
	release()
	if n, _ := m.EvictIdle(ctx); n != 0 {
		t.Errorf("expected fresh session to survive, evicted %d", n)
	}
	if len(archiver.archived) != 2 {
		t.Errorf("expected 2 archived sessions, got %d", len(archiver.archived))
	}
}

func TestSessionEncoding(t *testing.T) {
	s := New("enc", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s.AppendUser("play a song")
	s.AppendAssistant("MODE: celebrating\n\nplay-song")
	s.Turns = 1

	data, err := encodeSession(s)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeSession(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.ID != s.ID || got.Turns != 1 || len(got.Messages) != 2 || !got.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("session did not survive encoding: %+v", got)
	}
	if got.Messages[1].Content != "MODE: celebrating\n\nplay-song" {
		t.Errorf("unexpected message content %q", got.Messages[1].Content)
	}
}

func TestEvictIdleSkipsSessionRefreshedWhileWaiting(t *testing.T) {
	ctx := context.Background()
	archiver := &recordingArchiver{}
	m := NewManager(NewMemoryStore(), Options{MaxMessages: 10, IdleTTL: 10 * time.Minute, Archiver: archiver})

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	s, release, _ := m.Acquire(ctx, "conv")
	s.AppendUser("hi")
	m.Commit(ctx, s)
	release()

	later := start.Add(15 * time.Minute)
	m.now = func() time.Time { return later }

	// A turn holds the lock while the sweep runs.
	s, release, err := m.Acquire(ctx, "conv")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	type sweepResult struct {
		n   int
		err error
	}
	done := make(chan sweepResult, 1)
	go func() {
		n, err := m.EvictIdle(ctx)
		done <- sweepResult{n, err}
	}()

	// Wait until the sweep is queued on the session lock.
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.mu.Lock()
		waiting := m.locks["conv"] != nil && m.locks["conv"].refs == 2
		m.mu.Unlock()
		if waiting {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sweep never waited on the session lock")
		}
		time.Sleep(time.Millisecond)
	}

	s.AppendAssistant("MODE: listening\n\nhello")
	s.Turns++
	if err := m.Commit(ctx, s); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	release()

	res := <-done
	if res.err != nil || res.n != 0 {
		t.Fatalf("expected nothing evicted, got %d (%v)", res.n, res.err)
	}
	if _, err := m.Get(ctx, "conv"); err != nil {
		t.Fatalf("session was evicted right after its turn: %v", err)
	}
	if len(archiver.archived) != 0 {
		t.Errorf("expected no archive for a live session, got %d", len(archiver.archived))
	}
}

type staleStore struct {
	*MemoryStore
}

// IdleSince reports a session that no longer exists.
func (s staleStore) IdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	return []string{"gone"}, nil
}

func TestEvictIdleIgnoresMissingSessions(t *testing.T) {
	m := NewManager(staleStore{NewMemoryStore()}, Options{MaxMessages: 10, IdleTTL: time.Minute})
	n, err := m.EvictIdle(context.Background())
	if err != nil {
		t.Fatalf("EvictIdle failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected missing session not to count, got %d", n)
	}
}
