package lock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/board"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/ledger"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/tracker"
)

func newTestManager(t *testing.T, issues []tracker.Issue, opts ...Option) (*Manager, *tracker.Fixture) {
	t.Helper()

	store, err := ledger.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	fixture := tracker.NewFixture(issues)
	filter, err := tracker.NewFilter([]string{"meta", "epic:*"}, []string{"[meta]"})
	if err != nil {
		t.Fatal(err)
	}

	return NewManager(store, fixture, filter, opts...), fixture
}

func backlog() []tracker.Issue {
	return []tracker.Issue{
		{Number: 1, Title: "Low priority chore", Labels: []string{"priority:low"}},
		{Number: 2, Title: "Production crash", Labels: []string{"priority:critical"}},
		{Number: 3, Title: "Roadmap", Labels: []string{"meta"}},
		{Number: 4, Title: "Medium fix", Labels: []string{"priority:medium"}},
	}
}

func TestClaimPicksHighestPriorityEligible(t *testing.T) {
	m, fixture := newTestManager(t, backlog())
	ctx := context.Background()

	claim, err := m.Claim(ctx, "session-a")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if claim.ItemID != 2 {
		t.Errorf("claimed #%d, want #2 (priority:critical)", claim.ItemID)
	}
	if claim.SessionID != "session-a" {
		t.Errorf("SessionID = %q", claim.SessionID)
	}

	comments := fixture.Comments(2)
	if len(comments) != 1 || !strings.Contains(comments[0], "session-a") {
		t.Errorf("acknowledgement comment = %v", comments)
	}
}

func TestClaimSkipsMetaAndClaimed(t *testing.T) {
	m, _ := newTestManager(t, backlog())
	ctx := context.Background()

	first, err := m.Claim(ctx, "session-a")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Claim(ctx, "session-b")
	if err != nil {
		t.Fatal(err)
	}
	third, err := m.Claim(ctx, "session-c")
	if err != nil {
		t.Fatal(err)
	}

	got := map[int]bool{first.ItemID: true, second.ItemID: true, third.ItemID: true}
	if got[3] {
		t.Error("meta item #3 was claimed")
	}
	if len(got) != 3 {
		t.Errorf("duplicate claims handed out: %v", got)
	}

	// Backlog exhausted: only the meta item remains.
	if _, err := m.Claim(ctx, "session-d"); !errors.Is(err, errors.ErrNoWork) {
		t.Errorf("Claim() on exhausted backlog = %v, want ErrNoWork", err)
	}
}

// TestClaimConcurrentSessions races sessions through one shared manager
// and store handle, the way a coordinator round does. Every claimable
// item must be granted exactly once and the surplus session must see
// an empty backlog.
func TestClaimConcurrentSessions(t *testing.T) {
	m, _ := newTestManager(t, []tracker.Issue{
		{Number: 1, Title: "First"},
		{Number: 2, Title: "Second"},
	}, WithLockWait(5*time.Second))
	ctx := context.Background()

	type outcome struct {
		session string
		claim   *ledger.Claim
		err     error
	}
	results := make(chan outcome, 3)
	for _, session := range []string{"session-a", "session-b", "session-c"} {
		go func(session string) {
			claim, err := m.Claim(ctx, session)
			results <- outcome{session: session, claim: claim, err: err}
		}(session)
	}

	granted := make(map[int]string)
	noWork := 0
	for i := 0; i < 3; i++ {
		res := <-results
		switch {
		case res.err == nil:
			if owner, dup := granted[res.claim.ItemID]; dup {
				t.Errorf("item #%d granted to both %s and %s", res.claim.ItemID, owner, res.session)
			}
			granted[res.claim.ItemID] = res.session
		case errors.Is(res.err, errors.ErrNoWork):
			noWork++
		default:
			t.Errorf("%s: Claim() error = %v", res.session, res.err)
		}
	}

	if len(granted) != 2 {
		t.Errorf("granted = %v, want both items handed out", granted)
	}
	if noWork != 1 {
		t.Errorf("no-work results = %d, want 1", noWork)
	}

	claims, err := m.ActiveClaims()
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 2 {
		t.Errorf("ledger holds %d claims, want 2", len(claims))
	}
}

func TestClaimReclaimsStaleClaim(t *testing.T) {
	now := time.Now()
	clock := &now
	m, _ := newTestManager(t, []tracker.Issue{
		{Number: 10, Title: "Only item"},
	}, withClock(func() time.Time { return *clock }))
	ctx := context.Background()

	if _, err := m.Claim(ctx, "session-dead"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Claim(ctx, "session-b"); !errors.Is(err, errors.ErrNoWork) {
		t.Fatalf("fresh claim not respected: %v", err)
	}

	later := now.Add(DefaultTTL + time.Minute)
	clock = &later

	claim, err := m.Claim(ctx, "session-b")
	if err != nil {
		t.Fatalf("Claim() after TTL error = %v", err)
	}
	if claim.ItemID != 10 || claim.SessionID != "session-b" {
		t.Errorf("claim = %+v, want item 10 reclaimed by session-b", claim)
	}
}

func TestReleaseClosedDeletesClaim(t *testing.T) {
	m, _ := newTestManager(t, []tracker.Issue{{Number: 5, Title: "One"}})
	ctx := context.Background()

	claim, err := m.Claim(ctx, "session-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Release(ctx, claim.ItemID, "session-a", true); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	claims, err := m.ActiveClaims()
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 0 {
		t.Errorf("claims = %v, want empty after closed release", claims)
	}
}

func TestReleaseOpenAccumulatesFailures(t *testing.T) {
	m, _ := newTestManager(t, []tracker.Issue{{Number: 5, Title: "Stubborn"}})
	ctx := context.Background()

	for i := 0; i < DefaultFailureThreshold; i++ {
		claim, err := m.Claim(ctx, "session-a")
		if err != nil {
			t.Fatalf("attempt %d: Claim() error = %v", i, err)
		}
		if err := m.Release(ctx, claim.ItemID, "session-a", false); err != nil {
			t.Fatalf("attempt %d: Release() error = %v", i, err)
		}
	}

	claims, err := m.ActiveClaims()
	if err != nil {
		t.Fatal(err)
	}
	if claims[5] == nil || claims[5].FailureCount != DefaultFailureThreshold {
		t.Fatalf("claim = %+v, want failure count %d", claims[5], DefaultFailureThreshold)
	}
	if claims[5].FailedAt == nil {
		t.Error("FailedAt not set")
	}

	// Deprioritized: skipped, not deleted.
	if _, err := m.Claim(ctx, "session-b"); !errors.Is(err, errors.ErrNoWork) {
		t.Errorf("deprioritized item still claimable: %v", err)
	}
}

func TestReclaimFailedFlag(t *testing.T) {
	m, _ := newTestManager(t, []tracker.Issue{{Number: 5, Title: "Stubborn"}},
		WithReclaimFailed(true), WithFailureThreshold(1))
	ctx := context.Background()

	claim, err := m.Claim(ctx, "session-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Release(ctx, claim.ItemID, "session-a", false); err != nil {
		t.Fatal(err)
	}

	claim, err = m.Claim(ctx, "session-b")
	if err != nil {
		t.Fatalf("Claim() with reclaim enabled error = %v", err)
	}
	if claim.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want history preserved", claim.FailureCount)
	}
}

func TestReleaseOwnershipChecks(t *testing.T) {
	m, _ := newTestManager(t, []tracker.Issue{{Number: 5, Title: "One"}})
	ctx := context.Background()

	if err := m.Release(ctx, 5, "session-a", true); !errors.Is(err, errors.ErrClaimNotFound) {
		t.Errorf("Release() unclaimed = %v, want ErrClaimNotFound", err)
	}

	if _, err := m.Claim(ctx, "session-a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(ctx, 5, "session-b", true); !errors.Is(err, errors.ErrNotClaimOwner) {
		t.Errorf("Release() by non-owner = %v, want ErrNotClaimOwner", err)
	}
}

func TestClaimLockTimeoutIsNoWork(t *testing.T) {
	dir := t.TempDir()
	store, err := ledger.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	// A second handle on the same ledger holds the exclusive section.
	holder, err := ledger.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Close()
	if err := holder.Lock(0); err != nil {
		t.Fatal(err)
	}
	defer holder.Unlock()

	fixture := tracker.NewFixture([]tracker.Issue{{Number: 1, Title: "X"}})
	m := NewManager(store, fixture, nil, WithLockWait(100*time.Millisecond))

	if _, err := m.Claim(context.Background(), "session-a"); !errors.Is(err, errors.ErrNoWork) {
		t.Errorf("Claim() under contention = %v, want ErrNoWork", err)
	}
}

func TestCleanupSweepsStaleClaims(t *testing.T) {
	now := time.Now()
	clock := &now
	m, _ := newTestManager(t, []tracker.Issue{
		{Number: 1, Title: "A"},
		{Number: 2, Title: "B"},
	}, withClock(func() time.Time { return *clock }))
	ctx := context.Background()

	if _, err := m.Claim(ctx, "session-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Claim(ctx, "session-b"); err != nil {
		t.Fatal(err)
	}

	later := now.Add(DefaultTTL + time.Minute)
	clock = &later

	removed, err := m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed = %v, want both stale claims", removed)
	}

	claims, err := m.ActiveClaims()
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 0 {
		t.Errorf("claims = %v, want empty", claims)
	}
}

func TestClaimNotifiesBoard(t *testing.T) {
	store, err := ledger.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	fixture := tracker.NewFixture([]tracker.Issue{{Number: 9, Title: "Track me"}})
	sink := board.NewSink(board.NewLabelBoard(fixture), nil)
	m := NewManager(store, fixture, nil, WithBoard(sink))

	if _, err := m.Claim(context.Background(), "session-a"); err != nil {
		t.Fatal(err)
	}

	issue, err := fixture.GetIssue(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if !issue.HasLabel("status:in-progress") {
		t.Errorf("labels = %v, want status:in-progress", issue.Labels)
	}
}
