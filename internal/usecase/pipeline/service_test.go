package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobpay/matchflow/internal/domain"
)

func TestSubmit_CreatesRunAndEnqueues(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")

	runID, created, err := env.svc.Submit(context.Background(), "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}

	run, err := env.runs.Get(context.Background(), runID)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if run.State != domain.RunPending {
		t.Fatalf("expected pending, got %s", run.State)
	}
	if len(env.queue.match) != 1 || env.queue.match[0] != runID {
		t.Fatalf("expected run on the match queue, got %v", env.queue.match)
	}
}

func TestSubmit_DuplicateResolvesToActiveRun(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")

	first, _, err := env.svc.Submit(context.Background(), "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, created, err := env.svc.Submit(context.Background(), "j1")
	if err != nil {
		t.Fatalf("duplicate submit must not fail: %v", err)
	}
	if created {
		t.Fatal("expected created=false for duplicate")
	}
	if second != first {
		t.Fatalf("expected existing run %s, got %s", first, second)
	}
	// The duplicate redelivers the active run instead of enqueueing a new
	// one, so a run whose queue item was lost gets picked up again.
	if len(env.queue.match) != 2 || env.queue.match[1] != first {
		t.Fatalf("expected the active run redelivered, queue: %v", env.queue.match)
	}
}

func TestSubmit_UnknownJob(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Submit(context.Background(), "absent")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

// startNotifyingRun submits and runs the matching stage for job j1 with
// candidates c1 (email+sms) and c2 (email), three tasks total.
func startNotifyingRun(t *testing.T, env *testEnv) string {
	t.Helper()
	env.seedJob("j1")
	env.seedCandidate("c1", domain.ChannelEmail, domain.ChannelSMS)
	env.seedCandidate("c2", domain.ChannelEmail)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return []domain.MatchScore{scoreFor("c1", 0, 0.9), scoreFor("c2", 1, 0.6)}, false, nil
	}

	runID, _, err := env.svc.Submit(context.Background(), "j1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("process match: %v", err)
	}
	return runID
}

func TestProcessMatch_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	runID := startNotifyingRun(t, env)

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunNotifying {
		t.Fatalf("expected notifying, got %s", run.State)
	}
	if run.Matches != 2 || run.TasksTotal != 3 {
		t.Fatalf("unexpected counters: matches=%d tasks=%d", run.Matches, run.TasksTotal)
	}
	if run.StartedAt.IsZero() || run.MatchedAt.IsZero() {
		t.Fatal("expected stage timestamps set")
	}

	batch := env.scores.batches[runID]
	if len(batch) != 2 {
		t.Fatalf("expected committed batch of 2, got %d", len(batch))
	}
	for _, s := range batch {
		if s.RunID != runID {
			t.Fatalf("score missing run id stamp: %+v", s)
		}
	}

	if len(env.queue.notify) != 3 {
		t.Fatalf("expected 3 notify items, got %v", env.queue.notify)
	}

	// The job lock must be free again.
	ok, _ := env.lock.Acquire(context.Background(), "j1", "next-run")
	if !ok {
		t.Fatal("expected job lock released after matching")
	}
}

func TestProcessMatch_NoMatchesCompletesImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return nil, false, nil
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunComplete {
		t.Fatalf("expected complete, got %s", run.State)
	}
	if _, err := env.runs.ActiveRun(context.Background(), "j1"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatal("expected active-run slot released")
	}
}

func TestProcessMatch_DegradedRunRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.seedCandidate("c1", domain.ChannelEmail)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return []domain.MatchScore{scoreFor("c1", 0, 0.7)}, true, nil
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if !run.Degraded {
		t.Fatal("expected degraded flag on the run")
	}
	if run.State != domain.RunNotifying {
		t.Fatalf("degraded run must keep going, got %s", run.State)
	}
}

func TestProcessMatch_CancelBeforeMatching(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.Cancel(context.Background(), runID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunCancelled {
		t.Fatalf("expected cancelled, got %s", run.State)
	}
	if run.Reason == "" {
		t.Fatal("cancelled run must carry a reason")
	}
}

func TestProcessMatch_RetryableFailureThenFailed(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return nil, false, domain.ErrProviderUnavailable
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")

	// Attempts 1 and 2 reschedule.
	for i := 1; i <= 2; i++ {
		if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		run, _ := env.runs.Get(context.Background(), runID)
		if run.State != domain.RunMatching {
			t.Fatalf("attempt %d: expected matching, got %s", i, run.State)
		}
		if run.Attempts != i {
			t.Fatalf("attempt %d: expected attempts=%d, got %d", i, i, run.Attempts)
		}
		if len(env.queue.delayed) != i {
			t.Fatalf("attempt %d: expected %d delayed items, got %d", i, i, len(env.queue.delayed))
		}
		if env.queue.delayed[i-1].kind != KindMatch {
			t.Fatalf("expected match retry, got %s", env.queue.delayed[i-1].kind)
		}
	}

	// Attempt 3 exhausts the budget.
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("final attempt: %v", err)
	}
	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.State)
	}
	if run.Reason == "" {
		t.Fatal("failed run must carry a reason")
	}
	if _, err := env.runs.ActiveRun(context.Background(), "j1"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatal("expected active-run slot released")
	}
}

func TestProcessMatch_InvalidInputFailsImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return nil, false, domain.ErrInvalidInput
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunFailed {
		t.Fatalf("expected failed without retries, got %s", run.State)
	}
	if len(env.queue.delayed) != 0 {
		t.Fatal("invalid input must not be retried")
	}
}

func TestProcessMatch_LockHeldReschedules(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	env.lock.held["j1"] = "other-run"

	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunPending || run.Attempts != 0 {
		t.Fatalf("lock contention must not consume an attempt: %+v", run)
	}
	if len(env.queue.delayed) != 1 || env.queue.delayed[0].kind != KindMatch {
		t.Fatalf("expected a rescheduled match item, got %v", env.queue.delayed)
	}
}

func TestProcessMatch_ResumesFanOutAfterCrash(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.seedCandidate("c1", domain.ChannelEmail)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		t.Fatal("matching must not rerun once the batch is committed")
		return nil, false, nil
	}

	// A worker died after committing the batch and the matched state but
	// before enqueuing any notify item.
	run := &domain.MatchingRun{
		ID:        "run-crashed",
		JobID:     "j1",
		State:     domain.RunMatched,
		Matches:   1,
		Attempts:  1,
		CreatedAt: time.Now().UTC(),
	}
	if err := env.runs.Create(context.Background(), run); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	score := scoreFor("c1", 0, 0.9)
	score.RunID = run.ID
	env.scores.batches[run.ID] = []domain.MatchScore{score}

	if err := env.svc.ProcessMatch(context.Background(), run.ID); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	got, _ := env.runs.Get(context.Background(), run.ID)
	if got.State != domain.RunNotifying || got.TasksTotal != 1 {
		t.Fatalf("expected resumed fan-out, got %+v", got)
	}
	if len(env.queue.notify) != 1 {
		t.Fatalf("expected 1 notify item, got %v", env.queue.notify)
	}

	drainNotify(t, env)
	got, _ = env.runs.Get(context.Background(), run.ID)
	if got.State != domain.RunComplete {
		t.Fatalf("expected complete after resume, got %s", got.State)
	}
}

func TestProcessMatch_RedeliveryInNotifyingKeepsSingleTaskSet(t *testing.T) {
	env := newTestEnv(t)
	runID := startNotifyingRun(t, env)

	// One delivery already happened before the worker died; the remaining
	// enqueued items died with it.
	first := domain.TaskTripleKey(runID, "c1", domain.ChannelEmail)
	if err := env.svc.ProcessNotify(context.Background(), first); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	env.queue.notify = nil

	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if len(env.tasks.rows) != 3 {
		t.Fatalf("redelivery must not duplicate tasks, got %d rows", len(env.tasks.rows))
	}
	if len(env.queue.notify) != 3 {
		t.Fatalf("expected all triples re-enqueued, got %v", env.queue.notify)
	}

	drainNotify(t, env)

	task, _ := env.tasks.Get(context.Background(), runID, "c1", domain.ChannelEmail)
	if task.Attempts != 1 {
		t.Fatalf("delivered task must not be redone, attempts=%d", task.Attempts)
	}
	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunComplete {
		t.Fatalf("expected complete, got %s", run.State)
	}
}

func drainNotify(t *testing.T, env *testEnv) {
	t.Helper()
	for {
		triple, ok, err := env.queue.DequeueNotify(context.Background(), 0)
		if err != nil {
			t.Fatalf("dequeue notify: %v", err)
		}
		if !ok {
			return
		}
		if err := env.svc.ProcessNotify(context.Background(), triple); err != nil {
			t.Fatalf("process notify %s: %v", triple, err)
		}
	}
}

func TestProcessNotify_AllDeliveredCompletesRun(t *testing.T) {
	env := newTestEnv(t)
	runID := startNotifyingRun(t, env)

	drainNotify(t, env)

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunComplete {
		t.Fatalf("expected complete, got %s", run.State)
	}

	tasks, _ := env.tasks.ListByRun(context.Background(), runID)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.State != domain.TaskDelivered || task.Attempts != 1 {
			t.Fatalf("unexpected task: %+v", task)
		}
	}
}

func TestProcessNotify_RetryableThenSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.seedCandidate("c1", domain.ChannelEmail)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return []domain.MatchScore{scoreFor("c1", 0, 0.9)}, false, nil
	}

	failures := 2
	env.dispatcher.dispatchFn = func(_ context.Context, _ *domain.NotificationTask,
		_ *domain.CandidateProfile, _ *domain.JobPosting, _ *domain.MatchScore,
	) (domain.DeliveryOutcome, error) {
		if failures > 0 {
			failures--
			return domain.RetryableFailure, domain.ErrProviderUnavailable
		}
		return domain.Delivered, nil
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("process match: %v", err)
	}

	triple := domain.TaskTripleKey(runID, "c1", domain.ChannelEmail)
	for i := 0; i < 3; i++ {
		if err := env.svc.ProcessNotify(context.Background(), triple); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	task, err := env.tasks.Get(context.Background(), runID, "c1", domain.ChannelEmail)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.State != domain.TaskDelivered {
		t.Fatalf("expected delivered, got %s", task.State)
	}
	if task.Attempts != 3 {
		t.Fatalf("expected attempts=3, got %d", task.Attempts)
	}
	if len(env.tasks.rows) != 1 {
		t.Fatalf("expected a single task row for the triple, got %d", len(env.tasks.rows))
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunComplete {
		t.Fatalf("expected complete, got %s", run.State)
	}
}

func TestProcessNotify_RetryBudgetExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.seedCandidate("c1", domain.ChannelEmail)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return []domain.MatchScore{scoreFor("c1", 0, 0.9)}, false, nil
	}
	env.dispatcher.dispatchFn = func(_ context.Context, _ *domain.NotificationTask,
		_ *domain.CandidateProfile, _ *domain.JobPosting, _ *domain.MatchScore,
	) (domain.DeliveryOutcome, error) {
		return domain.RetryableFailure, domain.ErrProviderUnavailable
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("process match: %v", err)
	}

	triple := domain.TaskTripleKey(runID, "c1", domain.ChannelEmail)
	for i := 0; i < 3; i++ {
		if err := env.svc.ProcessNotify(context.Background(), triple); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	task, _ := env.tasks.Get(context.Background(), runID, "c1", domain.ChannelEmail)
	if task.State != domain.TaskAbandoned {
		t.Fatalf("expected abandoned, got %s", task.State)
	}
	if task.LastError == "" {
		t.Fatal("abandoned task must record its last error")
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunPartial {
		t.Fatalf("expected partial, got %s", run.State)
	}
	if run.Reason == "" {
		t.Fatal("partial run must carry a reason")
	}
}

func TestProcessNotify_PermanentEmailWhileSMSProceeds(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.seedCandidate("c1", domain.ChannelEmail, domain.ChannelSMS)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return []domain.MatchScore{scoreFor("c1", 0, 0.9)}, false, nil
	}
	env.dispatcher.dispatchFn = func(_ context.Context, task *domain.NotificationTask,
		_ *domain.CandidateProfile, _ *domain.JobPosting, _ *domain.MatchScore,
	) (domain.DeliveryOutcome, error) {
		if task.Channel == domain.ChannelEmail {
			return domain.PermanentFailure, domain.ErrPermanentDelivery
		}
		return domain.Delivered, nil
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("process match: %v", err)
	}
	drainNotify(t, env)

	email, _ := env.tasks.Get(context.Background(), runID, "c1", domain.ChannelEmail)
	if email.State != domain.TaskAbandoned || email.Attempts != 1 {
		t.Fatalf("expected email abandoned at attempt 1, got %+v", email)
	}

	sms, _ := env.tasks.Get(context.Background(), runID, "c1", domain.ChannelSMS)
	if sms.State != domain.TaskDelivered {
		t.Fatalf("sibling channel must proceed, got %+v", sms)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunPartial {
		t.Fatalf("expected partial, got %s", run.State)
	}
}

func TestProcessNotify_TerminalTaskSkippedOnRedelivery(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.seedCandidate("c1", domain.ChannelEmail)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return []domain.MatchScore{scoreFor("c1", 0, 0.9)}, false, nil
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("process match: %v", err)
	}
	drainNotify(t, env)

	calls := env.dispatcher.calls
	triple := domain.TaskTripleKey(runID, "c1", domain.ChannelEmail)
	if err := env.svc.ProcessNotify(context.Background(), triple); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if env.dispatcher.calls != calls {
		t.Fatal("terminal task must not be dispatched again")
	}

	task, _ := env.tasks.Get(context.Background(), runID, "c1", domain.ChannelEmail)
	if task.Attempts != 1 {
		t.Fatalf("expected attempts unchanged, got %d", task.Attempts)
	}
}

func TestProcessNotify_CancelDuringNotifying(t *testing.T) {
	env := newTestEnv(t)
	runID := startNotifyingRun(t, env)

	if err := env.svc.Cancel(context.Background(), runID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	triple, _, _ := env.queue.DequeueNotify(context.Background(), 0)
	if err := env.svc.ProcessNotify(context.Background(), triple); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunCancelled {
		t.Fatalf("expected cancelled, got %s", run.State)
	}
	if env.dispatcher.calls != 0 {
		t.Fatal("no dispatch after cancellation")
	}
}

func TestProcessNotify_CandidateIDWithColonDelivers(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")
	env.seedCandidate("acme:7", domain.ChannelEmail)
	env.engine.matchFn = func(_ context.Context, _ *domain.JobPosting, _ []domain.CandidateProfile, _ int) (
		[]domain.MatchScore, bool, error) {
		return []domain.MatchScore{scoreFor("acme:7", 0, 0.9)}, false, nil
	}

	runID, _, _ := env.svc.Submit(context.Background(), "j1")
	if err := env.svc.ProcessMatch(context.Background(), runID); err != nil {
		t.Fatalf("process match: %v", err)
	}
	drainNotify(t, env)

	task, err := env.tasks.Get(context.Background(), runID, "acme:7", domain.ChannelEmail)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.State != domain.TaskDelivered {
		t.Fatalf("expected delivered, got %s", task.State)
	}

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunComplete {
		t.Fatalf("expected complete, got %s", run.State)
	}
}

func TestParseTriple_CandidateIDWithColon(t *testing.T) {
	triple := domain.TaskTripleKey("run-1", "acme:7", domain.ChannelEmail)

	runID, candidateID, ch, err := parseTriple(triple)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runID != "run-1" || candidateID != "acme:7" || ch != domain.ChannelEmail {
		t.Fatalf("bad split: run=%q candidate=%q channel=%q", runID, candidateID, ch)
	}
}

func TestParseTriple_Malformed(t *testing.T) {
	for _, triple := range []string{
		"", "run-1", "run-1:c1", ":c1:email", "run-1::email", "run-1:c1:carrier",
	} {
		if _, _, _, err := parseTriple(triple); err == nil {
			t.Fatalf("expected error for %q", triple)
		}
	}
}

func TestCheckCompletion_LostFinishClaimLeavesRunAlone(t *testing.T) {
	env := newTestEnv(t)
	runID := startNotifyingRun(t, env)

	// A concurrent worker claimed the finish between this worker's task
	// updates and its completion check.
	env.runs.finished[runID] = true

	drainNotify(t, env)

	run, _ := env.runs.Get(context.Background(), runID)
	if run.State != domain.RunNotifying {
		t.Fatalf("losing finisher must not write the row, got %s", run.State)
	}
}

func TestRunMatches_PendingRunYieldsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob("j1")

	runID, _, _ := env.svc.Submit(context.Background(), "j1")

	scores, err := env.svc.RunMatches(context.Background(), runID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 0 {
		t.Fatalf("expected empty result before the batch commits, got %d", len(scores))
	}
}

func TestRunMatches_UnknownRun(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RunMatches(context.Background(), "absent", 10)
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestCandidateMatches(t *testing.T) {
	env := newTestEnv(t)
	runID := startNotifyingRun(t, env)

	scores, err := env.svc.CandidateMatches(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 1 || scores[0].RunID != runID {
		t.Fatalf("unexpected scores: %+v", scores)
	}

	_, err = env.svc.CandidateMatches(context.Background(), "absent")
	if !errors.Is(err, domain.ErrCandidateNotFound) {
		t.Fatalf("expected ErrCandidateNotFound, got %v", err)
	}
}
