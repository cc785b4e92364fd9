package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobpay/matchflow/internal/config"
	"github.com/jobpay/matchflow/internal/domain"
	"github.com/jobpay/matchflow/internal/metrics"
)

// Delayed-queue item kinds. Must match what the queue repository routes on.
const (
	KindMatch  = "match"
	KindNotify = "notify"
)

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Runs       RunRepo
	Profiles   ProfileRepo
	Scores     ScoreRepo
	Tasks      TaskRepo
	Queue      WorkQueue
	Lock       JobLock
	Engine     Engine
	Dispatcher Dispatcher
}

// Service is the pipeline orchestrator: it owns the run state machine and
// sequences matching, score persistence, and notification fan-out.
type Service struct {
	runs       RunRepo
	profiles   ProfileRepo
	scores     ScoreRepo
	tasks      TaskRepo
	queue      WorkQueue
	lock       JobLock
	engine     Engine
	dispatcher Dispatcher

	matching config.MatchingConfig
	notify   config.NotifyConfig
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// New creates the orchestrator.
func New(deps Deps, matching config.MatchingConfig, notify config.NotifyConfig, logger *zap.Logger) *Service {
	return &Service{
		runs:       deps.Runs,
		profiles:   deps.Profiles,
		scores:     deps.Scores,
		tasks:      deps.Tasks,
		queue:      deps.Queue,
		lock:       deps.Lock,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		matching:   matching,
		notify:     notify,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Submit handles a job-created signal. Upstream delivery is at-least-once,
// so a duplicate signal while a run is active resolves to the existing run
// as a no-op. Returns the run ID and whether a new run was created.
func (s *Service) Submit(ctx context.Context, jobID string) (string, bool, error) {
	if _, err := s.profiles.GetJob(ctx, jobID); err != nil {
		return "", false, err
	}

	run := &domain.MatchingRun{
		ID:        s.newID(),
		JobID:     jobID,
		State:     domain.RunPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		if errors.Is(err, domain.ErrRunActive) {
			existing, aerr := s.runs.ActiveRun(ctx, jobID)
			if aerr != nil {
				return "", false, aerr
			}
			// Match processing is idempotent, so redelivering the active
			// run is safe and revives it if its queue item was lost.
			if err := s.queue.EnqueueMatch(ctx, existing); err != nil {
				return "", false, fmt.Errorf("enqueue run %s: %w", existing, err)
			}
			s.logger.Info("Duplicate submit resolved to active run",
				zap.String("job_id", jobID), zap.String("run_id", existing))
			return existing, false, nil
		}
		return "", false, err
	}

	if err := s.queue.EnqueueMatch(ctx, run.ID); err != nil {
		return "", false, fmt.Errorf("enqueue run %s: %w", run.ID, err)
	}

	s.logger.Info("Matching run submitted",
		zap.String("job_id", jobID), zap.String("run_id", run.ID))
	return run.ID, true, nil
}

// Cancel raises the cooperative cancellation flag; the run finishes
// cancelled at the next transition boundary, in-flight sends complete.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	return s.runs.RequestCancel(ctx, runID)
}

// Run returns a run's current row.
func (s *Service) Run(ctx context.Context, runID string) (*domain.MatchingRun, error) {
	return s.runs.Get(ctx, runID)
}

// RunMatches returns a run's ranked scores. A run that has not committed
// its batch yet yields an empty slice, not an error.
func (s *Service) RunMatches(ctx context.Context, runID string, limit int) ([]domain.MatchScore, error) {
	if _, err := s.runs.Get(ctx, runID); err != nil {
		return nil, err
	}
	scores, err := s.scores.ByRun(ctx, runID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return []domain.MatchScore{}, nil
		}
		return nil, err
	}
	return scores, nil
}

// RunTasks returns a run's notification tasks.
func (s *Service) RunTasks(ctx context.Context, runID string) ([]domain.NotificationTask, error) {
	if _, err := s.runs.Get(ctx, runID); err != nil {
		return nil, err
	}
	return s.tasks.ListByRun(ctx, runID)
}

// CandidateMatches returns every score recorded for a candidate.
func (s *Service) CandidateMatches(ctx context.Context, candidateID string) ([]domain.MatchScore, error) {
	if _, err := s.profiles.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	return s.scores.ByCandidate(ctx, candidateID)
}

// ProcessMatch executes the matching stage for one run: score the pool,
// commit the batch, fan out notification tasks. Safe to redeliver; every
// write is idempotent or guarded by the job lock.
func (s *Service) ProcessMatch(ctx context.Context, runID string) error {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			s.logger.Warn("Match item for unknown run", zap.String("run_id", runID))
			return nil
		}
		return err
	}
	if run.State.Terminal() {
		return nil
	}
	if run.CancelRequested {
		return s.finishRun(ctx, run, domain.RunCancelled, "cancelled before matching")
	}

	acquired, err := s.lock.Acquire(ctx, run.JobID, run.ID)
	if err != nil {
		return err
	}
	if !acquired {
		// Another worker holds the job; come back shortly.
		return s.queue.ScheduleRetry(ctx, KindMatch, run.ID, s.now().Add(requeueDelay))
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), run.JobID, run.ID); err != nil {
			s.logger.Warn("Failed to release job lock",
				zap.String("job_id", run.JobID), zap.Error(err))
		}
	}()

	switch run.State {
	case domain.RunPending:
		run.State = domain.RunMatching
		run.StartedAt = s.now().UTC()
	case domain.RunMatching:
		// Redelivery after a crash or a scheduled retry.
	case domain.RunMatched, domain.RunNotifying:
		// The worker died between committing the batch and enqueuing the
		// notify items. Fan-out is create-if-absent, so it reruns safely.
		return s.resumeFanOut(ctx, run)
	default:
		return nil
	}
	run.Attempts++
	if err := s.runs.Update(ctx, run); err != nil {
		return err
	}

	job, err := s.profiles.GetJob(ctx, run.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return s.finishRun(ctx, run, domain.RunFailed, "job no longer exists")
		}
		return s.retryMatching(ctx, run, err)
	}
	pool, err := s.profiles.ListCandidates(ctx)
	if err != nil {
		return s.retryMatching(ctx, run, err)
	}

	scores, degraded, err := s.engine.Match(ctx, job, pool, s.matching.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return s.finishRun(ctx, run, domain.RunFailed, err.Error())
		}
		return s.retryMatching(ctx, run, err)
	}

	for i := range scores {
		scores[i].RunID = run.ID
	}
	if err := s.scores.SaveBatch(ctx, run.ID, scores); err != nil {
		return s.retryMatching(ctx, run, err)
	}

	run.Matches = len(scores)
	run.Degraded = degraded
	run.MatchedAt = s.now().UTC()
	run.State = domain.RunMatched
	if err := s.runs.Update(ctx, run); err != nil {
		return err
	}

	// Cancellation may have been requested while scoring.
	if fresh, err := s.runs.Get(ctx, run.ID); err == nil && fresh.CancelRequested {
		run.CancelRequested = true
		return s.finishRun(ctx, run, domain.RunCancelled, "cancelled after matching")
	}

	tasks, err := s.fanOut(ctx, run, scores, pool)
	if err != nil {
		return s.retryMatching(ctx, run, err)
	}
	return s.startNotifying(ctx, run, tasks)
}

// resumeFanOut rebuilds notification fan-out from the committed score
// batch after a crash mid-transition. Existing task rows keep their
// delivery progress; every triple is enqueued again.
func (s *Service) resumeFanOut(ctx context.Context, run *domain.MatchingRun) error {
	scores, err := s.scores.ByRun(ctx, run.ID, 0)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return s.finishRun(ctx, run, domain.RunFailed, "score batch missing on resume")
		}
		return s.retryMatching(ctx, run, err)
	}
	pool, err := s.profiles.ListCandidates(ctx)
	if err != nil {
		return s.retryMatching(ctx, run, err)
	}

	s.logger.Info("Resuming notification fan-out",
		zap.String("run_id", run.ID), zap.String("state", string(run.State)))

	tasks, err := s.fanOut(ctx, run, scores, pool)
	if err != nil {
		return s.retryMatching(ctx, run, err)
	}
	return s.startNotifying(ctx, run, tasks)
}

// startNotifying records the fan-out result and enqueues one notify item
// per task. A fan-out with nothing to send completes the run on the spot.
func (s *Service) startNotifying(ctx context.Context, run *domain.MatchingRun, tasks []domain.NotificationTask) error {
	if len(tasks) == 0 {
		s.logger.Info("No notifications to send", zap.String("run_id", run.ID))
		return s.finishRun(ctx, run, domain.RunComplete, "")
	}

	run.TasksTotal = len(tasks)
	run.State = domain.RunNotifying
	if err := s.runs.Update(ctx, run); err != nil {
		return err
	}

	for i := range tasks {
		if err := s.queue.EnqueueNotify(ctx, tasks[i].TripleKey()); err != nil {
			return fmt.Errorf("enqueue notify %s: %w", tasks[i].TripleKey(), err)
		}
	}
	return nil
}

// fanOut creates one task per (top-N candidate x enabled channel) via
// create-if-absent, so a crashed run re-fans-out without duplicates.
func (s *Service) fanOut(
	ctx context.Context, run *domain.MatchingRun,
	scores []domain.MatchScore, pool []domain.CandidateProfile,
) ([]domain.NotificationTask, error) {
	byID := make(map[string]*domain.CandidateProfile, len(pool))
	for i := range pool {
		byID[pool[i].ID] = &pool[i]
	}

	topN := s.matching.TopN
	if topN > len(scores) {
		topN = len(scores)
	}

	var tasks []domain.NotificationTask
	for _, score := range scores[:topN] {
		candidate := byID[score.CandidateID]
		if candidate == nil {
			continue
		}
		for _, ch := range candidate.Channels {
			task := domain.NotificationTask{
				RunID:       run.ID,
				CandidateID: candidate.ID,
				Channel:     ch,
				State:       domain.TaskPending,
				CreatedAt:   s.now().UTC(),
			}
			if _, err := s.tasks.Create(ctx, &task); err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}

	if err := s.tasks.SaveRunIndex(ctx, run.ID, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// retryMatching re-enqueues the matching stage with backoff, or fails the
// run once the attempt budget is spent.
func (s *Service) retryMatching(ctx context.Context, run *domain.MatchingRun, cause error) error {
	if run.Attempts >= s.matching.MaxAttempts {
		return s.finishRun(ctx, run, domain.RunFailed,
			fmt.Sprintf("matching failed after %d attempts: %v", run.Attempts, cause))
	}

	delay := backoffDelay(time.Duration(s.matching.BackoffMS)*time.Millisecond, run.Attempts)
	s.logger.Warn("Matching stage failed, retrying",
		zap.String("run_id", run.ID),
		zap.Int("attempt", run.Attempts),
		zap.Duration("delay", delay),
		zap.Error(cause))
	return s.queue.ScheduleRetry(ctx, KindMatch, run.ID, s.now().Add(delay))
}

// ProcessNotify performs one delivery attempt for a task triple. Terminal
// tasks are skipped on redelivery; the attempt counter gates retries.
func (s *Service) ProcessNotify(ctx context.Context, triple string) error {
	runID, candidateID, ch, err := parseTriple(triple)
	if err != nil {
		s.logger.Warn("Malformed notify item", zap.String("triple", triple), zap.Error(err))
		return nil
	}

	task, err := s.tasks.Get(ctx, runID, candidateID, ch)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			s.logger.Warn("Notify item for unknown task", zap.String("triple", triple))
			return nil
		}
		return err
	}
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return nil
		}
		return err
	}
	if run.State.Terminal() {
		return nil
	}
	if task.State.Terminal() {
		// The worker may have died between finishing this task and the
		// run completion check; a redelivered item re-runs the check.
		return s.checkCompletion(ctx, run)
	}
	if run.CancelRequested {
		return s.finishRun(ctx, run, domain.RunCancelled, "cancelled during notification")
	}

	candidate, job, score, perr := s.loadDispatchContext(ctx, run, task)
	if perr != nil {
		// The referenced entity is gone; the task can never succeed.
		return s.abandonTask(ctx, run, task, perr)
	}

	task.Attempts++
	outcome, derr := s.dispatcher.Dispatch(ctx, task, candidate, job, score)

	switch outcome {
	case domain.Delivered:
		task.State = domain.TaskDelivered
		task.LastError = ""
		task.DeliveredAt = s.now().UTC()

	case domain.PermanentFailure:
		return s.abandonTask(ctx, run, task, derr)

	case domain.RetryableFailure:
		policy := s.channelPolicy(task.Channel)
		if task.Attempts >= policy.MaxAttempts {
			return s.abandonTask(ctx, run, task,
				fmt.Errorf("retry budget exhausted after %d attempts: %w", task.Attempts, derr))
		}
		task.LastError = derr.Error()
		task.NextAttemptAt = s.now().Add(
			backoffDelay(time.Duration(policy.BackoffMS)*time.Millisecond, task.Attempts)).UTC()
		if err := s.tasks.Update(ctx, task); err != nil {
			return err
		}
		return s.queue.ScheduleRetry(ctx, KindNotify, triple, task.NextAttemptAt)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return err
	}
	metrics.TasksFinishedTotal.WithLabelValues(string(task.Channel), string(task.State)).Inc()
	return s.checkCompletion(ctx, run)
}

// loadDispatchContext fetches the entities a dispatch attempt renders from.
// A missing entity is returned as a permanent error.
func (s *Service) loadDispatchContext(
	ctx context.Context, run *domain.MatchingRun, task *domain.NotificationTask,
) (*domain.CandidateProfile, *domain.JobPosting, *domain.MatchScore, error) {
	candidate, err := s.profiles.GetCandidate(ctx, task.CandidateID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("candidate %s: %w: %w",
			task.CandidateID, err, domain.ErrPermanentDelivery)
	}
	job, err := s.profiles.GetJob(ctx, run.JobID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("job %s: %w: %w", run.JobID, err, domain.ErrPermanentDelivery)
	}

	scores, err := s.scores.ByRun(ctx, run.ID, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scores for run %s: %w: %w",
			run.ID, err, domain.ErrPermanentDelivery)
	}
	for i := range scores {
		if scores[i].CandidateID == task.CandidateID {
			return candidate, job, &scores[i], nil
		}
	}
	return nil, nil, nil, fmt.Errorf("no score for candidate %s in run %s: %w",
		task.CandidateID, run.ID, domain.ErrPermanentDelivery)
}

// abandonTask finishes a task as abandoned with its reason recorded, then
// re-checks run completion. Sibling tasks are unaffected.
func (s *Service) abandonTask(
	ctx context.Context, run *domain.MatchingRun, task *domain.NotificationTask, cause error,
) error {
	if task.Attempts == 0 {
		task.Attempts = 1
	}
	task.State = domain.TaskAbandoned
	task.LastError = cause.Error()
	task.AbandonedAt = s.now().UTC()
	if err := s.tasks.Update(ctx, task); err != nil {
		return err
	}
	metrics.TasksFinishedTotal.WithLabelValues(string(task.Channel), string(task.State)).Inc()
	return s.checkCompletion(ctx, run)
}

// checkCompletion finishes the run once every fanned-out task is terminal:
// all delivered means complete, any abandoned means partial.
func (s *Service) checkCompletion(ctx context.Context, run *domain.MatchingRun) error {
	tasks, err := s.tasks.ListByRun(ctx, run.ID)
	if err != nil {
		return err
	}

	abandoned := 0
	for i := range tasks {
		if !tasks[i].State.Terminal() {
			return nil
		}
		if tasks[i].State == domain.TaskAbandoned {
			abandoned++
		}
	}

	// Re-read the row: a concurrent worker may have finished the run.
	fresh, err := s.runs.Get(ctx, run.ID)
	if err != nil {
		return err
	}
	if fresh.State != domain.RunNotifying {
		return nil
	}

	if abandoned > 0 {
		return s.finishRun(ctx, fresh, domain.RunPartial,
			fmt.Sprintf("%d of %d notifications abandoned", abandoned, len(tasks)))
	}
	return s.finishRun(ctx, fresh, domain.RunComplete, "")
}

// finishRun moves the run to a terminal state, records the reason, frees
// the job's active-run slot, and emits the terminal metrics.
func (s *Service) finishRun(
	ctx context.Context, run *domain.MatchingRun, state domain.RunState, reason string,
) error {
	if !domain.CanTransition(run.State, state) {
		return fmt.Errorf("run %s: invalid transition %s to %s", run.ID, run.State, state)
	}

	// Two notify workers can both see the last task turn terminal; the
	// claim makes exactly one of them write the terminal row and metrics.
	won, err := s.runs.ClaimFinish(ctx, run.ID)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	run.State = state
	run.Reason = reason
	run.FinishedAt = s.now().UTC()
	if err := s.runs.Update(ctx, run); err != nil {
		return err
	}
	if err := s.runs.ReleaseActive(ctx, run.JobID, run.ID); err != nil {
		s.logger.Warn("Failed to release active-run slot",
			zap.String("job_id", run.JobID), zap.Error(err))
	}

	metrics.RunsFinishedTotal.WithLabelValues(string(state)).Inc()
	if !run.CreatedAt.IsZero() {
		metrics.RunDuration.Observe(run.FinishedAt.Sub(run.CreatedAt).Seconds())
	}

	s.logger.Info("Matching run finished",
		zap.String("run_id", run.ID),
		zap.String("job_id", run.JobID),
		zap.String("state", string(state)),
		zap.String("reason", reason))
	return nil
}

// channelPolicy returns the retry policy for a channel, with defaults for
// channels the config does not mention.
func (s *Service) channelPolicy(ch domain.Channel) config.ChannelConfig {
	policy, ok := s.notify.Channels[string(ch)]
	if !ok {
		return config.ChannelConfig{MaxAttempts: 3, BackoffMS: 30_000}
	}
	return policy
}

// parseTriple splits a "runID:candidateID:channel" queue item. Run IDs
// are UUIDs and channel names are a fixed set, so neither contains ":";
// candidate IDs may, and keep everything between the outer separators.
func parseTriple(triple string) (runID, candidateID string, ch domain.Channel, err error) {
	first := strings.Index(triple, ":")
	last := strings.LastIndex(triple, ":")
	if first < 1 || last <= first+1 {
		return "", "", "", fmt.Errorf("%w: malformed task triple %q", domain.ErrInvalidInput, triple)
	}
	ch, err = domain.ParseChannel(triple[last+1:])
	if err != nil {
		return "", "", "", err
	}
	return triple[:first], triple[first+1:last], ch, nil
}
