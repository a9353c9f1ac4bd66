package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"printvault/internal/logging"
	"printvault/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job status values stored in the per-job hash.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Job is one unit of work on a lane. Payload is an opaque JSON document
// owned by the enqueuing subsystem.
type Job struct {
	ID           string    `json:"id"`
	Lane         string    `json:"lane"`
	Payload      string    `json:"payload"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler processes one job attempt. A nil return acknowledges the job; an
// error schedules a retry until attempts are exhausted.
type Handler func(ctx context.Context, job Job) error

// ExhaustedFunc is called once when a job fails its final attempt, before
// the job is acknowledged. Implementations must be safe to call from a
// worker goroutine.
type ExhaustedFunc func(ctx context.Context, job Job)

// Config describes one lane. Zero values get conservative defaults.
type Config struct {
	Addr     string
	Password string
	// Lane names the stream, e.g. "ingest:archive".
	Lane     string
	Group    string
	Consumer string

	JobTTL      time.Duration
	MaxAttempts int
	Block       time.Duration
	ClaimIdle   time.Duration
	// RetryDelay is the first retry's delay; each subsequent retry doubles
	// it up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	MaxLen        int64
	ReadCount     int64
	ClaimCount    int64

	// OnExhausted is the safety net invoked when a job fails permanently.
	OnExhausted ExhaustedFunc
}

// Lane is a durable queue over a single Redis stream.
type Lane struct {
	client        *redis.Client
	lane          string
	group         string
	consumerBase  string
	jobTTL        time.Duration
	maxAttempts   int
	block         time.Duration
	claimIdle     time.Duration
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	maxLen        int64
	readCount     int64
	claimCount    int64
	onExhausted   ExhaustedFunc
	once          sync.Once
}

func NewLane(cfg Config) (*Lane, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	lane := strings.TrimSpace(cfg.Lane)
	if lane == "" {
		return nil, errors.New("lane name required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "workers"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxRetryDelay := cfg.MaxRetryDelay
	if maxRetryDelay <= 0 {
		maxRetryDelay = 60 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}

	return &Lane{
		client:        redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		lane:          lane,
		group:         group,
		consumerBase:  consumer,
		jobTTL:        jobTTL,
		maxAttempts:   maxAttempts,
		block:         block,
		claimIdle:     claimIdle,
		retryDelay:    retryDelay,
		maxRetryDelay: maxRetryDelay,
		maxLen:        maxLen,
		readCount:     readCount,
		claimCount:    claimCount,
		onExhausted:   cfg.OnExhausted,
	}, nil
}

// Name returns the lane's stream name.
func (l *Lane) Name() string {
	return l.lane
}

// SetOnExhausted installs the safety-net hook. Must be called before Start.
func (l *Lane) SetOnExhausted(fn ExhaustedFunc) {
	l.onExhausted = fn
}

// Ping verifies the Redis connection.
func (l *Lane) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (l *Lane) Close() error {
	return l.client.Close()
}

// Enqueue records the job's status hash and appends it to the stream.
func (l *Lane) Enqueue(ctx context.Context, payload string) (Job, error) {
	if strings.TrimSpace(payload) == "" {
		return Job{}, errors.New("payload required")
	}
	now := time.Now().UTC()
	job := Job{
		ID:        uuid.NewString(),
		Lane:      l.lane,
		Payload:   payload,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	if err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.lane,
		MaxLen: l.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":  job.ID,
			"payload": job.Payload,
		},
	}).Err(); err != nil {
		return Job{}, err
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(l.lane).Inc()
	logging.Debug("Enqueued job %s on %s", job.ID, l.lane)
	return job, nil
}

// GetJob fetches the current status of a job. The boolean reports whether
// the job exists (status hashes expire after JobTTL).
func (l *Lane) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, false, nil
	}
	data, err := l.client.HGetAll(ctx, l.jobKey(jobID)).Result()
	if err != nil {
		return Job{}, false, err
	}
	if len(data) == 0 {
		return Job{}, false, nil
	}
	return decodeJob(jobID, l.lane, data), true, nil
}

// UpdateProgress records a progress percentage on the job's status hash so
// pollers can observe pipeline stages.
func (l *Lane) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	key := l.jobKey(jobID)
	if err := l.client.HSet(ctx, key, map[string]any{
		"progress":  strconv.Itoa(progress),
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// Start launches concurrency consumer goroutines that run until ctx is
// cancelled.
func (l *Lane) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	l.ensureGroup(ctx)
	logging.Info("Starting %d worker(s) on lane %s", concurrency, l.lane)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", l.consumerBase, i)
		go l.consumeLoop(ctx, consumer, handler)
	}
}

func (l *Lane) ensureGroup(ctx context.Context) {
	l.once.Do(func() {
		err := l.client.XGroupCreateMkStream(ctx, l.lane, l.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			logging.Warn("Failed to create consumer group on %s: %v", l.lane, err)
		}
	})
}

func (l *Lane) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := l.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				l.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    l.group,
			Consumer: consumer,
			Streams:  []string{l.lane, ">"},
			Count:    l.readCount,
			Block:    l.block,
		}).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				logging.Warn("Read on lane %s failed: %v", l.lane, err)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				l.handleMessage(ctx, msg, handler)
			}
		}
	}
}

// claimPending takes over messages left pending by a consumer that stopped
// mid-job.
func (l *Lane) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := l.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   l.lane,
		Group:    l.group,
		Consumer: consumer,
		MinIdle:  l.claimIdle,
		Start:    "0-0",
		Count:    l.claimCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Lane) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, _ := msg.Values["job_id"].(string)
	payload, _ := msg.Values["payload"].(string)
	if jobID == "" || payload == "" {
		logging.Warn("Dropping malformed message %s on %s", msg.ID, l.lane)
		l.ackAndDel(ctx, msg.ID)
		return
	}

	job, err := l.markProcessing(ctx, jobID, payload)
	if err != nil {
		logging.Error("Failed to mark job %s processing: %v", jobID, err)
		l.ackAndDel(ctx, msg.ID)
		return
	}

	metrics.WorkersBusy.WithLabelValues(l.lane).Inc()
	start := time.Now()
	handlerErr := handler(ctx, job)
	metrics.JobDuration.WithLabelValues(l.lane).Observe(time.Since(start).Seconds())
	metrics.WorkersBusy.WithLabelValues(l.lane).Dec()

	if handlerErr == nil {
		_ = l.markDone(ctx, jobID)
		metrics.JobsCompletedTotal.WithLabelValues(l.lane, StatusDone).Inc()
		l.ackAndDel(ctx, msg.ID)
		return
	}

	if job.Attempts >= l.maxAttempts {
		logging.Error("Job %s on %s failed permanently after %d attempt(s): %v",
			jobID, l.lane, job.Attempts, handlerErr)
		_ = l.markFailed(ctx, jobID, handlerErr.Error())
		metrics.JobsCompletedTotal.WithLabelValues(l.lane, StatusFailed).Inc()
		if l.onExhausted != nil {
			job.Status = StatusFailed
			job.ErrorMessage = handlerErr.Error()
			l.onExhausted(ctx, job)
		}
		l.ackAndDel(ctx, msg.ID)
		return
	}

	delay := l.backoff(job.Attempts)
	logging.Warn("Job %s on %s failed (attempt %d/%d), retrying in %s: %v",
		jobID, l.lane, job.Attempts, l.maxAttempts, delay, handlerErr)
	_ = l.markQueued(ctx, jobID, handlerErr.Error())
	metrics.JobRetriesTotal.WithLabelValues(l.lane).Inc()

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	if err := l.requeueAndAck(ctx, msg.ID, jobID, payload); err != nil {
		logging.Error("Failed to requeue job %s: %v", jobID, err)
	}
}

// backoff doubles the base delay for each completed attempt, capped.
func (l *Lane) backoff(attempts int) time.Duration {
	delay := l.retryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= l.maxRetryDelay {
			return l.maxRetryDelay
		}
	}
	return delay
}

func (l *Lane) ackAndDel(ctx context.Context, msgID string) {
	_, _ = l.client.XAck(ctx, l.lane, l.group, msgID).Result()
	_, _ = l.client.XDel(ctx, l.lane, msgID).Result()
}

// requeueAndAck atomically re-appends the job and acknowledges the old
// delivery so a crash between the two cannot lose the job.
func (l *Lane) requeueAndAck(ctx context.Context, msgID, jobID, payload string) error {
	pipe := l.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: l.lane,
		MaxLen: l.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":  jobID,
			"payload": payload,
		},
	})
	pipe.XAck(ctx, l.lane, l.group, msgID)
	pipe.XDel(ctx, l.lane, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *Lane) markProcessing(ctx context.Context, jobID, payload string) (Job, error) {
	job, _, err := l.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.ID == "" {
		job = Job{ID: jobID, Lane: l.lane}
	}
	if payload != "" {
		job.Payload = payload
	}
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := l.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (l *Lane) markQueued(ctx context.Context, jobID, errMsg string) error {
	job, _, err := l.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = StatusQueued
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return l.writeStatus(ctx, job)
}

func (l *Lane) markDone(ctx context.Context, jobID string) error {
	job, _, err := l.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = StatusDone
	job.Progress = 100
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now().UTC()
	return l.writeStatus(ctx, job)
}

func (l *Lane) markFailed(ctx context.Context, jobID, errMsg string) error {
	job, _, err := l.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = StatusFailed
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return l.writeStatus(ctx, job)
}

func (l *Lane) writeStatus(ctx context.Context, job Job) error {
	key := l.jobKey(job.ID)
	payload := map[string]any{
		"id":        job.ID,
		"payload":   job.Payload,
		"status":    job.Status,
		"progress":  strconv.Itoa(job.Progress),
		"error":     job.ErrorMessage,
		"attempts":  strconv.Itoa(job.Attempts),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := l.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = l.client.Expire(ctx, key, l.jobTTL).Err()
	return nil
}

func (l *Lane) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", l.lane, jobID)
}

func decodeJob(jobID, lane string, data map[string]string) Job {
	job := Job{ID: jobID, Lane: lane}
	job.Payload = data["payload"]
	job.Status = data["status"]
	job.ErrorMessage = data["error"]
	if v := data["progress"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Progress = n
		}
	}
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Attempts = n
		}
	}
	if v := data["createdAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = t
		}
	}
	if v := data["updatedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.UpdatedAt = t
		}
	}
	return job
}
