package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/authhub/internal/jobs"
	"github.com/redis/go-redis/v9"
)

var ErrEmpty = errors.New("queue empty")

// Queue keeps email jobs in three keys: a ready list consumed with BLPOP, a
// sorted set of delayed retries scored by run-at unix millis, and a capped
// dead-letter list.
type Queue struct {
	rdb        *redis.Client
	readyKey   string
	delayedKey string
	deadKey    string
	deadCap    int64
}

func New(rdb *redis.Client, prefix string) *Queue {
	if prefix == "" {
		prefix = "authhub:jobs:email"
	}

	return &Queue{
		rdb:        rdb,
		readyKey:   prefix + ":ready",
		delayedKey: prefix + ":delayed",
		deadKey:    prefix + ":dead",
		deadCap:    1000,
	}
}

func (q *Queue) Enqueue(ctx context.Context, j jobs.Job) error {
	b, err := json.Marshal(j)

	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if j.RunAt.After(time.Now()) {
		return q.rdb.ZAdd(ctx, q.delayedKey, redis.Z{
			Score:  float64(j.RunAt.UnixMilli()),
			Member: b,
		}).Err()
	}

	return q.rdb.RPush(ctx, q.readyKey, b).Err()
}

// Dequeue blocks up to wait for a ready job. It returns ErrEmpty on timeout.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (jobs.Job, error) {
	res, err := q.rdb.BLPop(ctx, wait, q.readyKey).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return jobs.Job{}, ErrEmpty
		}
		return jobs.Job{}, err
	}

	// res = [key, value]
	if len(res) != 2 {
		return jobs.Job{}, fmt.Errorf("unexpected BLPOP reply of %d items", len(res))
	}

	var j jobs.Job

	err = json.Unmarshal([]byte(res[1]), &j)

	if err != nil {
		return jobs.Job{}, fmt.Errorf("%w: %v", jobs.ErrInvalidJobPayload, err)
	}

	if !j.Status.IsValid() {
		return j, jobs.ErrInvalidJobStatus
	}

	return j, nil
}

// Retry schedules j to run again after delay.
func (q *Queue) Retry(ctx context.Context, j jobs.Job, delay time.Duration) error {
	j.Status = jobs.JobPending
	j.RunAt = time.Now().UTC().Add(delay)
	j.UpdatedAt = time.Now().UTC()

	return q.Enqueue(ctx, j)
}

// DeadLetter parks a job that will not be retried.
func (q *Queue) DeadLetter(ctx context.Context, j jobs.Job) error {
	j.Status = jobs.JobFailed
	j.UpdatedAt = time.Now().UTC()

	b, err := json.Marshal(j)

	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, q.deadKey, b)
		p.LTrim(ctx, q.deadKey, 0, q.deadCap-1)
		return nil
	})

	return err
}

// promoteScript moves due members from the delayed set to the ready list in
// one step so two workers cannot promote the same job.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, member in ipairs(due) do
  redis.call('ZREM', KEYS[1], member)
  redis.call('RPUSH', KEYS[2], member)
end
return #due
`)

// PromoteDue moves up to limit delayed jobs whose run-at has passed.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	n, err := promoteScript.Run(ctx, q.rdb,
		[]string{q.delayedKey, q.readyKey},
		strconv.FormatInt(now.UnixMilli(), 10), limit,
	).Int()

	if err != nil {
		return 0, fmt.Errorf("promote delayed jobs: %w", err)
	}

	return n, nil
}

type Depth struct {
	Ready   int64 `json:"ready"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

func (q *Queue) Depth(ctx context.Context) (Depth, error) {
	var (
		ready, dead *redis.IntCmd
		delayed     *redis.IntCmd
	)

	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		ready = p.LLen(ctx, q.readyKey)
		delayed = p.ZCard(ctx, q.delayedKey)
		dead = p.LLen(ctx, q.deadKey)
		return nil
	})

	if err != nil {
		return Depth{}, err
	}

	return Depth{Ready: ready.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
