package workers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/staffbook/internal/storage"
)

const (
	DefaultCleanupStream = "uploads:cleanup"
	DefaultCleanupGroup  = "cleanup-workers"
)

// DirectReaper deletes retired images inline.
type DirectReaper struct {
	Files storage.Remover
}

func (r DirectReaper) Reap(ctx context.Context, storedPath string) error {
	err := r.Files.Delete(ctx, storedPath)
	if errors.Is(err, storage.ErrNotExist) {
		return nil
	}
	return err
}

// StreamReaper queues retired images for CleanupWorkerPool.
type StreamReaper struct {
	Redis  *redis.Client
	Stream string
}

func (r StreamReaper) Reap(ctx context.Context, storedPath string) error {
	stream := r.Stream
	if stream == "" {
		stream = DefaultCleanupStream
	}
	return r.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"path":    storedPath,
			"ts_unix": strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

// CleanupWorkerPool consumes the cleanup stream and deletes each queued file.
// Entries left pending by a failed delete are claimed again once they have
// been idle for ReclaimIdle.
type CleanupWorkerPool struct {
	Redis      *redis.Client
	Files      storage.Remover
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string

	Block       time.Duration
	ReclaimIdle time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func (p *CleanupWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Files == nil {
		return errors.New("CleanupWorkerPool missing dependency: Redis/Files must be set")
	}
	p.defaults()

	if err := p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err(); err != nil && !isBusyGroup(err) {
		return err
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runConsumer(ctx, consumer)
		}()
	}
	p.Logger.WithFields(logrus.Fields{
		"stream":  p.Stream,
		"workers": p.NumWorkers,
	}).Info("cleanup workers started")
	return nil
}

// Stop cancels the consumers and waits for them. A consumer inside a blocking
// read returns within Block.
func (p *CleanupWorkerPool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.Logger.WithField("stream", p.Stream).Info("cleanup workers stopped")
}

func (p *CleanupWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultCleanupStream
	}
	if p.Group == "" {
		p.Group = DefaultCleanupGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Block <= 0 {
		p.Block = 5 * time.Second
	}
	if p.ReclaimIdle <= 0 {
		p.ReclaimIdle = time.Minute
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func (p *CleanupWorkerPool) runConsumer(ctx context.Context, consumer string) {
	nextReclaim := time.Now().Add(p.ReclaimIdle)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if now := time.Now(); !now.Before(nextReclaim) {
			p.reclaim(ctx, consumer)
			nextReclaim = now.Add(p.ReclaimIdle)
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    p.Block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("cleanup stream read failed")
			select {
			case <-ctx.Done():
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		for _, stream := range res {
			p.process(ctx, stream.Messages)
		}
	}
}

// reclaim takes over entries another delivery left unacknowledged for at
// least ReclaimIdle and retries them.
func (p *CleanupWorkerPool) reclaim(ctx context.Context, consumer string) {
	start := "0-0"
	for {
		msgs, next, err := p.Redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   p.Stream,
			Group:    p.Group,
			Consumer: consumer,
			MinIdle:  p.ReclaimIdle,
			Start:    start,
			Count:    10,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				p.Logger.WithError(err).WithField("consumer", consumer).Warn("cleanup reclaim failed")
			}
			return
		}
		if len(msgs) > 0 {
			p.Logger.WithFields(logrus.Fields{
				"consumer": consumer,
				"count":    len(msgs),
			}).Info("reclaimed pending cleanup entries")
		}
		p.process(ctx, msgs)
		if next == "" || next == "0-0" {
			return
		}
		start = next
	}
}

func (p *CleanupWorkerPool) process(ctx context.Context, msgs []redis.XMessage) {
	for _, msg := range msgs {
		if p.handleMsg(ctx, msg) {
			if err := p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err(); err != nil {
				p.Logger.WithError(err).WithField("redis_id", msg.ID).Warn("cleanup ack failed")
			}
		}
	}
}

// handleMsg reports whether msg is done with. Transient failures stay pending.
func (p *CleanupWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) bool {
	storedPath, _ := msg.Values["path"].(string)
	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"path":     storedPath,
	})
	if storedPath == "" {
		log.Warn("cleanup message without path")
		return true
	}

	err := p.Files.Delete(ctx, storedPath)
	switch {
	case err == nil:
		log.Info("image reaped")
		return true
	case errors.Is(err, storage.ErrNotExist):
		return true
	case errors.Is(err, storage.ErrInvalidPath):
		log.WithError(err).Warn("refusing to reap path")
		return true
	default:
		log.WithError(err).Error("image reap failed")
		return false
	}
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
