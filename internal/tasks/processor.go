package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"minniegallery/internal/metrics"
	"minniegallery/internal/queue"
	"minniegallery/internal/storage"
)

// Objects is the object storage surface the maintenance tasks need.
type Objects interface {
	List(ctx context.Context) ([]storage.StoredObject, error)
	Remove(ctx context.Context, keys ...string) error
	KeyFromURL(url string) (string, bool)
}

// References lists the image URLs still stored in the database.
type References interface {
	ReferencedURLs(ctx context.Context) (map[string]struct{}, error)
}

type Processor struct {
	objects Objects
	refs    References
	grace   time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewProcessor(objects Objects, refs References, grace time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		objects: objects,
		refs:    refs,
		grace:   grace,
		now:     time.Now,
		logger:  logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.ParseTask(msg)
	if err != nil {
		p.logger.Warn().Err(err).Msg("dropping malformed task")
		return nil
	}

	switch task.Type {
	case queue.TaskOrphan:
		return p.removeOrphan(ctx, task)
	case queue.TaskSweep:
		_, err := p.Sweep(ctx)
		return err
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) removeOrphan(ctx context.Context, task queue.Task) error {
	if task.ObjectKey == "" {
		p.logger.Warn().Msg("orphan task without object key")
		return nil
	}
	if err := p.objects.Remove(ctx, task.ObjectKey); err != nil {
		return fmt.Errorf("remove orphan %s: %w", task.ObjectKey, err)
	}
	metrics.OrphansRemoved(1)
	p.logger.Info().
		Str("object_key", task.ObjectKey).
		Str("reason", task.Reason).
		Msg("orphaned object removed")
	return nil
}

// Sweep removes objects older than the grace period that no image row
// references. The grace period protects uploads whose row insert is still in
// flight.
func (p *Processor) Sweep(ctx context.Context) (int, error) {
	urls, err := p.refs.ReferencedURLs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load references: %w", err)
	}
	referenced := make(map[string]struct{}, len(urls))
	for u := range urls {
		if key, ok := p.objects.KeyFromURL(u); ok {
			referenced[key] = struct{}{}
		}
	}

	objects, err := p.objects.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := p.now().Add(-p.grace)
	var stale []string
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		stale = append(stale, obj.Key)
	}

	if len(stale) == 0 {
		p.logger.Debug().Int("objects", len(objects)).Msg("sweep found nothing")
		return 0, nil
	}
	if err := p.objects.Remove(ctx, stale...); err != nil {
		return 0, fmt.Errorf("remove stale objects: %w", err)
	}
	metrics.OrphansRemoved(len(stale))
	p.logger.Info().Int("removed", len(stale)).Int("objects", len(objects)).Msg("orphan sweep finished")
	return len(stale), nil
}
