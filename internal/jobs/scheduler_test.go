package jobs

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minniegallery/internal/queue"
)

type recordingPublisher struct {
	tasks []queue.Task
}

func (r *recordingPublisher) Publish(_ context.Context, task queue.Task) error {
	r.tasks = append(r.tasks, task)
	return nil
}

type countingPruner struct{ calls int }

func (c *countingPruner) DeleteExpired(context.Context) (int64, error) {
	c.calls++
	return 2, nil
}

func TestSchedulerRegistersJobs(t *testing.T) {
	pub := &recordingPublisher{}
	pruner := &countingPruner{}
	s := NewScheduler(pub, pruner, "0 30 3 * * *", zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 2)

	s.enqueueSweep()
	s.pruneSessions()
	assert.Equal(t, []queue.Task{{Type: queue.TaskSweep}}, pub.tasks)
	assert.Equal(t, 1, pruner.calls)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&recordingPublisher{}, nil, "not a schedule", zerolog.Nop())
	assert.Error(t, s.Start())
}
