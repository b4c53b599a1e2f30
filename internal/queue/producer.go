package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TaskOrphan = "orphan"
	TaskSweep  = "sweep"
)

// Task is the payload carried on the maintenance stream.
type Task struct {
	Type      string
	ObjectKey string
	Reason    string
}

func (t Task) values() map[string]any {
	values := map[string]any{
		"type":        t.Type,
		"enqueued_at": time.Now().UTC().Format(time.RFC3339),
	}
	if t.ObjectKey != "" {
		values["object_key"] = t.ObjectKey
	}
	if t.Reason != "" {
		values["reason"] = t.Reason
	}
	return values
}

// ParseTask reads a task back from a stream message.
func ParseTask(msg redis.XMessage) (Task, error) {
	str := func(key string) string {
		if v, ok := msg.Values[key]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}

	task := Task{Type: str("type"), ObjectKey: str("object_key"), Reason: str("reason")}
	if task.Type == "" {
		return Task{}, fmt.Errorf("message %s has no task type", msg.ID)
	}
	return task, nil
}

type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, task Task) error {
	if p == nil || p.client == nil {
		return nil
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// ReportOrphan publishes a stored object that no image row references.
func (p *Publisher) ReportOrphan(ctx context.Context, key, reason string) error {
	return p.Publish(ctx, Task{Type: TaskOrphan, ObjectKey: key, Reason: reason})
}
