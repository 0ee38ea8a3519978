package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/planforge/planforge/internal/eventbus"
)

// Invalidator is notified after every recorded activity so derived read
// models can drop stale caches. The analytics service implements it.
type Invalidator interface {
	Invalidate()
}

// Dispatcher consumes bus events and appends them to the activity feed.
type Dispatcher struct {
	repo        Repository
	bus         *eventbus.Bus
	invalidator Invalidator
	logger      *slog.Logger
}

func NewDispatcher(repo Repository, bus *eventbus.Bus, invalidator Invalidator, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, bus: bus, invalidator: invalidator, logger: logger}
}

// Run blocks, recording events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	id, events := d.bus.Subscribe(64)
	defer d.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			d.record(ctx, event)
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, event *eventbus.Event) {
	a := &Activity{
		ID:         ulid.Make().String(),
		Type:       string(event.Type),
		ResourceID: event.ResourceID,
		Message:    message(event),
		Metadata:   event.Metadata,
		CreatedAt:  event.CreatedAt,
	}
	if err := d.repo.Create(ctx, a); err != nil {
		d.logger.WarnContext(ctx, "failed to record activity",
			"type", event.Type, "resource_id", event.ResourceID, "error", err)
		return
	}
	if d.invalidator != nil {
		d.invalidator.Invalidate()
	}
}

func message(event *eventbus.Event) string {
	agentID := event.Metadata["agent_id"]
	switch event.Type {
	case eventbus.EventTaskCreated:
		return "Task created"
	case eventbus.EventTaskUpdated:
		return "Task updated"
	case eventbus.EventTaskDeleted:
		return "Task deleted"
	case eventbus.EventTaskAssigned:
		return fmt.Sprintf("Task assigned to agent %s", agentID)
	case eventbus.EventTaskUnassigned:
		return fmt.Sprintf("Task unassigned from agent %s", agentID)
	case eventbus.EventTaskStarted:
		return fmt.Sprintf("Agent %s advanced work to %s%%", agentID, event.Payload)
	case eventbus.EventTaskProgress:
		return fmt.Sprintf("Progress updated to %s%%", event.Payload)
	case eventbus.EventTaskCompleted:
		return fmt.Sprintf("Task completed by agent %s", agentID)
	case eventbus.EventTaskPaused:
		return fmt.Sprintf("Task paused: %s", event.Payload)
	case eventbus.EventAgentCreated:
		return fmt.Sprintf("Agent %s created", event.Metadata["name"])
	case eventbus.EventAgentUpdated:
		return "Agent updated"
	case eventbus.EventAgentDeleted:
		return "Agent deleted"
	case eventbus.EventProjectAssigned:
		return fmt.Sprintf("Project assigned to agent %s", agentID)
	case eventbus.EventProjectUnassigned:
		return fmt.Sprintf("Project unassigned from agent %s", agentID)
	}
	return string(event.Type)
}
