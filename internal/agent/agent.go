// Package agent is the entry point host bindings call from their hooks.
//
// Every method runs on the host's tick thread and returns without I/O:
// records are handed to the delivery queue, which ships them in the
// background.
package agent

import (
	"log/slog"

	"lattice-agent/internal/audit"
	"lattice-agent/internal/event"
	"lattice-agent/internal/gate"
	"lattice-agent/internal/host"
	"lattice-agent/internal/model"
	"lattice-agent/internal/storage"
	"lattice-agent/internal/tracking"
	"lattice-agent/pkg/uid"
)

// EventSource is the set of hooks a host binding drives.
type EventSource interface {
	OnInteractionStart(actor host.Actor, container any)
	OnInteractionEnd(actor host.Actor)
	OnObjectCreated(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord
	OnSpecificAcquire(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord
	OnObjectTransferred(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord
	OnInventorySnapshot(actor host.Actor, objects []host.Object) []*model.EventRecord
	OnCommandInvoked(src host.CommandSource, input string) gate.Decision
	OnActorQuit(actor host.Actor)
}

// Deps wires an Agent.
type Deps struct {
	Factory     *event.Factory
	Contexts    *tracking.ContextTable
	Suppression *tracking.SuppressionTable
	Storage     *storage.Registry
	Sweeper     *audit.Sweeper
	Gate        *gate.Gate
	Logger      *slog.Logger
}

// Agent implements EventSource.
type Agent struct {
	factory     *event.Factory
	contexts    *tracking.ContextTable
	suppression *tracking.SuppressionTable
	storage     *storage.Registry
	sweeper     *audit.Sweeper
	gate        *gate.Gate
	logger      *slog.Logger
}

var _ EventSource = (*Agent)(nil)

// New creates an agent. A nil Gate allows every command.
func New(d Deps) *Agent {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Storage == nil {
		d.Storage = storage.NewRegistry(d.Logger)
	}
	if d.Sweeper == nil {
		d.Sweeper = audit.NewSweeper(d.Factory)
	}
	return &Agent{
		factory:     d.Factory,
		contexts:    d.Contexts,
		suppression: d.Suppression,
		storage:     d.Storage,
		sweeper:     d.Sweeper,
		gate:        d.Gate,
		logger:      d.Logger.With("component", "Agent"),
	}
}

// OnInteractionStart opens a new interaction context for actor, replacing
// any previous one.
func (a *Agent) OnInteractionStart(actor host.Actor, container any) {
	desc := a.storage.Describe(container)
	a.contexts.Set(actor.ID(), model.InteractionContext{
		StorageKind: desc.Kind,
		StorageID:   desc.ID,
		ActorType:   actorType(actor),
		TraceID:     uid.New(),
	})
}

// OnInteractionEnd keeps the context alive until its window lapses so
// hooks fired just after closing still attribute. Expired entries of all
// actors are swept here.
func (a *Agent) OnInteractionEnd(actor host.Actor) {
	a.contexts.Sweep()
	a.suppression.Sweep()
}

// OnObjectCreated handles the generic "object added to actor" hook. It
// reports nothing when a specific hook already reported the same object.
func (a *Agent) OnObjectCreated(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord {
	if a.suppression.Consume(actor.ID(), obj) {
		return nil
	}
	return a.observe(actor, a.factory.OnAcquire(actor, obj, src))
}

// OnSpecificAcquire handles hooks that know exactly what was acquired, such
// as collecting a smelting result, and suppresses the generic hook that
// follows.
func (a *Agent) OnSpecificAcquire(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord {
	rec := a.factory.OnAcquire(actor, obj, src)
	a.suppression.Mark(actor.ID(), rec.Fingerprint)
	return a.observe(actor, rec)
}

// OnObjectTransferred handles an object moved between storages.
func (a *Agent) OnObjectTransferred(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord {
	return a.observe(actor, a.factory.OnTransfer(actor, obj, src))
}

// observe counts a live record into the audit baseline.
func (a *Agent) observe(actor host.Actor, rec *model.EventRecord) *model.EventRecord {
	if rec != nil {
		a.sweeper.Observe(actor.ID(), rec.Fingerprint, rec.Count)
	}
	return rec
}

// OnInventorySnapshot compares a full inventory against the last one. Growth
// already reported by a live hook is not reported again.
func (a *Agent) OnInventorySnapshot(actor host.Actor, objects []host.Object) []*model.EventRecord {
	return a.sweeper.Compare(actor, objects)
}

// OnCommandInvoked decides whether the command may run.
func (a *Agent) OnCommandInvoked(src host.CommandSource, input string) gate.Decision {
	if a.gate == nil {
		return gate.Decision{Allowed: true}
	}
	return a.gate.Check(src, input)
}

// OnActorQuit drops per-actor state.
func (a *Agent) OnActorQuit(actor host.Actor) {
	a.contexts.Clear(actor.ID())
	a.sweeper.Forget(actor.ID())
}

func actorType(actor host.Actor) model.ActorType {
	if m, ok := actor.(host.Automated); ok && m.Automated() {
		return model.ActorAutomation
	}
	return model.ActorPlayer
}
