// Package event turns raw host observations into canonical event records.
package event

import (
	"time"

	"lattice-agent/internal/fingerprint"
	"lattice-agent/internal/host"
	"lattice-agent/internal/model"
	"lattice-agent/internal/origin"
	"lattice-agent/internal/tracking"
	"lattice-agent/pkg/uid"
)

// SourceAudit is the source type of records produced by inventory sweeps.
const SourceAudit = "audit"

// Sink receives finished records. Implementations must not block.
type Sink interface {
	Enqueue(rec *model.EventRecord)
}

// Factory builds event records and hands them to a sink.
type Factory struct {
	serverID string
	origins  *origin.Store
	contexts *tracking.ContextTable
	sink     Sink
	now      func() time.Time
}

// NewFactory creates an event factory. A nil now uses time.Now.
func NewFactory(serverID string, origins *origin.Store, contexts *tracking.ContextTable, sink Sink, now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{
		serverID: serverID,
		origins:  origins,
		contexts: contexts,
		sink:     sink,
		now:      now,
	}
}

// OnAcquire records obj arriving in actor's possession from src.
func (f *Factory) OnAcquire(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord {
	f.origins.Ensure(obj, src.Type, src.Ref)
	rec := f.build(model.EventAcquire, actor, obj, obj.Count(), src, f.ambientContext(actor.ID()))
	f.sink.Enqueue(rec)
	return rec
}

// OnTransfer records obj moved by actor between storages.
func (f *Factory) OnTransfer(actor host.Actor, obj host.Object, src host.Source) *model.EventRecord {
	f.origins.Ensure(obj, src.Type, src.Ref)
	rec := f.build(model.EventTransfer, actor, obj, obj.Count(), src, f.ambientContext(actor.ID()))
	f.sink.Enqueue(rec)
	return rec
}

// OnAuditAcquire records count units of obj found by an inventory sweep.
// Sweeps have no ambient interaction, so each record gets a fresh trace.
func (f *Factory) OnAuditAcquire(actor host.Actor, obj host.Object, count int) *model.EventRecord {
	src := host.Source{Type: SourceAudit}
	f.origins.Ensure(obj, src.Type, src.Ref)
	rec := f.build(model.EventAcquire, actor, obj, count, src, f.unattributed())
	f.sink.Enqueue(rec)
	return rec
}

// Tag gives obj an origin from src unless it already has one.
func (f *Factory) Tag(obj host.Object, src host.Source) {
	f.origins.Ensure(obj, src.Type, src.Ref)
}

// Fingerprint returns obj's current fingerprint.
func (f *Factory) Fingerprint(obj host.Object) string {
	return fingerprint.Of(obj.TypeID(), obj.ContentHash(), f.origins.OriginID(obj))
}

func (f *Factory) ambientContext(actorID string) model.InteractionContext {
	if ctx, ok := f.contexts.Peek(actorID); ok {
		return ctx
	}
	return f.unattributed()
}

func (f *Factory) unattributed() model.InteractionContext {
	return model.InteractionContext{
		StorageKind: model.StorageUnattributed,
		ActorType:   model.ActorUnknown,
		TraceID:     uid.New(),
		CreatedAt:   f.now(),
	}
}

func (f *Factory) build(kind model.EventType, actor host.Actor, obj host.Object, count int, src host.Source, ctx model.InteractionContext) *model.EventRecord {
	tag, _ := f.origins.Read(obj)
	return &model.EventRecord{
		EventID:     uid.New(),
		EventTime:   f.now().UTC(),
		ServerID:    f.serverID,
		EventType:   kind,
		ActorID:     actor.ID(),
		ActorName:   actor.Name(),
		TypeID:      obj.TypeID(),
		Count:       count,
		ContentHash: obj.ContentHash(),
		OriginID:    tag.OriginID,
		OriginType:  tag.OriginType,
		OriginRef:   tag.OriginRef,
		SourceType:  src.Type,
		SourceRef:   src.Ref,
		StorageKind: ctx.StorageKind,
		StorageID:   ctx.StorageID,
		ActorType:   ctx.ActorType,
		TraceID:     ctx.TraceID,
		Fingerprint: fingerprint.Of(obj.TypeID(), obj.ContentHash(), tag.OriginID),
		Location:    actor.Location(),
	}
}
