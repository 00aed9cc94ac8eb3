package hookrt

import "context"

// Phase identifies one of the lifecycle points effects run at.
type Phase string

const (
	PhaseMount        Phase = "mount"
	PhaseCommit       Phase = "commit"
	PhaseUnmount      Phase = "unmount"
	PhaseTickStart    Phase = "tick-start"
	PhaseAfterRender  Phase = "after-render"
	PhaseAfterCompile Phase = "after-compile"
	PhaseTickEnd      Phase = "tick-end"
	PhaseComplete     Phase = "complete"
	PhaseOnMessage    Phase = "on-message"
)

// EffectCreate is the callback an Effect runs; it may return a cleanup
// function (or nil) and an error.
type EffectCreate func(ctx context.Context) (cleanup func(), err error)

// Effect is a registered side effect awaiting its phase.
type Effect struct {
	Phase   Phase
	Create  EffectCreate
	Destroy func()
	Deps    []any
	Pending bool
}

// depsChanged reports whether new deps differ from the effect's previous
// deps: nil deps means "every commit" (always changed), empty deps means
// "mount only" (never changed after the first run), otherwise a shallow
// compare.
func depsChanged(prev *Effect, deps []any) bool {
	if deps == nil {
		return true
	}
	if prev == nil {
		return true
	}
	if len(deps) == 0 {
		return false
	}
	return !sameDeps(prev.Deps, deps)
}

// UseEffect records an effect for the given phase. deps nil re-runs on
// every commit; deps == []any{} runs once (mount semantics even outside the
// Mount phase); otherwise it re-runs when a shallow compare against the
// previous deps differs. The previous render's cleanup is preserved on
// Destroy so the effect engine can run it before the next create.
func UseEffect(r *Render, phase Phase, deps []any, create EffectCreate) {
	h, isNew := useHook(r, TagEffect)
	changed := isNew || depsChanged(h.Effect, deps)
	eff := &Effect{Phase: phase, Create: create, Deps: deps, Pending: changed}
	if !isNew && h.Effect != nil {
		eff.Destroy = h.Effect.Destroy
	}
	h.Effect = eff
}

// UseTickStart, UseTickEnd, UseAfterCompile, UseMount schedule effects into
// the matching phase queue. Each is UseEffect
// with its phase fixed.
func UseTickStart(r *Render, create EffectCreate)    { useTaggedPhaseEffect(r, TagTickStart, PhaseTickStart, create) }
func UseTickEnd(r *Render, create EffectCreate)      { useTaggedPhaseEffect(r, TagTickEnd, PhaseTickEnd, create) }
func UseAfterCompile(r *Render, create EffectCreate) { useTaggedPhaseEffect(r, TagAfterCompile, PhaseAfterCompile, create) }

// UseMount schedules create to run once, after the fiber's first commit.
func UseMount(r *Render, create EffectCreate) {
	h, isNew := useHook(r, TagMount)
	if isNew {
		h.Effect = &Effect{Phase: PhaseMount, Create: create, Deps: []any{}, Pending: true}
	} else if h.Effect == nil {
		h.Effect = &Effect{Phase: PhaseMount, Create: create, Deps: []any{}, Pending: false}
	}
}

func useTaggedPhaseEffect(r *Render, tag HookTag, phase Phase, create EffectCreate) {
	h, isNew := useHook(r, tag)
	changed := isNew || depsChanged(h.Effect, nil)
	eff := &Effect{Phase: phase, Create: create, Deps: nil, Pending: changed}
	if !isNew && h.Effect != nil {
		eff.Destroy = h.Effect.Destroy
	}
	h.Effect = eff
}
