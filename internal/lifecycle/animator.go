package lifecycle

import (
	"math"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/metrics"
)

// spawnOvershoot bounds how far past the budget a tick may spawn once the
// active level alone fills the budget. The evictor then trims active tiles.
const spawnOvershoot = 2

type AnimationReport struct {
	Spawned  int `json:"spawned"`
	Demoted  int `json:"demoted"`
	Released int `json:"released"`
	Retired  int `json:"retired"`
}

// Animator drives the fades, demotes tiles that left the active level,
// releases untracked records and spawns render objects for resolved tiles.
// Render objects are only ever created or dropped through the queue.
type Animator struct {
	cfg    Config
	index  *Index
	queue  *MutationQueue
	logger logger.Logger
}

func NewAnimator(cfg Config, index *Index, queue *MutationQueue, l logger.Logger) *Animator {
	return &Animator{
		cfg:    cfg,
		index:  index,
		queue:  queue,
		logger: l,
	}
}

func (a *Animator) Run(f *Frame) AnimationReport {
	var rep AnimationReport
	records := a.index.Sorted()

	for _, r := range records {
		r.BandOffset = f.Band.Offset(r.Key.Zoom)
	}

	step := f.FadeStep(a.cfg)
	for _, r := range records {
		a.fade(f, r, step, &rep)
	}

	for _, r := range records {
		if (r.State == entity.StateFadingIn || r.State == entity.StateVisible) && !f.Renderable(r) {
			r.State = entity.StateDominated
			rep.Demoted++
		}
	}

	for _, r := range records {
		if r.HasRenderObject || f.Tracked(r) {
			continue
		}
		if r.State == entity.StateRequested || r.State == entity.StateDownloaded {
			r.State = entity.StateEvicted
			r.Data = nil
			rep.Released++
		}
	}

	a.spawn(f, records, &rep)

	if rep.Demoted > 0 || rep.Released > 0 {
		a.logger.Debug("animator pass",
			"demoted", rep.Demoted,
			"released", rep.Released,
			"spawned", rep.Spawned,
		)
	}
	return rep
}

func (a *Animator) fade(f *Frame, r *entity.TileRecord, step float64, rep *AnimationReport) {
	switch r.State {
	case entity.StateFadingIn:
		if !r.Attached {
			return
		}
		r.Alpha = math.Min(r.Alpha+step, 1)
		if r.Alpha >= 1 {
			r.State = entity.StateVisible
		}

	case entity.StateDominated:
		r.State = entity.StateFadingOut
		fallthrough

	case entity.StateFadingOut:
		r.Alpha = math.Max(r.Alpha-step, 0)
		if r.Alpha > 0 {
			return
		}
		a.retire(f, r)
		rep.Retired++
	}
}

// retire handles a record that finished fading out. A tile still wanted by
// the band keeps its bytes and goes back to Downloaded; anything else is
// left for the evictor.
func (a *Animator) retire(f *Frame, r *entity.TileRecord) {
	if !f.Tracked(r) {
		r.State = entity.StateEvicted
		return
	}

	if r.HasRenderObject {
		a.queue.Detach(r.Key)
		r.HasRenderObject = false
	}
	r.State = entity.StateDownloaded
}

// spawnLimit is the render object count spawning may reach this tick.
// While fading tiles hold part of the budget, new tiles wait for them to
// finish instead of pushing them out mid-fade.
func (a *Animator) spawnLimit(records []*entity.TileRecord) int {
	budget := a.cfg.MaxResidentRenderObjects

	active := 0
	for _, r := range records {
		if r.HasRenderObject && !r.Fading() && r.State != entity.StateEvicted {
			active++
		}
	}
	if active >= budget {
		return budget * spawnOvershoot
	}
	return budget
}

func (a *Animator) spawn(f *Frame, records []*entity.TileRecord, rep *AnimationReport) {
	rendered := a.index.RenderObjects()
	limit := a.spawnLimit(records)

	for _, r := range records {
		if r.State != entity.StateDownloaded || r.HasRenderObject || !f.Renderable(r) {
			continue
		}
		if rendered >= limit {
			break
		}

		r.State = entity.StateFadingIn
		r.Alpha = 0
		r.HasRenderObject = true
		r.Attached = false
		r.SpawnTime = f.Now
		a.queue.Attach(r.Key)

		rendered++
		rep.Spawned++
	}

	if rep.Spawned > 0 {
		metrics.TilesSpawned.Add(float64(rep.Spawned))
	}
}
