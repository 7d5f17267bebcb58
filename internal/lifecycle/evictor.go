package lifecycle

import (
	"cmp"
	"slices"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/metrics"
)

type EvictionReport struct {
	Reclaimed int `json:"reclaimed"`
	Dominated int `json:"dominated"`
	Emergency int `json:"emergency"`
}

func (r EvictionReport) Total() int {
	return r.Reclaimed + r.Dominated + r.Emergency
}

// Evictor reclaims Evicted records and keeps the number of render objects
// within the budget.
type Evictor struct {
	cfg    Config
	index  *Index
	queue  *MutationQueue
	logger logger.Logger

	emergencyTotal uint64
}

func NewEvictor(cfg Config, index *Index, queue *MutationQueue, l logger.Logger) *Evictor {
	return &Evictor{
		cfg:    cfg,
		index:  index,
		queue:  queue,
		logger: l,
	}
}

func (e *Evictor) Run(f *Frame) EvictionReport {
	var rep EvictionReport

	records := e.index.Sorted()
	for _, r := range records {
		if r.State == entity.StateEvicted {
			e.evict(r, "faded")
			rep.Reclaimed++
		}
	}

	budget := e.cfg.MaxResidentRenderObjects
	rendered := e.index.RenderObjects()
	if rendered <= budget {
		return rep
	}

	over := rendered - budget
	finished, fading, active := e.candidates(records)

	for _, r := range finished {
		if over == 0 {
			break
		}
		e.evict(r, "faded")
		rep.Reclaimed++
		over--
	}
	for _, r := range fading {
		if over == 0 {
			break
		}
		e.evict(r, "dominated")
		rep.Dominated++
		over--
	}
	for _, r := range active {
		if over == 0 {
			break
		}
		e.evict(r, "emergency")
		rep.Emergency++
		over--
	}

	if rep.Emergency > 0 {
		e.emergencyTotal += uint64(rep.Emergency)
		metrics.TilesEmergencyEvictions.Add(float64(rep.Emergency))
		e.logger.Warn("render budget exhausted, evicting active-level tiles",
			"evicted", rep.Emergency,
			"resident", rendered,
			"budget", budget,
			"level", f.Band.Level,
		)
	}

	return rep
}

// EmergencyTotal is the number of emergency evictions since start.
func (e *Evictor) EmergencyTotal() uint64 {
	return e.emergencyTotal
}

// candidates splits rendered records into eviction tiers, each in eviction
// order: finished fades, fading tiles (coarsest first, then least recently
// touched), and active-level tiles (Visible before FadingIn, then least
// recently touched, then oldest spawn).
func (e *Evictor) candidates(records []*entity.TileRecord) (finished, fading, active []*entity.TileRecord) {
	for _, r := range records {
		if !r.HasRenderObject || r.State == entity.StateEvicted {
			continue
		}
		switch {
		case r.Fading() && r.Alpha <= 0:
			finished = append(finished, r)
		case r.Fading():
			fading = append(fading, r)
		case r.BandOffset == 0 && (r.State == entity.StateVisible || r.State == entity.StateFadingIn):
			active = append(active, r)
		}
	}

	slices.SortStableFunc(fading, func(a, b *entity.TileRecord) int {
		if c := cmp.Compare(b.BandOffset, a.BandOffset); c != 0 {
			return c
		}
		return a.LastTouched.Compare(b.LastTouched)
	})

	slices.SortStableFunc(active, func(a, b *entity.TileRecord) int {
		if c := cmp.Compare(activeRank(a), activeRank(b)); c != 0 {
			return c
		}
		if c := a.LastTouched.Compare(b.LastTouched); c != 0 {
			return c
		}
		return a.SpawnTime.Compare(b.SpawnTime)
	})

	return finished, fading, active
}

func activeRank(r *entity.TileRecord) int {
	if r.State == entity.StateVisible {
		return 0
	}
	return 1
}

func (e *Evictor) evict(r *entity.TileRecord, reason string) {
	if r.HasRenderObject {
		e.queue.Detach(r.Key)
		r.HasRenderObject = false
	}
	r.State = entity.StateEvicted
	r.Data = nil
	e.index.Remove(r.Key)
	metrics.TilesEvicted.WithLabelValues(reason).Inc()
}
