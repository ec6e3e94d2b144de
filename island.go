package impulse

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
)

// Island is a group of bodies connected by contacts, solved and put to sleep together.
// Static bodies never belong to an island, so they do not connect islands.
type Island struct {
	Bodies []arena.Handle
	// indices in the contact manifolds of the world
	Manifolds []int
}

// buildIslands groups the awake bodies with a depth first search over the contact
// manifolds. A sleeping body touched by an awake one is woken up.
func (w *World) buildIslands() {
	manifolds := w.contacts.Manifolds()

	for h, list := range w.bodyManifolds {
		w.bodyManifolds[h] = list[:0]
	}
	for i := range manifolds {
		m := &manifolds[i]
		m.IslandIndex = -1
		w.bodyManifolds[m.BodyA] = append(w.bodyManifolds[m.BodyA], i)
		w.bodyManifolds[m.BodyB] = append(w.bodyManifolds[m.BodyB], i)
	}

	clear(w.visited)
	w.islands = w.islands[:0]

	w.bodies.Each(func(seed arena.Handle, b **actor.RigidBody) {
		if w.visited[seed] || !(*b).IsActive() {
			return
		}

		islandIndex := w.newIsland()
		island := &w.islands[islandIndex]

		w.visited[seed] = true
		w.stack = append(w.stack[:0], seed)
		for len(w.stack) > 0 {
			h := w.stack[len(w.stack)-1]
			w.stack = w.stack[:len(w.stack)-1]

			if body := w.RigidBody(h); body.IsSleeping {
				body.Awake()
			}
			island.Bodies = append(island.Bodies, h)

			for _, mi := range w.bodyManifolds[h] {
				m := &manifolds[mi]
				if m.IslandIndex >= 0 {
					continue
				}
				m.IslandIndex = islandIndex
				island.Manifolds = append(island.Manifolds, mi)

				other := m.BodyA
				if other == h {
					other = m.BodyB
				}
				if w.visited[other] {
					continue
				}

				otherBody := w.RigidBody(other)
				if otherBody == nil || !otherBody.Enabled || otherBody.BodyType == actor.BodyTypeStatic {
					continue
				}
				w.visited[other] = true
				w.stack = append(w.stack, other)
			}
		}
	})
}

// newIsland appends an empty island, reusing the slices of a previous step
func (w *World) newIsland() int {
	n := len(w.islands)
	if n < cap(w.islands) {
		w.islands = w.islands[:n+1]
		w.islands[n].Bodies = w.islands[n].Bodies[:0]
		w.islands[n].Manifolds = w.islands[n].Manifolds[:0]
	} else {
		w.islands = append(w.islands, Island{})
	}

	return n
}

// updateSleeping puts an island to sleep once all its bodies stayed slow for
// TimeBeforeSleep seconds
func (w *World) updateSleeping(dt float64) {
	for i := range w.islands {
		island := &w.islands[i]

		minSleepTime := math.MaxFloat64
		for _, h := range island.Bodies {
			body := w.RigidBody(h)
			minSleepTime = math.Min(minSleepTime, body.UpdateSleepTimer(dt, w.cfg.SleepLinearVelocity, w.cfg.SleepAngularVelocity))
		}

		if minSleepTime < w.cfg.TimeBeforeSleep {
			continue
		}
		for _, h := range island.Bodies {
			w.RigidBody(h).Sleep()
		}
		w.logger.Debug("island asleep", "island", i, "bodies", len(island.Bodies), "manifolds", len(island.Manifolds))
	}
}
