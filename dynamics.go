package impulse

import (
	"github.com/go-gl/mathgl/mgl64"
)

const DEFAULT_WORKERS = 1

// Step advances the world by dt seconds
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}

	// Phase 1: contacts of the current transforms
	w.RunCollisionDetection()

	// Phase 2: islands, waking up the sleeping bodies touched by awake ones
	w.buildIslands()

	// Phase 3: gravity and forces
	w.integrateVelocities(dt)

	// Phase 4: contact constraints, island by island
	w.solveIslands(dt)

	// Phase 5: positions, with the split impulse velocities
	w.integratePositions(dt)

	if w.cfg.IsSleepingEnabled {
		w.updateSleeping(dt)
	}

	w.Events.recordContacts(w.contacts.Pairs(), w.contacts.Points(), w.contacts.LostPairs())
	w.Events.processSleepEvents(w)
	w.Events.flush()
	w.contacts.ClearLostPairs()
}

func (w *World) integrateVelocities(dt float64) {
	var gravity mgl64.Vec3
	if w.cfg.IsGravityEnabled {
		gravity = w.cfg.Gravity
	}

	for i := range w.islands {
		for _, h := range w.islands[i].Bodies {
			w.RigidBody(h).IntegrateVelocity(dt, gravity)
		}
	}
}

func (w *World) solveIslands(dt float64) {
	manifolds := w.contacts.Manifolds()
	points := w.contacts.Points()

	for i := range w.islands {
		island := &w.islands[i]
		if len(island.Manifolds) == 0 {
			continue
		}

		w.solver.Init(w, manifolds, points, island.Manifolds, dt)
		w.solver.WarmStart()
		for i, n := 0, w.cfg.VelocityIterations; i < n; i++ {
			w.solver.Solve()
		}
		w.solver.StoreImpulses()
	}
}

// integratePositions moves the bodies and their colliders
func (w *World) integratePositions(dt float64) {
	for i := range w.islands {
		for _, h := range w.islands[i].Bodies {
			body := w.RigidBody(h)
			body.IntegratePosition(dt)
			for _, ch := range body.Colliders {
				w.Collider(ch).UpdateTransform(body.Transform)
			}
		}
	}
}
