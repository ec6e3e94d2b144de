package main

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/akmonengine/impulse"
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

var errUnknownScene = errors.New("unknown scene")

type sceneBuilder func(w *impulse.World, count int, rng *rand.Rand) ([]arena.Handle, error)

var scenes = map[string]sceneBuilder{
	"stack":   buildStack,
	"pile":    buildPile,
	"spheres": buildSpheres,
}

func sceneNames() string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// buildScene adds a static ground and the bodies of the scene, it returns the dynamic bodies
func buildScene(w *impulse.World, name string, count int, seed int64) ([]arena.Handle, error) {
	build, ok := scenes[name]
	if !ok {
		return nil, errors.Wrapf(errUnknownScene, "%q, expected one of %s", name, sceneNames())
	}

	ground := w.AddBody(actor.NewRigidBody(actor.NewTransform(), actor.BodyTypeStatic))
	if _, err := w.AddCollider(ground, actor.NewCollider(&actor.Plane{Normal: mgl64.Vec3{0, 1, 0}}, actor.NewTransform(), actor.Material{})); err != nil {
		return nil, err
	}

	return build(w, count, rand.New(rand.NewSource(seed)))
}

func addDynamic(w *impulse.World, position mgl64.Vec3, rotation mgl64.Quat, shape actor.ShapeInterface) (arena.Handle, error) {
	h := w.AddBody(actor.NewRigidBody(actor.NewTransformAt(position, rotation), actor.BodyTypeDynamic))
	_, err := w.AddCollider(h, actor.NewCollider(shape, actor.NewTransform(), actor.Material{}))
	return h, err
}

// buildStack piles unit cubes in a single column
func buildStack(w *impulse.World, count int, rng *rand.Rand) ([]arena.Handle, error) {
	bodies := make([]arena.Handle, 0, count)
	for i := 0; i < count; i++ {
		jitter := (rng.Float64() - 0.5) * 0.02
		h, err := addDynamic(w, mgl64.Vec3{jitter, 0.5 + float64(i)*1.01, 0}, mgl64.QuatIdent(), &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}})
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, h)
	}
	return bodies, nil
}

// buildPile drops rotated boxes and capsules from a grid of spawn points
func buildPile(w *impulse.World, count int, rng *rand.Rand) ([]arena.Handle, error) {
	const rowSize = 10

	bodies := make([]arena.Handle, 0, count)
	for i := 0; i < count; i++ {
		layer := i / (rowSize * rowSize)
		x := float64(i%rowSize) - rowSize/2
		z := float64((i/rowSize)%rowSize) - rowSize/2
		position := mgl64.Vec3{x * 1.2, 2 + float64(layer)*1.5, z * 1.2}
		rotation := mgl64.QuatRotate(rng.Float64()*2*math.Pi, mgl64.Vec3{rng.Float64(), rng.Float64(), rng.Float64() + 0.1}.Normalize())

		var shape actor.ShapeInterface = &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.25, 0.4}}
		if i%3 == 0 {
			shape = &actor.Capsule{Radius: 0.25, HalfHeight: 0.4}
		}

		h, err := addDynamic(w, position, rotation, shape)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, h)
	}
	return bodies, nil
}

// buildSpheres rains spheres of random radius
func buildSpheres(w *impulse.World, count int, rng *rand.Rand) ([]arena.Handle, error) {
	bodies := make([]arena.Handle, 0, count)
	for i := 0; i < count; i++ {
		position := mgl64.Vec3{rng.Float64()*10 - 5, 1 + float64(i)*0.5, rng.Float64()*10 - 5}
		h, err := addDynamic(w, position, mgl64.QuatIdent(), &actor.Sphere{Radius: 0.25 + rng.Float64()*0.25})
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, h)
	}
	return bodies, nil
}
