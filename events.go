package impulse

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/contact"
)

const (
	TRIGGER_ENTER EventType = iota
	COLLISION_ENTER
	TRIGGER_STAY
	COLLISION_STAY
	TRIGGER_EXIT
	COLLISION_EXIT
	ON_SLEEP
	ON_WAKE
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Pair identifies the two colliders of a contact or trigger event
type Pair struct {
	BodyA     arena.Handle
	BodyB     arena.Handle
	ColliderA arena.Handle
	ColliderB arena.Handle
}

func newPair(p *contact.ContactPair) Pair {
	return Pair{BodyA: p.BodyA, BodyB: p.BodyB, ColliderA: p.ColliderA, ColliderB: p.ColliderB}
}

// Trigger events
type TriggerEnterEvent struct {
	Pair
}

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }

type TriggerStayEvent struct {
	Pair
}

func (e TriggerStayEvent) Type() EventType { return TRIGGER_STAY }

type TriggerExitEvent struct {
	Pair
}

func (e TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }

// Collision events. Points are the contact points of the pair, only valid during
// the listener call.
type CollisionEnterEvent struct {
	Pair
	Points []contact.ContactPoint
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	Pair
	Points []contact.ContactPoint
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	Pair
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// Sleep/Wake events
type SleepEvent struct {
	Body arena.Handle
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body arena.Handle
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	sleepStates map[arena.Handle]bool
}

func NewEvents() Events {
	return Events{
		listeners:   make(map[EventType][]EventListener),
		buffer:      make([]Event, 0, 256),
		sleepStates: make(map[arena.Handle]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordContacts classifies the pairs of the step: a lost pair exits, a pair colliding
// in the previous frame stays, any other pair enters
func (e *Events) recordContacts(pairs []contact.ContactPair, points []contact.ContactPoint, lost []contact.ContactPair) {
	for i := range pairs {
		p := &pairs[i]
		pair := newPair(p)

		switch {
		case p.IsTrigger && p.CollidingInPreviousFrame:
			e.buffer = append(e.buffer, TriggerStayEvent{Pair: pair})
		case p.IsTrigger:
			e.buffer = append(e.buffer, TriggerEnterEvent{Pair: pair})
		case p.CollidingInPreviousFrame:
			e.buffer = append(e.buffer, CollisionStayEvent{Pair: pair, Points: points[p.PointStart : p.PointStart+p.PointCount]})
		default:
			e.buffer = append(e.buffer, CollisionEnterEvent{Pair: pair, Points: points[p.PointStart : p.PointStart+p.PointCount]})
		}
	}

	for i := range lost {
		pair := newPair(&lost[i])
		if lost[i].IsTrigger {
			e.buffer = append(e.buffer, TriggerExitEvent{Pair: pair})
		} else {
			e.buffer = append(e.buffer, CollisionExitEvent{Pair: pair})
		}
	}
}

// processSleepEvents compares the sleep state of every body with the state of the last step
func (e *Events) processSleepEvents(w *World) {
	w.bodies.Each(func(h arena.Handle, b **actor.RigidBody) {
		body := *b
		trackedState, exists := e.sleepStates[h]
		if !exists {
			e.sleepStates[h] = body.IsSleeping
			return
		}

		if !trackedState && body.IsSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: h})
			e.sleepStates[h] = true
		} else if trackedState && !body.IsSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: h})
			e.sleepStates[h] = false
		}
	})
}

// forget drops the tracked state of a removed body
func (e *Events) forget(h arena.Handle) {
	delete(e.sleepStates, h)
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
