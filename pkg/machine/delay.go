package machine

import "time"

// delays schedules events to be posted back to the mailbox after a delay.
// Each delayed event has an id; raising an id again cancels the previous
// one. A generation counter per id discards timers that fired before they
// were cancelled but whose event was still in the mailbox.
//
// Only the loop goroutine touches delays; the timer callbacks only post.
type delays struct {
	post   func(Event) error
	timers map[string]*time.Timer
	gens   map[string]uint64
}

func newDelays(post func(Event) error) *delays {
	return &delays{
		post:   post,
		timers: make(map[string]*time.Timer),
		gens:   make(map[string]uint64),
	}
}

func (d *delays) raise(id string, delay time.Duration, ev Event) {
	d.cancel(id)
	gen := d.gens[id]
	d.timers[id] = time.AfterFunc(delay, func() {
		_ = d.post(delayedEvent{id: id, gen: gen, event: ev})
	})
}

func (d *delays) cancel(id string) {
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
	d.gens[id]++
}

// accept reports whether a fired event is still current and clears it
func (d *delays) accept(ev delayedEvent) bool {
	if d.gens[ev.id] != ev.gen {
		return false
	}
	delete(d.timers, ev.id)
	return true
}

func (d *delays) pending(id string) bool {
	_, ok := d.timers[id]
	return ok
}

func (d *delays) cancelAll() {
	for id := range d.timers {
		d.cancel(id)
	}
}
