package session

import (
	"sync"

	"sensor_overlay/internal/render"
)

type element struct {
	classes map[string]bool
}

// wsSurface mirrors the slots of one browser page and turns every change into
// a patch message. The mirror answers Has/HasClass without a round trip.
type wsSurface struct {
	mu    sync.Mutex
	elems map[render.Slot]*element
	emit  func(patchMsg)
}

func newSurface(slots []render.Slot, emit func(patchMsg)) *wsSurface {
	s := &wsSurface{elems: make(map[render.Slot]*element, len(slots)), emit: emit}
	for _, slot := range slots {
		s.elems[slot] = &element{classes: map[string]bool{}}
	}
	return s
}

func (s *wsSurface) Has(slot render.Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elems[slot] != nil
}

func (s *wsSurface) Create(slot render.Slot, class, html string) {
	s.mu.Lock()
	el := &element{classes: map[string]bool{}}
	if class != "" {
		el.classes[class] = true
	}
	s.elems[slot] = el
	s.mu.Unlock()
	s.emit(patchMsg{Op: opCreate, Slot: slot, Class: class, HTML: html})
}

func (s *wsSurface) SetHTML(slot render.Slot, html string) {
	if !s.Has(slot) {
		return
	}
	s.emit(patchMsg{Op: opHTML, Slot: slot, HTML: html})
}

func (s *wsSurface) AddClass(slot render.Slot, class string) {
	if !s.mutate(slot, func(el *element) { el.classes[class] = true }) {
		return
	}
	s.emit(patchMsg{Op: opAddClass, Slot: slot, Class: class})
}

func (s *wsSurface) RemoveClass(slot render.Slot, class string) {
	if !s.mutate(slot, func(el *element) { delete(el.classes, class) }) {
		return
	}
	s.emit(patchMsg{Op: opRemoveClass, Slot: slot, Class: class})
}

func (s *wsSurface) ToggleClass(slot render.Slot, class string) {
	if !s.mutate(slot, func(el *element) {
		if el.classes[class] {
			delete(el.classes, class)
		} else {
			el.classes[class] = true
		}
	}) {
		return
	}
	s.emit(patchMsg{Op: opToggleClass, Slot: slot, Class: class})
}

func (s *wsSurface) HasClass(slot render.Slot, class string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.elems[slot]
	return el != nil && el.classes[class]
}

func (s *wsSurface) SetStyle(slot render.Slot, property, value string) {
	if !s.Has(slot) {
		return
	}
	s.emit(patchMsg{Op: opStyle, Slot: slot, Property: property, Value: value})
}

func (s *wsSurface) mutate(slot render.Slot, f func(*element)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.elems[slot]
	if el == nil {
		return false
	}
	f(el)
	return true
}
