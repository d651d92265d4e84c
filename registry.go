package amcodec

import "sync"

// inflightSet tracks the handles a decoder has minted and not yet seen
// released, so Dispose can cut them loose from the session.
type inflightSet struct {
	mu      sync.Mutex
	handles map[*PictureHandle]struct{}
	closed  bool
}

func newInflightSet() *inflightSet {
	return &inflightSet{handles: make(map[*PictureHandle]struct{})}
}

// add registers h. It returns false once the set has been closed.
func (s *inflightSet) add(h *PictureHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.handles[h] = struct{}{}
	return true
}

// remove reports whether h was still registered.
func (s *inflightSet) remove(h *PictureHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[h]; !ok {
		return false
	}
	delete(s.handles, h)
	return true
}

func (s *inflightSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// close stops further registration and hands back every outstanding handle.
// The caller invalidates them after the lock is dropped.
func (s *inflightSet) close() []*PictureHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	out := make([]*PictureHandle, 0, len(s.handles))
	for h := range s.handles {
		out = append(out, h)
	}
	clear(s.handles)
	return out
}
