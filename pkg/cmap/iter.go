package cmap

// Range calls fn for every entry until fn returns false. Shards are
// visited one at a time, so the view is not a consistent snapshot. fn must
// not write to the map.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		if !s.each(fn) {
			return
		}
	}
}

func (s *shard[V]) each(fn func(string, V) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.items {
		if !fn(k, v) {
			return false
		}
	}
	return true
}
