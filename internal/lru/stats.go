package lru

import "fmt"

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Hits      uint64 `json:"hits" yaml:"hits"`
	Misses    uint64 `json:"misses" yaml:"misses"`
	Evictions uint64 `json:"evictions" yaml:"evictions"`
	Capacity  int    `json:"capacity" yaml:"capacity"`
	Size      int    `json:"size" yaml:"size"`
}

// HitRatio returns hits / (hits + misses), or 0 before the first access.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s Stats) String() string {
	return fmt.Sprintf("hits=%d misses=%d evictions=%d size=%d/%d hit_ratio=%.3f",
		s.Hits, s.Misses, s.Evictions, s.Size, s.Capacity, s.HitRatio())
}
