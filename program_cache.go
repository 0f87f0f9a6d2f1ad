package settings

import "sync"

// ProgramCache stores compiled expression programs. Keys are prefixed with
// the engine name so one cache can back several evaluators.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryProgramCache is a concurrency safe ProgramCache.
type MemoryProgramCache struct {
	programs sync.Map
}

// NewProgramCache returns an empty in-memory cache.
func NewProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{}
}

func (c *MemoryProgramCache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	return c.programs.Load(key)
}

func (c *MemoryProgramCache) Set(key string, value any) {
	if c == nil {
		return
	}
	c.programs.Store(key, value)
}

// Len reports how many programs are cached.
func (c *MemoryProgramCache) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	c.programs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
