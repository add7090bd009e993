package knowledge

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// shardedMap guards each key range with its own lock so writers on distinct
// keys do not contend.
type shardedMap[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newShardedMap[V any]() *shardedMap[V] {
	s := &shardedMap[V]{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]V)
	}
	return s
}

func (s *shardedMap[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// update runs fn under the key's write lock and stores its result.
func (s *shardedMap[V]) update(key string, fn func(v V, ok bool) V) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[key]
	sh.m[key] = fn(v, ok)
}

// modify runs fn under the key's write lock if the key exists.
func (s *shardedMap[V]) modify(key string, fn func(v V)) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[key]
	if ok {
		fn(v)
	}
	return ok
}

// view runs fn under the key's read lock. It reports whether the key exists.
func (s *shardedMap[V]) view(key string, fn func(v V)) bool {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[key]
	if ok {
		fn(v)
	}
	return ok
}

// each visits every key one shard at a time under that shard's read lock.
func (s *shardedMap[V]) each(fn func(key string, v V)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k, v := range sh.m {
			fn(k, v)
		}
		sh.mu.RUnlock()
	}
}

func (s *shardedMap[V]) size() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}
