// Package registry wraps a lock-free concurrent map behind the small
// surface waggle components need for keyed lookups, such as an agent's
// per-kind handler table.
package registry

import "github.com/alphadose/haxmap"

// Registry is a concurrent string-keyed collection. Add overwrites, so
// "last registration wins" semantics fall out of the map itself.
type Registry[T any] interface {
	Get(key string) (T, bool)
	Add(key string, value T)
	GetOrAdd(key string, value func() T) (T, bool)
	Del(key string)
	Len() int
	ForEach(fn func(key string, value T) bool)
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

// New returns an empty registry.
func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(key string) (T, bool) {
	return r.values.Get(key)
}

func (r *registry[T]) Add(key string, value T) {
	r.values.Set(key, value)
}

func (r *registry[T]) GetOrAdd(key string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(key, valueFn)
}

func (r *registry[T]) Del(key string) {
	r.values.Del(key)
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}

// ForEach visits entries in no particular order. The visit stops when
// fn returns false.
func (r *registry[T]) ForEach(fn func(key string, value T) bool) {
	r.values.ForEach(fn)
}
