package topic

// relay builds a derived value topic. attach is called on activation and
// must subscribe upstream, returning the matching unsubscribe. Hook options
// in opts are overridden.
func relay[V any](attach func(dst *Value[V]) (func(), error), opts []Option) *Value[V] {
	var dst *Value[V]
	var detach func()
	hooks := []Option{
		WithOnActivated(func() error {
			d, err := attach(dst)
			if err != nil {
				return err
			}
			detach = d
			return nil
		}),
		WithOnDeactivated(func() error {
			if detach != nil {
				detach()
				detach = nil
			}
			return nil
		}),
	}
	dst = NewValue[V](append(opts[:len(opts):len(opts)], hooks...)...)
	return dst
}

func forward[T any](src *Value[T], fn func(T) bool) (func(), error) {
	h, err := src.Subscribe(fn)
	if err != nil {
		return nil, err
	}
	return func() { src.Unsubscribe(h) }, nil
}

// Map derives a topic publishing fn(v) for every v published by src.
func Map[T, V any](src *Value[T], fn func(T) V, opts ...Option) *Value[V] {
	dst := relay(func(dst *Value[V]) (func(), error) {
		return forward(src, func(v T) bool {
			dst.Publish(fn(v))
			return true
		})
	}, opts)
	if v, ok := src.Get(); ok {
		dst.set(fn(v))
	}
	return dst
}

// Filter derives a topic publishing only the values of src for which keep
// returns true.
func Filter[T any](src *Value[T], keep func(T) bool, opts ...Option) *Value[T] {
	dst := relay(func(dst *Value[T]) (func(), error) {
		return forward(src, func(v T) bool {
			if keep(v) {
				dst.Publish(v)
			}
			return true
		})
	}, opts)
	if v, ok := src.Get(); ok && keep(v) {
		dst.set(v)
	}
	return dst
}

// Distinct derives a topic that suppresses consecutive duplicate values.
func Distinct[T comparable](src *Value[T], opts ...Option) *Value[T] {
	dst := relay(func(dst *Value[T]) (func(), error) {
		return forward(src, func(v T) bool {
			if cur, ok := dst.Get(); ok && cur == v {
				return true
			}
			dst.Publish(v)
			return true
		})
	}, opts)
	if v, ok := src.Get(); ok {
		dst.set(v)
	}
	return dst
}

// Tap derives a topic that calls fn with every value before republishing it.
func Tap[T any](src *Value[T], fn func(T), opts ...Option) *Value[T] {
	dst := relay(func(dst *Value[T]) (func(), error) {
		return forward(src, func(v T) bool {
			fn(v)
			dst.Publish(v)
			return true
		})
	}, opts)
	if v, ok := src.Get(); ok {
		dst.set(v)
	}
	return dst
}

// FromTopic adapts a plain Topic into a value topic. On activation and after
// every publish of src, the value is refreshed from supply.
func FromTopic[T any](src *Topic, supply func() T, opts ...Option) *Value[T] {
	return relay(func(dst *Value[T]) (func(), error) {
		h, err := src.Subscribe(func() bool {
			dst.Publish(supply())
			return true
		})
		if err != nil {
			return nil, err
		}
		dst.set(supply())
		return func() { src.Unsubscribe(h) }, nil
	}, opts)
}
