package stdx

// Must0 panics when the provided error is not nil.
//
// It is meant for call sites where an error indicates a programming
// mistake rather than a runtime condition, such as wiring done during
// process startup.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns the value when err is nil and panics otherwise.
//
// Typical use is unwrapping constructors that cannot reasonably fail
// with the inputs the caller controls:
//
//	sc := stdx.Must1(scenario.Load("fleet.jsonc"))
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Must2 returns both values when err is nil and panics otherwise.
//
// It exists for the handful of APIs that return two values plus an
// error, so callers don't need a throwaway variable block.
func Must2[T any, V any](t T, v V, err error) (T, V) {
	if err != nil {
		panic(err)
	}
	return t, v
}
