package texture

// LoaderBuilderOption is a functional option used to configure a Loader during construction.
type LoaderBuilderOption func(*loader)

// WithDecodeCacheSize sets how many decoded images are kept for repeated loads.
//
// Parameters:
//   - n: the number of cached images
//
// Returns:
//   - LoaderBuilderOption: a function that sets the cache size
func WithDecodeCacheSize(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.cacheSize = n
	}
}
