package model

// LoaderBuilderOption is a functional option used to configure a Loader during construction.
type LoaderBuilderOption func(*loader)

// WithTextureRoot sets the directory relative material texture paths are resolved against.
//
// Parameters:
//   - dir: the directory, typically the directory of the imported model file
//
// Returns:
//   - LoaderBuilderOption: a function that sets the texture root
func WithTextureRoot(dir string) LoaderBuilderOption {
	return func(l *loader) {
		l.textureRoot = dir
	}
}
