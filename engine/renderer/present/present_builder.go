package present

import "time"

// PresenterBuilderOption is a functional option used to configure a Presenter during construction.
type PresenterBuilderOption func(*presenter)

// WithPolicy sets the presentation policy.
//
// Parameters:
//   - policy: PolicyBlocking or PolicyWaitable
//
// Returns:
//   - PresenterBuilderOption: a function that sets the policy
func WithPolicy(policy Policy) PresenterBuilderOption {
	return func(p *presenter) {
		p.policy = policy
	}
}

// WithSyncInterval sets the sync interval passed to Present. Zero presents immediately.
func WithSyncInterval(interval int) PresenterBuilderOption {
	return func(p *presenter) {
		p.syncInterval = interval
	}
}

// WithFenceTimeout bounds the waits performed by BeginFrame and EndFrame.
//
// Parameters:
//   - d: the timeout, zero to rely on the caller's context
//
// Returns:
//   - PresenterBuilderOption: a function that sets the timeout
func WithFenceTimeout(d time.Duration) PresenterBuilderOption {
	return func(p *presenter) {
		p.fenceTimeout = d
	}
}
