package nsopts

import (
	"time"
)

const (
	// DefaultDepthLimit is the default depth limit used by Resolve.
	DefaultDepthLimit = 32

	// UnlimitedDepth allows infinite recursion in Resolve.  You
	// probably don't want to use this, but it's here if you absolutely
	// trust resolution to eventually complete and can't put an upper
	// limit on how many steps it will take.
	UnlimitedDepth = 0

	// DefaultRecordTTL specifies the time that a resolved record can be
	// cached before checking its validity again.
	DefaultRecordTTL = time.Minute

	// DefaultRecordEOL specifies how long a published record stays valid.
	DefaultRecordEOL = 48 * time.Hour
)

// ResolveOpts specifies options for resolving a name
type ResolveOpts struct {
	// Recursion depth limit
	Depth uint
	// Cache allows answers from the resolve cache
	Cache bool
}

// DefaultResolveOpts returns the default options for resolving
// a name
func DefaultResolveOpts() ResolveOpts {
	return ResolveOpts{
		Depth: DefaultDepthLimit,
		Cache: true,
	}
}

// ResolveOpt is used to set an option
type ResolveOpt func(*ResolveOpts)

// Depth is the recursion depth limit
func Depth(depth uint) ResolveOpt {
	return func(o *ResolveOpts) {
		o.Depth = depth
	}
}

// Cache controls whether cached answers may be used
func Cache(cache bool) ResolveOpt {
	return func(o *ResolveOpts) {
		o.Cache = cache
	}
}

// ProcessOpts converts an array of ResolveOpt into a ResolveOpts object
func ProcessOpts(opts []ResolveOpt) ResolveOpts {
	rsopts := DefaultResolveOpts()
	for _, option := range opts {
		option(&rsopts)
	}
	return rsopts
}

// PublishOptions specifies options for publishing a record.
type PublishOptions struct {
	EOL time.Time
	TTL time.Duration
}

// DefaultPublishOptions returns the default options for publishing a record.
func DefaultPublishOptions() PublishOptions {
	return PublishOptions{
		EOL: time.Now().Add(DefaultRecordEOL),
		TTL: DefaultRecordTTL,
	}
}

// PublishOption is used to set an option for PublishOpts.
type PublishOption func(*PublishOptions)

// PublishWithEOL sets an EOL.
func PublishWithEOL(eol time.Time) PublishOption {
	return func(o *PublishOptions) {
		o.EOL = eol
	}
}

// PublishWithTTL sets a TTL.
func PublishWithTTL(ttl time.Duration) PublishOption {
	return func(o *PublishOptions) {
		o.TTL = ttl
	}
}

// ProcessPublishOptions converts an array of PublishOpt into a PublishOpts object.
func ProcessPublishOptions(opts []PublishOption) PublishOptions {
	rsopts := DefaultPublishOptions()
	for _, option := range opts {
		option(&rsopts)
	}
	return rsopts
}
