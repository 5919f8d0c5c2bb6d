package awsutil

import (
	"log/slog"
	"time"
)

// ClientOptions holds configuration shared by the service clients.
type ClientOptions struct {
	Logger      *slog.Logger
	CallTimeout time.Duration
}

// Option is a functional option for configuring a service client.
type Option func(*ClientOptions)

// WithLogger configures the client with a custom logger.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// WithCallTimeout bounds every API call made by the client.
// A non-positive duration disables the per-call bound.
func WithCallTimeout(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.CallTimeout = d
	}
}

// ApplyOptions returns the defaults with opts applied. A nil logger is
// replaced with one that discards output.
func ApplyOptions(opts []Option) ClientOptions {
	o := ClientOptions{
		CallTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
