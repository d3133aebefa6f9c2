package policy

import (
	"context"
	"fmt"
	"strings"
)

// Error policy modes.
const (
	// ErrorIsolate aborts the failing token only; other tokens continue.
	ErrorIsolate = "isolate"
	// ErrorFailInstance aborts the failing token and cancels its instance.
	ErrorFailInstance = "failInstance"
)

// Resume policy modes for a resume call on a token that is not WAITING.
const (
	// ResumeIgnore treats the call as a no-op.
	ResumeIgnore = "ignore"
	// ResumeReject returns an IllegalStateError.
	ResumeReject = "reject"
)

// Policy represents the failure and resume rules of a navigator.
type Policy struct {
	Error  string
	Resume string
}

// Default returns the isolate/ignore policy.
func Default() *Policy {
	return &Policy{Error: ErrorIsolate, Resume: ResumeIgnore}
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
	Resume string `json:"resume,omitempty" yaml:"resume,omitempty"`
}

// Validate checks modes.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Error {
	case "", ErrorIsolate, ErrorFailInstance:
	default:
		return fmt.Errorf("unsupported error policy: %v", c.Error)
	}
	switch c.Resume {
	case "", ResumeIgnore, ResumeReject:
	default:
		return fmt.Errorf("unsupported resume policy: %v", c.Resume)
	}
	return nil
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{Error: p.Error, Resume: p.Resume}
}

// FromConfig converts a stored Config back to a runtime Policy; empty modes
// take defaults.
func FromConfig(c *Config) *Policy {
	p := Default()
	if c == nil {
		return p
	}
	if c.Error != "" {
		p.Error = c.Error
	}
	if c.Resume != "" {
		p.Resume = c.Resume
	}
	return p
}

// IsolatesErrors returns true when a failing token must not affect others.
func (p *Policy) IsolatesErrors() bool {
	return p == nil || !strings.EqualFold(p.Error, ErrorFailInstance)
}

// RejectsResume returns true when resuming a non waiting token is an error.
func (p *Policy) RejectsResume() bool {
	return p != nil && strings.EqualFold(p.Resume, ResumeReject)
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts policy or returns nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
