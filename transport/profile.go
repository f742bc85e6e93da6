package transport

import "github.com/eventmux-dispatch/dispatchkit/core"

// Profile is the §3 "Pipeline profile" record.
type Profile struct {
	Name            string
	Description     string
	MiddlewareTypes []string
	IsStrict        bool
	SupportedKinds  core.Kind
}

// StrictProfile is the well-known "Strict" profile (§6): the full
// middleware list, strict mode, Action-only.
func StrictProfile(middlewareTypes []string) *Profile {
	return &Profile{
		Name:            "Strict",
		Description:     "Full middleware pipeline in strict mode, for commands/actions.",
		MiddlewareTypes: middlewareTypes,
		IsStrict:        true,
		SupportedKinds:  core.Action,
	}
}

// InternalEventProfile is the well-known "InternalEvent" profile (§6): an
// empty middleware list, Event-only.
func InternalEventProfile() *Profile {
	return &Profile{
		Name:           "InternalEvent",
		Description:    "No middleware, for low-overhead internal event fan-out.",
		SupportedKinds: core.Event,
	}
}
