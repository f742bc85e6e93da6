package core

import "strings"

// KindMarker is the interface a typed message can implement to declare its
// own Kind, bypassing suffix detection entirely (§4.3 "When a message does
// not implement a kind marker...").
type KindMarker interface {
	MessageKind() Kind
}

// DetectKind derives a Kind for an untyped inbound message from the
// unqualified type name suffix (§4.3, §9 "Dynamic dispatch on message
// kind"). This is a documented escape hatch, implemented as a small lookup
// table rather than a regex, per §9.
//
// This occurs exactly once per dispatch; callers (FilteredInvoker,
// transport routers) should compute it a single time and thread the result
// forward rather than re-deriving it.
func DetectKind(typeName string) Kind {
	name := typeName
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	switch {
	case strings.HasSuffix(name, "Command"):
		return Action
	case strings.HasSuffix(name, "Event"), strings.HasSuffix(name, "Notification"):
		return Event
	case strings.HasSuffix(name, "Query"), strings.HasSuffix(name, "Document"):
		return Document
	default:
		return Action
	}
}

// ResolveKind consults msg's KindMarker, if it implements one, and returns
// the declared Kind unless it is None; otherwise it falls back to suffix
// detection against typeName. *Message implements KindMarker itself
// (MessageKind returns its own Kind field), so passing one here behaves the
// same as checking msg.Kind directly, while still allowing any other
// KindMarker-implementing payload to self-declare.
func ResolveKind(msg any, typeName string) Kind {
	if marker, ok := msg.(KindMarker); ok {
		if k := marker.MessageKind(); k != None {
			return k
		}
	}
	return DetectKind(typeName)
}
