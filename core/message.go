package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the category of a Message. It is a bitmask so that
// middleware applicability can be expressed as set membership rather than
// a switch over a closed enum.
type Kind uint8

const (
	// None matches nothing. Used as the zero value for exclude-kinds.
	None Kind = 0
	// Action is a command-like message expecting exactly one handler.
	Action Kind = 1 << iota
	// Event is a fan-out notification; handlers do not return a response.
	Event
	// Document is a query/read message, typically carrying a response type.
	Document
	// All is the union of every concrete kind.
	All = Action | Event | Document
)

// String renders a Kind for logging.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case All:
		return "all"
	case Action:
		return "action"
	case Event:
		return "event"
	case Document:
		return "document"
	}
	var parts []string
	if k&Action != 0 {
		parts = append(parts, "action")
	}
	if k&Event != 0 {
		parts = append(parts, "event")
	}
	if k&Document != 0 {
		parts = append(parts, "document")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Has reports whether k intersects other.
func (k Kind) Has(other Kind) bool {
	return k&other != 0
}

// Message is the transport-neutral envelope handed to the dispatch pipeline.
// It is an opaque payload carrier: the runtime never reflects over Body.
type Message struct {
	ID            string
	Kind          Kind
	CorrelationID string
	CausationID   string
	Headers       Headers
	Timestamp     time.Time
	ResponseType  string // type tag only, carried for request/response messages
	Body          []byte
}

// NewMessage builds a Message with a freshly generated 128-bit random id
// (rendered compactly via uuid); EnsureID fills in an id on a Message built
// without one.
func NewMessage(kind Kind, body []byte) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Kind:      kind,
		Headers:   NewHeaders(),
		Timestamp: time.Now().UTC(),
		Body:      body,
	}
}

// EnsureID assigns a generated identity if one is not already set.
func (m *Message) EnsureID() {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
}

// MessageKind implements KindMarker: a Message always knows its own Kind,
// so ResolveKind never needs to fall through to suffix detection for it
// unless Kind is still None.
func (m *Message) MessageKind() Kind { return m.Kind }

// Headers is an ordered, case-insensitive string->string mapping used for
// both Message headers and, via the same type, cross-transport header
// namespaces (X-Correlation-Id, x-priority, ...).
type Headers struct {
	order []string
	index map[string]int // lowercase key -> position in order
	value map[string]string
}

// NewHeaders returns an empty Headers map.
func NewHeaders() Headers {
	return Headers{
		index: make(map[string]int),
		value: make(map[string]string),
	}
}

// Set inserts or overwrites a header. The original casing of name is
// preserved for wire output; lookups are case-insensitive.
func (h *Headers) Set(name, value string) {
	h.ensure()
	lower := strings.ToLower(name)
	if _, ok := h.index[lower]; !ok {
		h.index[lower] = len(h.order)
		h.order = append(h.order, name)
	}
	h.value[lower] = value
}

// Get returns the header value and whether it was present.
func (h Headers) Get(name string) (string, bool) {
	if h.value == nil {
		return "", false
	}
	v, ok := h.value[strings.ToLower(name)]
	return v, ok
}

// Remove deletes a header, reporting whether it existed.
func (h *Headers) Remove(name string) bool {
	if h.value == nil {
		return false
	}
	lower := strings.ToLower(name)
	pos, ok := h.index[lower]
	if !ok {
		return false
	}
	delete(h.value, lower)
	delete(h.index, lower)
	h.order = append(h.order[:pos], h.order[pos+1:]...)
	for k, i := range h.index {
		if i > pos {
			h.index[k] = i - 1
		}
	}
	return true
}

// Keys returns header names in insertion order, using their original casing.
func (h Headers) Keys() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Clone returns a deep copy suitable for threading into a derived context.
func (h Headers) Clone() Headers {
	out := NewHeaders()
	for _, k := range h.order {
		v, _ := h.Get(k)
		out.Set(k, v)
	}
	return out
}

func (h *Headers) ensure() {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if h.value == nil {
		h.value = make(map[string]string)
	}
}

// Well-known header names (§6).
const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderCausationID   = "X-Causation-Id"
	HeaderETag          = "X-Etag"
	HeaderTenantID      = "X-Tenant-Id"
	HeaderRaisedBy      = "X-Raised-By"
	HeaderMessageType   = "X-Message-Type"
)
