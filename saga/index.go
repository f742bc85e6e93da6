// Package saga implements the in-memory correlation index described in
// §4.7, grounded on the teacher's broker/registry.go: a single
// sync.RWMutex guarding plain maps, rather than the inbox package's
// per-entry locking, since saga records are whole-record replaced on
// update rather than field-transitioned concurrently.
package saga

import (
	"sync"
	"time"
)

// Status is a saga's lifecycle status. The index treats it as an opaque
// string (callers define their own saga status vocabulary); only the
// literal "Completed" is special, for default filtering (§4.7).
type Status string

const Completed Status = "Completed"

// Record is one saga entry as returned by the two lookup queries.
type Record struct {
	SagaID        string
	SagaType      string
	CorrelationID string
	Status        Status
	CreatedAt     time.Time
}

type propertyKey struct {
	name  string
	value string
}

// Index is the §4.7 correlation/property lookup structure.
type Index struct {
	mu sync.RWMutex

	records map[string]*Record // sagaId -> record
	byCorr  map[string][]string // correlationId -> []sagaId

	properties map[propertyKey][]string // (name,value) -> []sagaId

	maxResults int
}

// Option configures an Index at construction time.
type Option func(*Index)

// WithMaxResults caps every query's returned list length (§4.7).
func WithMaxResults(n int) Option {
	return func(idx *Index) { idx.maxResults = n }
}

// NewIndex constructs an empty correlation index.
func NewIndex(opts ...Option) *Index {
	idx := &Index{
		records:    make(map[string]*Record),
		byCorr:     make(map[string][]string),
		properties: make(map[propertyKey][]string),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexSaga upserts the primary record for sagaId. A second call with the
// same sagaId replaces the prior record wholesale, including its
// correlation-id bucket membership.
func (idx *Index) IndexSaga(sagaID, sagaType, correlationID string, status Status, createdAt time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.records[sagaID]; ok {
		idx.removeFromCorrIndex(existing.CorrelationID, sagaID)
	}

	idx.records[sagaID] = &Record{
		SagaID:        sagaID,
		SagaType:      sagaType,
		CorrelationID: correlationID,
		Status:        status,
		CreatedAt:     createdAt,
	}
	idx.byCorr[correlationID] = append(idx.byCorr[correlationID], sagaID)
}

// IndexProperty appends sagaId to the (propertyName, propertyValue)
// property bucket. Unknown sagaIds are indexed anyway; FindByProperty only
// surfaces entries that also have a primary record.
func (idx *Index) IndexProperty(sagaID, propertyName, propertyValue string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	k := propertyKey{name: propertyName, value: propertyValue}
	idx.properties[k] = append(idx.properties[k], sagaID)
}

// UpdateStatus mutates the status of an existing record. Unknown ids are
// silently ignored (§4.7).
func (idx *Index) UpdateStatus(sagaID string, status Status) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if r, ok := idx.records[sagaID]; ok {
		r.Status = status
	}
}

// FindByCorrelationId returns records indexed under correlationId,
// excluding Completed ones unless includeCompleted is set, capped at
// MaxResults if configured.
func (idx *Index) FindByCorrelationId(correlationID string, includeCompleted bool) []Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := idx.byCorr[correlationID]
	return idx.collect(ids, includeCompleted)
}

// FindByProperty returns records whose sagaId was indexed under
// (propertyName, propertyValue), subject to the same filtering and cap.
func (idx *Index) FindByProperty(propertyName, propertyValue string, includeCompleted bool) []Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := idx.properties[propertyKey{name: propertyName, value: propertyValue}]
	return idx.collect(ids, includeCompleted)
}

// collect resolves sagaIds to records, applies the Completed filter and the
// MaxResults cap, and must be called with idx.mu held for reading.
func (idx *Index) collect(ids []string, includeCompleted bool) []Record {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		r, ok := idx.records[id]
		if !ok {
			continue
		}
		if !includeCompleted && r.Status == Completed {
			continue
		}
		out = append(out, *r)
		if idx.maxResults > 0 && len(out) >= idx.maxResults {
			break
		}
	}
	return out
}

// removeFromCorrIndex must be called with idx.mu held for writing.
func (idx *Index) removeFromCorrIndex(correlationID, sagaID string) {
	bucket := idx.byCorr[correlationID]
	for i, id := range bucket {
		if id == sagaID {
			idx.byCorr[correlationID] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(idx.byCorr[correlationID]) == 0 {
		delete(idx.byCorr, correlationID)
	}
}

// Clear empties every data structure (§4.7).
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records = make(map[string]*Record)
	idx.byCorr = make(map[string][]string)
	idx.properties = make(map[propertyKey][]string)
}
