// Package flat provides an exact (brute-force) similarity index over chunk
// embeddings.
//
// The index uses a copy-on-write pattern: readers load an immutable state
// snapshot from an atomic.Value and never take a lock, while writes are
// serialized by a mutex and publish a fresh state. A search therefore
// observes either the pre- or post-write state for any entry, never a
// partially written vector.
package flat

import (
	"container/heap"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/knowgo/knowgo/distance"
	"github.com/knowgo/knowgo/index"
	"github.com/knowgo/knowgo/model"
)

// Compile-time check that Flat satisfies the index contract.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Metric is the similarity metric used for ranking. It is fixed for
	// the lifetime of the index and recorded in persisted images.
	Metric distance.Metric
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	Metric: distance.MetricCosine,
}

type slotEntry struct {
	id  model.ChunkID
	vec []float32
}

// indexState is the immutable state published to readers.
type indexState struct {
	slots    []slotEntry
	byID     map[model.ChunkID]uint32
	live     *roaring.Bitmap // occupied slot positions
	freeList []uint32        // slots available for reuse
}

func (st *indexState) clone() *indexState {
	newSlots := make([]slotEntry, len(st.slots))
	copy(newSlots, st.slots)

	newFree := make([]uint32, len(st.freeList))
	copy(newFree, st.freeList)

	return &indexState{
		slots:    newSlots,
		byID:     maps.Clone(st.byID),
		live:     st.live.Clone(),
		freeList: newFree,
	}
}

// Flat is an exact top-k similarity index keyed by chunk ID.
type Flat struct {
	state     atomic.Value // holds *indexState
	writeMu   sync.Mutex   // serializes writes only
	dimension atomic.Int32 // fixed by the first successful insert
	opts      Options
}

// New creates a new flat index. The vector dimension is not configured up
// front; it is established by the first successfully inserted vector.
func New(optFns ...func(o *Options)) *Flat {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	f := &Flat{opts: opts}
	f.state.Store(emptyState())
	return f
}

func emptyState() *indexState {
	return &indexState{
		slots: make([]slotEntry, 0),
		byID:  make(map[model.ChunkID]uint32),
		live:  roaring.New(),
	}
}

func (f *Flat) getState() *indexState {
	return f.state.Load().(*indexState)
}

// Metric returns the ranking metric of this index.
func (f *Flat) Metric() distance.Metric { return f.opts.Metric }

// Dimension returns the established vector dimension, or 0 for an index
// that has never held a vector.
func (f *Flat) Dimension() int { return int(f.dimension.Load()) }

// Len returns the number of live entries.
func (f *Flat) Len() int {
	return int(f.getState().live.GetCardinality())
}

// storedForm validates v against the established dimension and returns the
// form in which it is stored (normalized for cosine).
func (f *Flat) storedForm(v []float32) ([]float32, error) {
	dim := int(f.dimension.Load())
	if dim > 0 && len(v) != dim {
		return nil, &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	if len(v) == 0 {
		return nil, index.ErrZeroVector
	}

	if f.opts.Metric == distance.MetricCosine {
		norm, ok := distance.NormalizeL2Copy(v)
		if !ok {
			return nil, index.ErrZeroVector
		}
		return norm, nil
	}

	vec := make([]float32, len(v))
	copy(vec, v)
	return vec, nil
}

// Insert adds or replaces the vector stored under id.
// The first successful insert fixes the index dimension; later inserts with
// a different dimension fail with ErrDimensionMismatch and leave the index
// unchanged.
func (f *Flat) Insert(id model.ChunkID, vector []float32) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	vec, err := f.storedForm(vector)
	if err != nil {
		return err
	}

	oldState := f.getState()
	newState := oldState.clone()

	if slot, ok := newState.byID[id]; ok {
		// Replace in place. Readers holding the old state keep seeing the
		// old slots slice, so this does not race.
		newState.slots[slot] = slotEntry{id: id, vec: vec}
	} else {
		var slot uint32
		if n := len(newState.freeList); n > 0 {
			slot = newState.freeList[n-1]
			newState.freeList = newState.freeList[:n-1]
			newState.slots[slot] = slotEntry{id: id, vec: vec}
		} else {
			slot = uint32(len(newState.slots))
			newState.slots = append(newState.slots, slotEntry{id: id, vec: vec})
		}
		newState.byID[id] = slot
		newState.live.Add(slot)
	}

	if f.dimension.Load() == 0 {
		f.dimension.Store(int32(len(vector)))
	}
	f.state.Store(newState)
	return nil
}

// Remove deletes the entry for id if present; no-op otherwise.
func (f *Flat) Remove(id model.ChunkID) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	oldState := f.getState()
	slot, ok := oldState.byID[id]
	if !ok {
		return
	}

	newState := oldState.clone()
	newState.slots[slot] = slotEntry{}
	newState.live.Remove(slot)
	delete(newState.byID, id)
	newState.freeList = append(newState.freeList, slot)
	f.state.Store(newState)
}

// Search returns up to min(k, Len()) results ordered by descending score.
// Ties break by ascending chunk ID, so rankings are deterministic.
// Searching an empty index returns (nil, nil); callers decide whether that
// is an error.
func (f *Flat) Search(query []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	st := f.getState()
	count := int(st.live.GetCardinality())
	if count == 0 {
		return nil, nil
	}

	q, err := f.storedForm(query)
	if err != nil {
		return nil, err
	}

	actualK := min(k, count)
	worst := &resultHeap{}
	heap.Init(worst)

	it := st.live.Iterator()
	for it.HasNext() {
		slot := it.Next()
		ent := st.slots[slot]
		score := distance.Dot(q, ent.vec)

		if worst.Len() < actualK {
			heap.Push(worst, index.SearchResult{ChunkID: ent.id, Score: score})
			continue
		}
		if better(index.SearchResult{ChunkID: ent.id, Score: score}, worst.items[0]) {
			worst.items[0] = index.SearchResult{ChunkID: ent.id, Score: score}
			heap.Fix(worst, 0)
		}
	}

	results := make([]index.SearchResult, worst.Len())
	for i := worst.Len() - 1; i >= 0; i-- {
		results[i] = heap.Pop(worst).(index.SearchResult)
	}
	return results, nil
}

// Entries returns all live entries in slot order.
// The returned vectors alias index memory and must be treated as read-only.
func (f *Flat) Entries() []index.Entry {
	st := f.getState()
	entries := make([]index.Entry, 0, st.live.GetCardinality())
	it := st.live.Iterator()
	for it.HasNext() {
		ent := st.slots[it.Next()]
		entries = append(entries, index.Entry{ChunkID: ent.id, Vector: ent.vec})
	}
	return entries
}

// Restore replaces the full index contents from a persisted image.
// Vectors are assumed to be in stored (normalized) form already.
func (f *Flat) Restore(dimension int, entries []index.Entry) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	newState := emptyState()
	for _, e := range entries {
		if len(e.Vector) != dimension {
			return &index.ErrDimensionMismatch{Expected: dimension, Actual: len(e.Vector)}
		}
		slot := uint32(len(newState.slots))
		newState.slots = append(newState.slots, slotEntry{id: e.ChunkID, vec: e.Vector})
		newState.byID[e.ChunkID] = slot
		newState.live.Add(slot)
	}

	if len(entries) == 0 {
		dimension = 0
	}
	f.dimension.Store(int32(dimension))
	f.state.Store(newState)
	return nil
}

// better reports whether a outranks b: higher score wins, equal scores
// break by ascending chunk ID.
func better(a, b index.SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ChunkID < b.ChunkID
}

// resultHeap is a min-heap of the current top-k candidates, with the worst
// candidate at the root so it can be evicted cheaply.
type resultHeap struct {
	items []index.SearchResult
}

func (h *resultHeap) Len() int            { return len(h.items) }
func (h *resultHeap) Less(i, j int) bool  { return better(h.items[j], h.items[i]) }
func (h *resultHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *resultHeap) Push(x any)          { h.items = append(h.items, x.(index.SearchResult)) }
func (h *resultHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
