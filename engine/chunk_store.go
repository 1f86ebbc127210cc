package engine

import (
	"sort"
	"sync"

	"github.com/knowgo/knowgo/model"
)

// ChunkStore is the in-memory source of truth for chunk payloads: content,
// summary and metadata, keyed by chunk ID with a per-document reverse
// index. The vector index only stores embeddings; query results are
// hydrated from here.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[model.ChunkID]model.Chunk
	byDoc  map[string][]model.ChunkID
}

// NewChunkStore creates an empty chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[model.ChunkID]model.Chunk),
		byDoc:  make(map[string][]model.ChunkID),
	}
}

// Get retrieves the chunk with the given ID.
func (s *ChunkStore) Get(id model.ChunkID) (model.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	return c, ok
}

// Set stores a chunk, replacing any previous version.
func (s *ChunkStore) Set(chunk model.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chunks[chunk.ID]; !exists {
		s.byDoc[chunk.DocumentID] = append(s.byDoc[chunk.DocumentID], chunk.ID)
	}
	s.chunks[chunk.ID] = chunk
}

// Delete removes the chunk if present.
func (s *ChunkStore) Delete(id model.ChunkID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return
	}
	delete(s.chunks, id)

	ids := s.byDoc[chunk.DocumentID]
	for i, cid := range ids {
		if cid == id {
			s.byDoc[chunk.DocumentID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byDoc[chunk.DocumentID]) == 0 {
		delete(s.byDoc, chunk.DocumentID)
	}
}

// ChunksOf returns the chunk IDs belonging to a document, sorted.
func (s *ChunkStore) ChunksOf(documentID string) []model.ChunkID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]model.ChunkID, len(s.byDoc[documentID]))
	copy(ids, s.byDoc[documentID])
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of stored chunks.
func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// All returns every stored chunk, sorted by ID for deterministic output.
func (s *ChunkStore) All() []model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]model.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	return chunks
}

// Reset replaces the full store contents, used when loading a snapshot.
func (s *ChunkStore) Reset(chunks []model.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = make(map[model.ChunkID]model.Chunk, len(chunks))
	s.byDoc = make(map[string][]model.ChunkID)
	for _, c := range chunks {
		s.chunks[c.ID] = c
		s.byDoc[c.DocumentID] = append(s.byDoc[c.DocumentID], c.ID)
	}
}
