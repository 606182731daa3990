package download

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const blobScheme = "blob:"

// ObjectStore holds temporary in-memory objects addressed by blob: references.
type ObjectStore interface {
	Create(data []byte, contentType string) (string, error)
	Get(ref string) ([]byte, string, bool)
	Revoke(ref string)
}

// IsObjectRef reports whether ref names an ObjectStore entry.
func IsObjectRef(ref string) bool {
	return strings.HasPrefix(ref, blobScheme)
}

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an ObjectStore backed by a map.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Create(data []byte, contentType string) (string, error) {
	ref := blobScheme + uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = memoryObject{data: data, contentType: contentType}
	return ref, nil
}

func (s *MemoryStore) Get(ref string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[ref]
	return obj.data, obj.contentType, ok
}

// Revoke releases ref. Unknown references are ignored.
func (s *MemoryStore) Revoke(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
}

// Len returns the number of live objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
