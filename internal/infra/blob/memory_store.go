package blob

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/ports/adapter"
)

var _ adapter.BlobStore = (*MemoryStore)(nil)

type memoryBlob struct {
	data []byte
	meta map[string]string
}

// MemoryStore is a process-local BlobStore for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	blobs     map[string]memoryBlob
	publicURL string
	signer    *Signer
}

func NewMemoryStore(publicURL string, signer *Signer) *MemoryStore {
	return &MemoryStore{
		blobs:     make(map[string]memoryBlob),
		publicURL: strings.TrimRight(publicURL, "/"),
		signer:    signer,
	}
}

func (s *MemoryStore) Download(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, ref)
	}
	return bytes.Clone(b.data), nil
}

func (s *MemoryStore) Upload(ctx context.Context, key string, data []byte, meta map[string]string) (string, error) {
	ref, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	m := make(map[string]string, len(meta))
	for k, v := range meta {
		m[k] = v
	}
	s.mu.Lock()
	s.blobs[ref] = memoryBlob{data: bytes.Clone(data), meta: m}
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for ref := range s.blobs {
		if strings.HasPrefix(ref, prefix) {
			out = append(out, ref)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	return signedURL(s.publicURL, s.signer, ref, ttl)
}
