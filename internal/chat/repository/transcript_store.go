package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"marketplace_chat_service/pkg/database"

	"github.com/minio/minio-go/v7"
)

// ErrDocumentNotFound stored transcript missing
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore object storage for frozen report transcripts
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

const transcriptContentType = "text/html; charset=utf-8"

type minioDocumentStore struct {
	client *database.MinIOClient
}

// NewMinIODocumentStore transcripts in the configured bucket
func NewMinIODocumentStore(client *database.MinIOClient) DocumentStore {
	return &minioDocumentStore{client: client}
}

func (s *minioDocumentStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.PutBytes(ctx, key, data, transcriptContentType); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *minioDocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.GetBytes(ctx, key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return data, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

type memoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryDocumentStore process-local DocumentStore
func NewMemoryDocumentStore() DocumentStore {
	return &memoryDocumentStore{docs: make(map[string][]byte)}
}

func (s *memoryDocumentStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	s.docs[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *memoryDocumentStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[key]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}
