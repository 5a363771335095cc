package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/storage"
)

// BlobStore adapts an artifact store to the Store interface so the
// finalize rule can guard canonical artifacts living next to the other
// phase outputs.
type BlobStore struct {
	blobs  storage.BlobStore
	logger *zap.Logger
}

// NewBlobStore wraps an artifact store.
func NewBlobStore(blobs storage.BlobStore, logger *zap.Logger) *BlobStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{blobs: blobs, logger: logger}
}

// Load reads and decodes a JSON document; missing or corrupt documents
// report absent.
func (s *BlobStore) Load(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.blobs.Get(ctx, key)
	if errors.Is(err, storage.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("artifact corrupt, treating as absent",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

// Save writes the complete document as indented JSON.
func (s *BlobStore) Save(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if _, err := s.blobs.Put(ctx, key, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
