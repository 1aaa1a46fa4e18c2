package dataset

import (
	"context"
	"fmt"

	"github.com/hupe1980/dataload/blobstore"
	"github.com/hupe1980/dataload/codec"
	"github.com/hupe1980/dataload/sample"
)

// Blob is a Dataset whose samples live as individual blobs in a
// blobstore.Store (memory, local disk, S3, MinIO). Each blob is one
// codec-encoded sample; fetch latency is whatever the store exhibits,
// which is exactly what multi-worker loading overlaps.
type Blob struct {
	store blobstore.Store
	codec codec.Codec
	keys  []string
}

// BlobOption configures a Blob dataset.
type BlobOption func(*Blob)

// WithBlobCodec sets the codec used to decode stored samples.
// Defaults to codec.Default.
func WithBlobCodec(c codec.Codec) BlobOption {
	return func(b *Blob) {
		if c != nil {
			b.codec = c
		}
	}
}

// NewBlob creates a blob-backed dataset over an explicit ordered key
// list.
func NewBlob(store blobstore.Store, keys []string, optFns ...BlobOption) *Blob {
	b := &Blob{
		store: store,
		codec: codec.Default,
		keys:  append([]string(nil), keys...),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(b)
		}
	}
	return b
}

// OpenBlob creates a blob-backed dataset by listing all keys under
// prefix; the sorted key order defines the index order.
func OpenBlob(ctx context.Context, store blobstore.Store, prefix string, optFns ...BlobOption) (*Blob, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("dataset: list blobs: %w", err)
	}
	return NewBlob(store, keys, optFns...), nil
}

// Len implements Dataset.
func (b *Blob) Len() int { return len(b.keys) }

// Get implements Dataset.
func (b *Blob) Get(ctx context.Context, index int) (sample.Sample, error) {
	if index < 0 || index >= len(b.keys) {
		return sample.Sample{}, fmt.Errorf("dataset: index %d out of range [0,%d)", index, len(b.keys))
	}

	data, err := b.store.Get(ctx, b.keys[index])
	if err != nil {
		return sample.Sample{}, fmt.Errorf("dataset: fetch blob %q: %w", b.keys[index], err)
	}

	var s sample.Sample
	if err := b.codec.Unmarshal(data, &s); err != nil {
		return sample.Sample{}, fmt.Errorf("dataset: decode blob %q: %w", b.keys[index], err)
	}
	return s, nil
}

// Keys returns the ordered key list. The returned slice must not be
// mutated.
func (b *Blob) Keys() []string { return b.keys }
