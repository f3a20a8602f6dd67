package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"
	"go.etcd.io/bbolt"

	"vectorstack/internal/port"
)

var bucketEmbeddings = []byte("embeddings")

// BoltEmbeddingCache persists vectors in a bbolt bucket. Values are stored
// as little-endian half floats, the precision the embeddings service
// returns them in.
type BoltEmbeddingCache struct {
	db *bbolt.DB
}

func NewBoltEmbeddingCache(db *bbolt.DB) (*BoltEmbeddingCache, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings bucket: %w", err)
	}
	return &BoltEmbeddingCache{db: db}, nil
}

// EmbeddingKey identifies a vector by everything that influences it.
func EmbeddingKey(model string, isQuery bool, instruction, text string) []byte {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	if isQuery {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte(instruction))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum(nil)
}

// GetMany returns the cached vector for each key, nil where absent.
func (c *BoltEmbeddingCache) GetMany(keys [][]byte) ([][]float32, error) {
	out := make([][]float32, len(keys))
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for i, k := range keys {
			if v := b.Get(k); v != nil {
				out[i] = decodeHalf(v)
			}
		}
		return nil
	})
	return out, err
}

// PutMany stores vectors under keys in one transaction.
func (c *BoltEmbeddingCache) PutMany(keys [][]byte, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("got %d keys for %d vectors", len(keys), len(vectors))
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for i, k := range keys {
			if err := b.Put(k, encodeHalf(vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of cached vectors.
func (c *BoltEmbeddingCache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEmbeddings).Stats().KeyN
		return nil
	})
	return n, err
}

func encodeHalf(v []float32) []byte {
	buf := make([]byte, 0, len(v)*2)
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint16(buf, float16.Fromfloat32(x).Bits())
	}
	return buf
}

func decodeHalf(b []byte) []float32 {
	v := make([]float32, len(b)/2)
	for i := range v {
		v[i] = float16.Frombits(binary.LittleEndian.Uint16(b[i*2:])).Float32()
	}
	return v
}

// CachedEmbedder sends only cache misses to the wrapped embedder, in one
// call, and returns vectors in input order.
type CachedEmbedder struct {
	embedder    port.Embedder
	cache       *BoltEmbeddingCache
	instruction string
}

func NewCachedEmbedder(embedder port.Embedder, cache *BoltEmbeddingCache, instruction string) *CachedEmbedder {
	return &CachedEmbedder{
		embedder:    embedder,
		cache:       cache,
		instruction: instruction,
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	model := e.embedder.ModelName()
	keys := make([][]byte, len(texts))
	for i, t := range texts {
		keys[i] = EmbeddingKey(model, isQuery, e.instruction, t)
	}
	out, err := e.cache.GetMany(keys)
	if err != nil {
		return nil, fmt.Errorf("embedding cache lookup: %w", err)
	}

	var missIdx []int
	var missTexts []string
	for i, v := range out {
		if v == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.embedder.Embed(ctx, missTexts, isQuery)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}
	missKeys := make([][]byte, len(missIdx))
	for j, i := range missIdx {
		out[i] = fresh[j]
		missKeys[j] = keys[i]
	}
	if err := e.cache.PutMany(missKeys, fresh); err != nil {
		return nil, fmt.Errorf("embedding cache store: %w", err)
	}
	return out, nil
}

func (e *CachedEmbedder) ModelName() string {
	return e.embedder.ModelName()
}
