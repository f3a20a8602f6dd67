package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"vectorstack/internal/domain"
)

var (
	bucketDocs = []byte("docs")
	bucketMeta = []byte("meta")
)

// BoltStore is the local state database. It holds the ingest manifest and
// exposes the underlying bbolt handle so the embedding cache can keep its
// bucket in the same file.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// GetDoc returns the manifest entry for path; ok is false when the path
// has never been ingested.
func (s *BoltStore) GetDoc(path string) (doc domain.Document, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(path))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &doc)
	})
	return doc, ok, err
}

func (s *BoltStore) PutDoc(doc domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).Put([]byte(doc.Path), data)
	})
}

func (s *BoltStore) DeleteDoc(path string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).Delete([]byte(path))
	})
}

// ListDocs returns every manifest entry ordered by path.
func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var doc domain.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("corrupt manifest entry %s: %w", k, err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, err
}

// Clear drops every manifest entry but keeps the schema info.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocs); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketDocs)
		return err
	})
}
