package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"vectorstack/config"
)

// CurrentSchemaVersion is bumped on breaking changes to the manifest format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keySchemaVersion); v != nil {
			if err := json.Unmarshal(v, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		info.ConfigHash = string(b.Get(keyConfigHash))
		return nil
	})
	return &info, err
}

func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		v, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, v); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash hashes the settings that determine record ids and
// vectors. A different hash means every file must be re-ingested.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Index          string `json:"index"`
		ChunkTokens    int    `json:"chunk_tokens"`
		ChunkOverlap   int    `json:"chunk_overlap"`
		EmbeddingModel string `json:"embedding_model"`
	}{
		Index:          cfg.Index.Name,
		ChunkTokens:    cfg.Ingest.ChunkTokens,
		ChunkOverlap:   cfg.Ingest.ChunkOverlap,
		EmbeddingModel: cfg.Ingest.EmbeddingModel,
	}
	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// NeedsRebuild reports whether the manifest was written under a different
// schema or configuration. A fresh database never needs a rebuild.
func (s *BoltStore) NeedsRebuild(cfg *config.Config) (bool, string, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return false, "", err
	}
	switch {
	case info.Version == 0:
		return false, "", nil
	case info.Version > CurrentSchemaVersion:
		return true, fmt.Sprintf("state written by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion), nil
	case info.ConfigHash != ComputeConfigHash(cfg):
		return true, "ingest configuration changed", nil
	}
	return false, "", nil
}

// MarkCurrent records the schema version and configuration hash after a
// successful ingest.
func (s *BoltStore) MarkCurrent(cfg *config.Config) error {
	return s.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	})
}
