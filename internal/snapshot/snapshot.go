// Package snapshot implements C16: the persistent content-snapshot store
// — a badgerhold index plus zstd-compressed bodies on disk, sharded by
// fingerprint prefix per the {root}/{xx}/{yy}/{id}.snap layout contract
// (model.ShardPrefixes). Compression uses klauspost/compress/zstd, already
// a transitive dependency of the teacher's badger stack, promoted here to
// a direct one since the snapshot store is exactly the kind of large-blob
// archival concern zstd is built for.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/timshannon/badgerhold/v4"

	"github.com/quaero-labs/corequaero/internal/model"
)

// Record is the badgerhold-indexed metadata for one stored snapshot. The
// actual (compressed) body lives on disk at Path, not in badger, so large
// bodies never inflate the badger value log.
type Record struct {
	ID          string `badgerhold:"key"`
	URL         string `badgerhold:"index"`
	Fingerprint string `badgerhold:"index"`
	StoredAt    time.Time `badgerhold:"index"`
	Path        string
	SizeBytes   int64
	ContentType string
}

// Store persists fetched page bodies to content-addressed, sharded files
// under root, indexing metadata in badgerhold for lookup by ID or URL.
type Store struct {
	root    string
	store   *badgerhold.Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu sync.Mutex
}

// New builds a Store rooted at root (created if missing).
func New(root string, index *badgerhold.Store) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot root %s: %w", root, err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &Store{root: root, store: index, encoder: encoder, decoder: decoder}, nil
}

// Put compresses and writes body under a path derived from id, recording
// its metadata in the index. id is expected to be a fingerprint or UUID —
// never used as a raw path component beyond the shard derivation in
// pathFor, so a malicious id cannot escape root (spec.md's snapshot
// path-root invariant).
func (s *Store) Put(ctx context.Context, id, url, fingerprint, contentType string, body []byte) (*Record, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot shard dir: %w", err)
	}

	s.mu.Lock()
	compressed := s.encoder.EncodeAll(body, nil)
	s.mu.Unlock()

	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot %s: %w", id, err)
	}

	record := &Record{
		ID:          id,
		URL:         url,
		Fingerprint: fingerprint,
		StoredAt:    time.Now(),
		Path:        path,
		SizeBytes:   int64(len(body)),
		ContentType: contentType,
	}
	if err := s.store.Upsert(id, record); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("index snapshot %s: %w", id, err)
	}
	return record, nil
}

// Get retrieves and decompresses the snapshot body for id.
func (s *Store) Get(ctx context.Context, id string) (*Record, []byte, error) {
	var record Record
	if err := s.store.Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil, model.New(model.KindSnapshotNotFound, "snapshot %s not found", id)
		}
		return nil, nil, err
	}

	compressed, err := os.ReadFile(record.Path)
	if err != nil {
		return nil, nil, model.Wrap(model.KindCorruptArtifact, err, "read snapshot file for %s", id)
	}

	s.mu.Lock()
	body, err := s.decoder.DecodeAll(compressed, nil)
	s.mu.Unlock()
	if err != nil {
		return nil, nil, model.Wrap(model.KindCorruptArtifact, err, "decompress snapshot %s", id)
	}
	return &record, body, nil
}

// ListByURL returns every snapshot recorded for url, newest first.
func (s *Store) ListByURL(url string) ([]Record, error) {
	var records []Record
	err := s.store.Find(&records, badgerhold.Where("URL").Eq(url).SortBy("StoredAt").Reverse())
	return records, err
}

// Delete removes both the index entry and the backing file for id.
func (s *Store) Delete(id string) error {
	var record Record
	if err := s.store.Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return err
	}
	if err := s.store.Delete(id, &Record{}); err != nil {
		return err
	}
	return os.Remove(record.Path)
}

// pathFor derives the sharded on-disk path for id, rejecting any id that
// would let a path-traversal sequence or path separator reach the
// filesystem — the snapshot path-root invariant.
func (s *Store) pathFor(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", model.New(model.KindInvalidArgument, "invalid snapshot id %q", id)
	}
	first2, next2 := model.ShardPrefixes(id)
	path := filepath.Join(s.root, first2, next2, id+".snap")

	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, absRoot+string(os.PathSeparator)) {
		return "", model.New(model.KindInvalidArgument, "snapshot id %q escapes storage root", id)
	}
	return path, nil
}
