package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	tmerrors "tidemark/internal/errors"
	"tidemark/internal/model"
)

// FileStore implements Store under a single directory, normally
// `<git-dir>/tidemark-scratch/cache/` (spec.md §6's persisted state layout).
// Writes are atomic (temp file + rename) and serialized by a whole-directory
// advisory flock; reads take no lock and always see either the previous or
// the fully-written new value, never a partial one.
type FileStore struct {
	dir string

	mu    sync.Mutex // serializes in-process writers around the directory flock
	group singleflight.Group
}

// NewFileStore returns a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "creating cache directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) candidatesPath(key Key) string {
	return filepath.Join(s.dir, key.Digest()+".kv")
}

func (s *FileStore) anchorPath(key Key, tagDigest, targetID string) string {
	name := fmt.Sprintf("%s-%s-%s.kv", key.Digest(), tagDigest, shortHash(targetID))
	return filepath.Join(s.dir, name)
}

type candidatesRecord struct {
	Candidates []model.ReleaseTag `json:"candidates"`
}

func (s *FileStore) GetCandidates(ctx context.Context, key Key) (CandidateSet, bool, error) {
	var rec candidatesRecord
	ok, err := s.readJSON(s.candidatesPath(key), &rec)
	if err != nil || !ok {
		return CandidateSet{}, false, err
	}
	return CandidateSet{Digest: TagDigest(rec.Candidates), Candidates: rec.Candidates}, true, nil
}

func (s *FileStore) PutCandidates(ctx context.Context, key Key, set CandidateSet) error {
	_, err, _ := s.group.Do(s.candidatesPath(key), func() (interface{}, error) {
		return nil, s.writeJSON(s.candidatesPath(key), candidatesRecord{Candidates: set.Candidates})
	})
	return err
}

func (s *FileStore) GetAnchor(ctx context.Context, key Key, tagDigest, targetID string) (model.AnchorSelection, bool, error) {
	var sel model.AnchorSelection
	ok, err := s.readJSON(s.anchorPath(key, tagDigest, targetID), &sel)
	if err != nil || !ok {
		return model.AnchorSelection{}, false, err
	}
	return sel, true, nil
}

func (s *FileStore) PutAnchor(ctx context.Context, key Key, tagDigest, targetID string, sel model.AnchorSelection) error {
	path := s.anchorPath(key, tagDigest, targetID)
	_, err, _ := s.group.Do(path, func() (interface{}, error) {
		return nil, s.writeJSON(path, sel)
	})
	return err
}

func (s *FileStore) Close() error { return nil }

// readJSON loads and decodes path with no lock held, per spec.md §5's
// "readers load without a lock" contract. A missing file or truncated
// temp-file leftover is treated as a cache miss, never an error — the
// cache is a performance layer only.
func (s *FileStore) readJSON(path string, dst interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "reading cache entry %s", path)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		// A partially-written or corrupted entry is a miss, not a failure:
		// the next successful write will repair it via atomic rename.
		return false, nil
	}
	return true, nil
}

// writeJSON writes path atomically: marshal to a uuid-named temp file in
// the same directory, fsync, then rename over the destination. The
// whole-directory flock serializes concurrent writers so two processes
// never race on the same temp name or leave the lock held past the write.
func (s *FileStore) writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindInternalInvariant, err, "encoding cache entry")
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	tmp := filepath.Join(s.dir, "."+uuid.New().String()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "creating cache temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "writing cache temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "syncing cache temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "closing cache temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "renaming cache entry into place")
	}
	return nil
}

// lock acquires the whole-directory advisory flock described in spec.md §5.
// syscall.Flock is Linux/Unix-specific; no portable advisory-locking
// library appears anywhere in the retrieval pack, so this one primitive is
// the cache's single standard-library-only piece (see DESIGN.md).
func (s *FileStore) lock() (func(), error) {
	s.mu.Lock()
	lockPath := filepath.Join(s.dir, ".lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		s.mu.Unlock()
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "opening cache lock file")
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		s.mu.Unlock()
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "locking cache directory")
	}
	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		s.mu.Unlock()
	}, nil
}

func shortHash(s string) string {
	if len(s) > 40 {
		return s[:40]
	}
	return s
}
