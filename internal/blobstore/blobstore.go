package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrIO marks failures of the storage medium itself. Callers that already
// wrote dependent state (ledger metadata) must roll it back on this error.
var ErrIO = errors.New("blobstore: io failure")

// ErrNotFound is returned when no stored file matches a digest.
var ErrNotFound = errors.New("blobstore: not found")

// tempPrefix names in-progress writes; they are renamed onto the digest name
// on completion and can never satisfy a lookup.
const tempPrefix = ".put-"

// Store keeps blob payloads as flat files named digest[.ext] under a single
// directory. An in-memory filename index mirrors the directory contents; it is
// rebuilt from a full scan at construction and maintained on every save and
// delete, so digest lookups never touch the filesystem.
type Store struct {
	root string

	mu    sync.RWMutex
	files []string
}

// New creates a store rooted at root, creating the directory if needed and
// indexing any files already present.
func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, ioErr("mkdir", err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, ioErr("scan", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), tempPrefix) {
			// Leftover from a crashed save; discard instead of indexing.
			_ = os.Remove(filepath.Join(abs, e.Name()))
			continue
		}
		files = append(files, e.Name())
	}

	return &Store{root: abs, files: files}, nil
}

// Save writes data under its SHA-256 digest, with an optional filename
// extension taken from the declared media type. Saving identical bytes again
// is a no-op that returns the same digest with created=false, so callers can
// tell a fresh write (theirs to compensate on failure) from a dedupe onto a
// file some earlier upload already owns.
func (s *Store) Save(ctx context.Context, data []byte, ext string) (digest string, created bool, err error) {
	if s == nil {
		return "", false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	sum := sha256.Sum256(data)
	digest = hex.EncodeToString(sum[:])
	filename := digest
	if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
		filename = digest + "." + ext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := filepath.Join(s.root, filename)
	if _, err := os.Stat(dst); err == nil {
		return digest, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, ioErr("stat", err)
	}

	// Write through a temp file so a crash never leaves a partial payload
	// under a valid digest name.
	tmp, err := os.CreateTemp(s.root, tempPrefix+"*")
	if err != nil {
		return "", false, ioErr("create", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", false, ioErr("write", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", false, ioErr("close", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", false, ioErr("rename", err)
	}

	s.files = append(s.files, filename)
	return digest, true, nil
}

// Locate returns the full path of the stored file for digest, matching any
// extension variant. ErrNotFound when no file is indexed for the digest.
func (s *Store) Locate(digest string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.lookupLocked(digest)
	if !ok {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, name), nil
}

// Exists reports whether a file for digest is indexed.
func (s *Store) Exists(digest string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookupLocked(digest)
	return ok
}

// Delete removes the stored file for digest from the medium and the index.
// Deleting an unknown digest returns ErrNotFound; deleting twice is safe.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if s == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.lookupLocked(digest)
	if !ok {
		return ErrNotFound
	}
	if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioErr("remove", err)
	}

	kept := s.files[:0]
	for _, f := range s.files {
		if f != name {
			kept = append(kept, f)
		}
	}
	s.files = kept
	return nil
}

func (s *Store) lookupLocked(digest string) (string, bool) {
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return "", false
	}
	for _, f := range s.files {
		if strings.HasPrefix(f, digest) {
			return f, true
		}
	}
	return "", false
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIO, op, err)
}
