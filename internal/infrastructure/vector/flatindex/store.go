package flatindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.IndexStore = (*Store)(nil)

const (
	dirSuffix        = "_index"
	stagingSuffix    = ".staging"
	previousSuffix   = ".previous"
	filesLockSuffix  = ".lock"
	writeLockSuffix  = ".write.lock"
	defaultBatchSize = 32
	lockRetryDelay   = 10 * time.Millisecond
)

type Options struct {
	BatchSize int
	Logger    *slog.Logger
}

// Store owns the namespace indexes under one root directory. Several processes may
// open the same root: the API reads while the worker ingests.
//
// Per namespace there are two locks, each held both in-process and as a file lock so
// other processes see it. The write lock serialises ingests for their whole run. The
// files lock is shared by readers and taken exclusively only for the directory swap
// and for self-healing, so readers never observe a half-published index.
type Store struct {
	root      string
	embedder  ports.Embedder
	batchSize int
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*namespaceLocks
	cache map[string]cachedIndex

	loads singleflight.Group
}

type namespaceLocks struct {
	write sync.Mutex
	files sync.RWMutex
}

type cachedIndex struct {
	index    *Index
	vecStamp fileStamp
	docStamp fileStamp
}

// fileStamp identifies one generation of an index file.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

func (f fileStamp) equal(other fileStamp) bool {
	return f.size == other.size && f.modTime.Equal(other.modTime)
}

// repairNeeded reports on-disk state that only a writer may fix.
type repairNeeded struct {
	cause error
}

func (e *repairNeeded) Error() string { return "index needs repair: " + e.cause.Error() }
func (e *repairNeeded) Unwrap() error { return e.cause }

func NewStore(root string, embedder ports.Embedder, opts Options) (*Store, error) {
	if root == "" {
		root = "./data/indexes"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create index root: %w", err)
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:      root,
		embedder:  embedder,
		batchSize: batch,
		logger:    logger,
		locks:     map[string]*namespaceLocks{},
		cache:     map[string]cachedIndex{},
	}, nil
}

// Dir is the directory holding the files of a namespace index.
func (s *Store) Dir(namespace string) string {
	return filepath.Join(s.root, namespace+dirSuffix)
}

func (s *Store) filesLockPath(namespace string) string {
	return s.Dir(namespace) + filesLockSuffix
}

func (s *Store) writeLockPath(namespace string) string {
	return s.Dir(namespace) + writeLockSuffix
}

func (s *Store) LoadOrInit(ctx context.Context, namespace string) (ports.VectorIndex, bool, error) {
	ix, ok, err := s.loadShared(ctx, namespace)
	if err != nil || !ok {
		return nil, ok, err
	}
	return ix, true, nil
}

func (s *Store) Stats(ctx context.Context, namespace string) (domain.IndexStats, error) {
	stats := domain.IndexStats{Namespace: namespace}
	ix, ok, err := s.loadShared(ctx, namespace)
	if err != nil || !ok {
		return stats, err
	}
	stats.Exists = true
	stats.Fragments = ix.Len()
	stats.Files = len(ix.files)
	stats.Dimension = ix.dim
	return stats, nil
}

// loadShared reads the published index under the shared files lock. Damaged state is
// repaired only when no ingest is running; otherwise the index reads as absent.
func (s *Store) loadShared(ctx context.Context, namespace string) (*Index, bool, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	ix, ok, err := s.readShared(ctx, namespace)
	var repair *repairNeeded
	if !errors.As(err, &repair) {
		return ix, ok, err
	}
	repaired, err := s.tryRepair(ctx, namespace, repair.cause)
	if err != nil || !repaired {
		return nil, false, err
	}
	ix, ok, err = s.readShared(ctx, namespace)
	if errors.As(err, &repair) {
		return nil, false, nil
	}
	return ix, ok, err
}

func (s *Store) readShared(ctx context.Context, namespace string) (*Index, bool, error) {
	l := s.namespaceLocks(namespace)
	l.files.RLock()
	defer l.files.RUnlock()
	fl, err := lockFile(ctx, s.filesLockPath(namespace), true)
	if err != nil {
		return nil, false, err
	}
	defer unlockFile(fl)

	type result struct {
		index  *Index
		exists bool
	}
	v, err, _ := s.loads.Do(namespace, func() (any, error) {
		ix, ok, err := s.load(namespace, false)
		return result{index: ix, exists: ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(result)
	return res.index, res.exists, nil
}

// tryRepair heals the namespace directory if it can take the write lock without
// waiting. A running ingest rewrites the index anyway, so nothing is lost by skipping.
func (s *Store) tryRepair(ctx context.Context, namespace string, cause error) (bool, error) {
	l := s.namespaceLocks(namespace)
	if !l.write.TryLock() {
		s.logger.Warn("index_repair_deferred", "namespace", namespace, "error", cause)
		return false, nil
	}
	defer l.write.Unlock()

	wl := flock.New(s.writeLockPath(namespace))
	locked, err := wl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", filepath.Base(wl.Path()), err)
	}
	if !locked {
		s.logger.Warn("index_repair_deferred", "namespace", namespace, "error", cause)
		return false, nil
	}
	defer unlockFile(wl)

	err = s.withFilesExclusive(ctx, namespace, func() error {
		_, _, err := s.load(namespace, true)
		return err
	})
	return err == nil, err
}

// Ingest adds fragments from the file at sourcePath to the namespace index.
// A file already in the ledger leaves the index untouched. The three index files
// are replaced together, so readers see either the old or the new index.
func (s *Store) Ingest(ctx context.Context, namespace string, fragments []domain.Fragment, sourcePath string) (ports.VectorIndex, domain.IngestReport, error) {
	report := domain.IngestReport{Namespace: namespace}
	if err := validateNamespace(namespace); err != nil {
		return nil, report, err
	}

	fileHash := ""
	if sourcePath != "" {
		h, err := hashFile(sourcePath)
		if err != nil {
			return nil, report, fmt.Errorf("fingerprint source file: %w", err)
		}
		fileHash = h
	}
	report.FileHash = fileHash

	l := s.namespaceLocks(namespace)
	l.write.Lock()
	defer l.write.Unlock()
	wl, err := lockFile(ctx, s.writeLockPath(namespace), false)
	if err != nil {
		return nil, report, err
	}
	defer unlockFile(wl)

	var (
		current *Index
		exists  bool
	)
	err = s.withFilesExclusive(ctx, namespace, func() error {
		var loadErr error
		current, exists, loadErr = s.load(namespace, true)
		return loadErr
	})
	if err != nil {
		return nil, report, err
	}

	if exists && fileHash != "" && current.HasFile(fileHash) {
		report.Skipped = true
		report.FragmentsTotal = current.Len()
		s.logger.Info("ingest_skipped_known_file", "namespace", namespace, "file_hash", fileHash)
		return current, report, nil
	}

	if !exists {
		novel := uniqueFragments(fragments, nil)
		if len(novel) == 0 {
			return nil, report, domain.WrapError(domain.ErrNoDocuments, "create index", errors.New("no fragments to index"))
		}
		sample, err := s.embedder.EmbedQuery(ctx, "")
		if err != nil {
			return nil, report, fmt.Errorf("detect embedding dimension: %w", err)
		}
		if len(sample) == 0 {
			return nil, report, errors.New("detect embedding dimension: empty vector")
		}
		current = newIndex(namespace, len(sample))
		report.Created = true
		fragments = novel
	} else {
		fragments = uniqueFragments(fragments, current)
	}

	next := current
	if len(fragments) > 0 {
		vectors, err := s.embedAll(ctx, fragments, current.dim)
		if err != nil {
			return nil, report, err
		}
		next = current.withFragments(fragments, vectors)
	}
	next = next.withFile(fileHash)

	if err := s.persist(ctx, namespace, next); err != nil {
		return nil, report, err
	}

	report.FragmentsAdded = len(fragments)
	report.FragmentsTotal = next.Len()
	s.logger.Info("index_ingested",
		"namespace", namespace,
		"created", report.Created,
		"fragments_added", report.FragmentsAdded,
		"fragments_total", report.FragmentsTotal,
		"files", len(next.files),
	)
	return next, report, nil
}

// load reads the namespace directory. It must run under the files lock, exclusive
// when repair is set. Without repair, damaged state is reported as *repairNeeded.
func (s *Store) load(namespace string, repair bool) (*Index, bool, error) {
	dir := s.Dir(namespace)
	if repair {
		if err := s.recoverInterruptedSwap(dir); err != nil {
			return nil, false, err
		}
	}

	vecInfo, vecErr := os.Stat(filepath.Join(dir, vectorsFile))
	docInfo, docErr := os.Stat(filepath.Join(dir, docstoreFile))
	if vecErr != nil && !errors.Is(vecErr, os.ErrNotExist) {
		return nil, false, fmt.Errorf("stat index vectors: %w", vecErr)
	}
	if docErr != nil && !errors.Is(docErr, os.ErrNotExist) {
		return nil, false, fmt.Errorf("stat index docstore: %w", docErr)
	}
	hasVec, hasDoc := vecErr == nil, docErr == nil

	switch {
	case !hasVec && !hasDoc:
		s.forget(namespace)
		if !repair {
			if _, err := os.Stat(dir + previousSuffix); err == nil {
				return nil, false, &repairNeeded{cause: errors.New("interrupted index swap")}
			}
		}
		return nil, false, nil
	case hasVec != hasDoc:
		return nil, false, s.corrupt(namespace, repair, fmt.Errorf("%w: only one of %s and %s present", errCorrupt, vectorsFile, docstoreFile))
	}

	s.mu.Lock()
	cached, ok := s.cache[namespace]
	s.mu.Unlock()
	if ok && cached.vecStamp.equal(stampOf(vecInfo)) && cached.docStamp.equal(stampOf(docInfo)) {
		return cached.index, true, nil
	}

	ix, ledgerErr, err := readIndex(dir, namespace)
	if err != nil {
		if errors.Is(err, errCorrupt) {
			return nil, false, s.corrupt(namespace, repair, err)
		}
		return nil, false, fmt.Errorf("read index: %w", err)
	}
	if ledgerErr != nil {
		s.logger.Warn("index_ledger_unreadable", "namespace", namespace, "error", ledgerErr)
	}

	s.remember(namespace, ix, stampOf(vecInfo), stampOf(docInfo))
	return ix, true, nil
}

func (s *Store) corrupt(namespace string, repair bool, cause error) error {
	s.forget(namespace)
	if !repair {
		return &repairNeeded{cause: cause}
	}
	return s.discardCorrupt(namespace, cause)
}

// discardCorrupt deletes the namespace directory so the next ingest rebuilds it.
func (s *Store) discardCorrupt(namespace string, cause error) error {
	s.logger.Warn("index_corrupt",
		"namespace", namespace,
		"error", domain.WrapError(domain.ErrIndexCorruption, "load index", cause),
	)
	s.forget(namespace)
	if err := os.RemoveAll(s.Dir(namespace)); err != nil {
		return fmt.Errorf("remove corrupt index: %w", err)
	}
	return nil
}

// persist writes the staging directory under the write lock only, then swaps it in
// under the exclusive files lock.
func (s *Store) persist(ctx context.Context, namespace string, ix *Index) error {
	dir := s.Dir(namespace)
	staging := dir + stagingSuffix
	previous := dir + previousSuffix

	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := writeVectors(filepath.Join(staging, vectorsFile), ix.dim, ix.vectors); err != nil {
		return fmt.Errorf("write index vectors: %w", err)
	}
	if err := writeDocstore(filepath.Join(staging, docstoreFile), ix); err != nil {
		return fmt.Errorf("write index docstore: %w", err)
	}
	if err := writeLedger(filepath.Join(staging, ledgerFile), ix.files); err != nil {
		return fmt.Errorf("write index ledger: %w", err)
	}

	return s.withFilesExclusive(ctx, namespace, func() error {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("clear previous index: %w", err)
		}
		if _, err := os.Stat(dir); err == nil {
			if err := os.Rename(dir, previous); err != nil {
				return fmt.Errorf("move current index aside: %w", err)
			}
		}
		if err := os.Rename(staging, dir); err != nil {
			return fmt.Errorf("publish index: %w", err)
		}
		_ = os.RemoveAll(previous)

		vecInfo, err := os.Stat(filepath.Join(dir, vectorsFile))
		if err != nil {
			return fmt.Errorf("stat published index: %w", err)
		}
		docInfo, err := os.Stat(filepath.Join(dir, docstoreFile))
		if err != nil {
			return fmt.Errorf("stat published index: %w", err)
		}
		s.remember(namespace, ix, stampOf(vecInfo), stampOf(docInfo))
		return nil
	})
}

// recoverInterruptedSwap restores the previous index when a publish stopped
// between moving the old directory aside and renaming the new one in place.
func (s *Store) recoverInterruptedSwap(dir string) error {
	previous := dir + previousSuffix
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if _, err := os.Stat(previous); err != nil {
		return nil
	}
	if err := os.Rename(previous, dir); err != nil {
		return fmt.Errorf("restore previous index: %w", err)
	}
	s.logger.Warn("index_swap_recovered", "dir", dir)
	return nil
}

func (s *Store) withFilesExclusive(ctx context.Context, namespace string, fn func() error) error {
	l := s.namespaceLocks(namespace)
	l.files.Lock()
	defer l.files.Unlock()
	fl, err := lockFile(ctx, s.filesLockPath(namespace), false)
	if err != nil {
		return err
	}
	defer unlockFile(fl)
	return fn()
}

// lockFile opens a fresh descriptor per acquisition: flock state is per descriptor,
// so goroutines of one process exclude each other the same way processes do.
func lockFile(ctx context.Context, path string, shared bool) (*flock.Flock, error) {
	fl := flock.New(path)
	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", filepath.Base(path), err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", filepath.Base(path))
	}
	return fl, nil
}

func unlockFile(fl *flock.Flock) {
	_ = fl.Unlock()
}

func (s *Store) embedAll(ctx context.Context, fragments []domain.Fragment, dim int) ([][]float32, error) {
	out := make([][]float32, 0, len(fragments))
	for start := 0; start < len(fragments); start += s.batchSize {
		end := min(start+s.batchSize, len(fragments))
		texts := make([]string, 0, end-start)
		for _, f := range fragments[start:end] {
			texts = append(texts, f.Content)
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed fragments: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed fragments: vectors/fragments mismatch: %d/%d", len(vectors), len(texts))
		}
		for _, v := range vectors {
			if len(v) != dim {
				return nil, fmt.Errorf("embed fragments: vector dimension %d, index dimension %d", len(v), dim)
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (s *Store) namespaceLocks(namespace string) *namespaceLocks {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[namespace]
	if !ok {
		l = &namespaceLocks{}
		s.locks[namespace] = l
	}
	return l
}

func (s *Store) remember(namespace string, ix *Index, vecStamp, docStamp fileStamp) {
	s.mu.Lock()
	s.cache[namespace] = cachedIndex{index: ix, vecStamp: vecStamp, docStamp: docStamp}
	s.mu.Unlock()
}

func (s *Store) forget(namespace string) {
	s.mu.Lock()
	delete(s.cache, namespace)
	s.mu.Unlock()
}

// uniqueFragments drops fragments whose ID repeats within the batch or already exists in ix.
func uniqueFragments(fragments []domain.Fragment, ix *Index) []domain.Fragment {
	seen := make(map[string]struct{}, len(fragments))
	out := make([]domain.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.ID == "" {
			f.ID = domain.FingerprintString(f.Content)
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		if ix != nil && ix.Has(f.ID) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func validateNamespace(namespace string) error {
	if namespace == "" || namespace != filepath.Base(namespace) || strings.HasPrefix(namespace, ".") {
		return domain.WrapError(domain.ErrInvalidInput, "resolve namespace", fmt.Errorf("invalid namespace %q", namespace))
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
