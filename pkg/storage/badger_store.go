package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"content-loader/pkg/log"
	"content-loader/pkg/models"
	"content-loader/pkg/utils"
)

const (
	pageKeyPrefix = "slug:"    // Prefix for page slug keys in DB
	buildDBDir    = "build_db" // Subdirectory suffix within stateDir for Badger DB files
)

// BadgerStore implements the BuildStore interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) GetPageCount
}

// DBPath returns the directory holding the build database of a collection
func DBPath(stateDir, collectionKey string) string {
	return filepath.Join(stateDir, utils.SanitizeFilename(collectionKey)+"_"+buildDBDir)
}

// NewBadgerStore opens the build database for a collection.
// Unless incremental is set, any previous database for the collection is removed first.
func NewBadgerStore(stateDir, collectionKey string, incremental bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}
	dbPath := DBPath(stateDir, collectionKey)

	if !incremental {
		logger.Debugf("Full build: removing previous build state at %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	logger.Infof("Opening build database at: %s (Incremental: %v)", dbPath, incremental)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrDatabase, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogger(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	if incremental {
		count, err := store.countKeys()
		if err != nil {
			logger.Warnf("Failed to count existing keys: %v", err)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Loaded %d page records from previous builds", count)
		}
	}

	return store, nil
}

func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(pageKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// GetPageRecord implements the PageStore interface
func (s *BadgerStore) GetPageRecord(slug string) (models.PageStatus, *models.PageRecord, error) {
	status := models.PageStatusNotFound
	var record *models.PageRecord
	key := []byte(pageKeyPrefix + slug)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.PageRecord
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				// An unreadable record is rebuilt on the next export
				s.log.Warnf("Failed to unmarshal PageRecord for key '%s': %v. Treating as 'not_found'.", string(key), errJson)
				return nil
			}
			record = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in GetPageRecord for key '%s': %v", string(key), errView)
		return models.PageStatusDBError, nil, errView
	}
	return status, record, nil
}

// UpdatePageRecord implements the PageStore interface
func (s *BadgerStore) UpdatePageRecord(slug string, record *models.PageRecord) error {
	if s.db == nil {
		return fmt.Errorf("%w: build database not initialized", utils.ErrDatabase)
	}
	if !record.Status.IsValid() {
		return fmt.Errorf("%w: refusing to store status '%s' for '%s'", utils.ErrDatabase, record.Status, slug)
	}
	key := []byte(pageKeyPrefix + slug)

	recordBytes, errJson := json.Marshal(record)
	if errJson != nil {
		wrappedErr := fmt.Errorf("%w: failed to marshal PageRecord for key '%s': %w", utils.ErrParsing, string(key), errJson)
		s.log.Error(wrappedErr)
		return wrappedErr
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		isNew = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		} else if errGet != nil {
			return errGet
		}
		return txn.SetEntry(badger.NewEntry(key, recordBytes))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in UpdatePageRecord: %v", err)
		return fmt.Errorf("%w: failed setting page record for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}

	s.log.Debugf("Stored page record for '%s' (status %s)", slug, record.Status)
	return nil
}

// GetPageContentHash implements the PageStore interface.
// A failure record keeps the hash of the last export of its slug, so it is returned as well.
func (s *BadgerStore) GetPageContentHash(slug string) (string, bool, error) {
	_, record, err := s.GetPageRecord(slug)
	if err != nil {
		return "", false, err
	}
	if record == nil || record.ContentHash == "" {
		return "", false, nil
	}
	return record.ContentHash, true, nil
}

// DeletePageRecord implements the PageStore interface
func (s *BadgerStore) DeletePageRecord(slug string) error {
	key := []byte(pageKeyPrefix + slug)
	existed := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		existed = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: failed deleting page record for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if existed {
		s.keyCount.Add(-1)
		s.log.Debugf("Removed page record for '%s'", slug)
	}
	return nil
}

// GetPageCount implements the StoreAdmin interface
func (s *BadgerStore) GetPageCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// ListSlugs implements the StoreAdmin interface
func (s *BadgerStore) ListSlugs(ctx context.Context) ([]string, error) {
	slugs := []string{}
	err := s.iterateSlugs(ctx, func(slug string) error {
		slugs = append(slugs, slug)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slugs, nil
}

func (s *BadgerStore) iterateSlugs(ctx context.Context, fn func(slug string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pageKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().KeyCopy(nil)
			if err := fn(string(key[len(prefix):])); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteSlugLog implements the StoreAdmin interface
func (s *BadgerStore) WriteSlugLog(ctx context.Context, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		s.log.Errorf("Failed create slug log '%s': %v", filePath, err)
		return fmt.Errorf("%w: create slug log '%s': %w", utils.ErrOutput, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writtenCount := 0
	iterErr := s.iterateSlugs(ctx, func(slug string) error {
		if _, err := writer.WriteString(slug + "\n"); err != nil {
			return fmt.Errorf("%w: writing slug '%s': %w", utils.ErrOutput, slug, err)
		}
		writtenCount++
		return nil
	})
	if iterErr != nil {
		s.log.Errorf("Slug log '%s' incomplete after %d entries: %v", filePath, writtenCount, iterErr)
		return iterErr
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush slug log '%s': %w", utils.ErrOutput, filePath, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: sync slug log '%s': %w", utils.ErrOutput, filePath, err)
	}

	s.log.Infof("Wrote %d slugs to %s", writtenCount, filePath)
	return nil
}

// RunGC implements the StoreAdmin interface
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				// Rewrite while at least half of a value log file is reclaimable
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements the StoreAdmin interface
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing build DB: %v", err)
		return fmt.Errorf("%w: close: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Build DB closed.")
	return nil
}
