// Package cache keeps fetched source pages on disk so repeated runs do not hit
// the network.
package cache

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"blogmigrate/internal/logger"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache is closed")

const keyPrefix = "page:"

// Entry is one cached page.
type Entry struct {
	URL       string    `msgpack:"url"`
	HTML      string    `msgpack:"html"`
	FetchedAt time.Time `msgpack:"fetched_at"`
}

// Store is a badger-backed page cache.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// Open opens or creates a cache in dir. Entries expire after ttl; zero keeps
// them until removed.
func Open(dir string, ttl time.Duration, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{log: log}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the store. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closed
}

// Lookup returns the cached entry for url.
func (s *Store) Lookup(url string) (*Entry, bool, error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}

	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + url))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &entry)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	return &entry, true, nil
}

// Get returns the cached HTML for url.
func (s *Store) Get(url string) (string, bool, error) {
	entry, ok, err := s.Lookup(url)
	if err != nil || !ok {
		return "", false, err
	}

	return entry.HTML, true, nil
}

// Put stores the HTML fetched from url.
func (s *Store) Put(url, html string) error {
	if s.isClosed() {
		return ErrClosed
	}

	data, err := msgpack.Marshal(&Entry{URL: url, HTML: html, FetchedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+url), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}

		return txn.SetEntry(e)
	})
}

// Len counts the cached pages.
func (s *Store) Len() (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	n := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}

		return nil
	})

	return n, err
}

// badgerLogger forwards badger's warnings and errors; info and debug output
// is dropped.
type badgerLogger struct {
	log *logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	if l.log != nil {
		l.log.Error("cache: " + fmt.Sprintf(format, args...))
	}
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	if l.log != nil {
		l.log.Warn("cache: " + fmt.Sprintf(format, args...))
	}
}

func (l *badgerLogger) Infof(string, ...any) {}

func (l *badgerLogger) Debugf(string, ...any) {}
