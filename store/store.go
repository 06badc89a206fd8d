// Package store persists web sessions in badger so an upload survives a
// restart of the server until its TTL runs out.
//
// API keys are never written here; they live only in process memory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 2 * time.Hour

const (
	sessionPrefix  = "session/"
	gcInterval     = 10 * time.Minute
	gcDiscardRatio = 0.5
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is what is needed to rebuild a user's workspace.
type Session struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	FileName     string    `json:"fileName,omitempty"`
	Sheet        string    `json:"sheet,omitempty"`
	Upload       []byte    `json:"upload,omitempty"`
	LastQuestion string    `json:"lastQuestion,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store keeps sessions in a badger database.
type Store struct {
	db      *badger.DB
	ttl     time.Duration
	logger  *zap.Logger
	janitor *janitor
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Open opens the database in dir, creating it when missing. An empty dir
// keeps everything in memory. Entries expire after ttl; zero means DefaultTTL.
func Open(dir string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db, ttl: ttl, logger: logger}
	if dir != "" {
		s.janitor = startJanitor(gcInterval, s.collectGarbage)
	}
	logger.Info("session store opened", zap.String("dir", dir), zap.Duration("ttl", ttl))
	return s, nil
}

// Put writes a session, assigning an id and creation time when missing.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(sessionKey(sess.ID), value).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("put session %s: %w", sess.ID, err)
	}
	return nil
}

// Get reads a session, or returns ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sess Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &sess, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
}

// Close stops the janitor and closes the database.
func (s *Store) Close() error {
	if s.janitor != nil {
		s.janitor.Stop()
	}
	return s.db.Close()
}

// collectGarbage rewrites value log files until badger has nothing left to reclaim.
func (s *Store) collectGarbage() {
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Debug("value log gc stopped", zap.Error(err))
		}
		return
	}
}

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

// badgerLogger routes badger's printf-style logs to zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.Warnf(msg, args...)
}
