package web

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spektr-org/askcel/analyst"
	"github.com/spektr-org/askcel/sheet"
	"github.com/spektr-org/askcel/store"
)

// workspace is one browser session. Fields are guarded by mu;
// seen is guarded by the owning sessions.mu.
type workspace struct {
	mu sync.Mutex

	id       string
	analyst  *analyst.Analyst
	provider string
	model    string
	keySet   bool // the user entered a key in this process

	fileName string
	sheet    string
	upload   []byte

	lastQuestion string
	last         *analyst.Answer

	seen time.Time
}

// sessions maps session ids to live workspaces. A miss is rebuilt from
// the store; workspaces idle longer than ttl are dropped.
type sessions struct {
	store      *store.Store
	ttl        time.Duration
	logger     *zap.Logger
	newAnalyst func() *analyst.Analyst

	mu   sync.Mutex
	live map[string]*workspace
}

func newSessions(st *store.Store, ttl time.Duration, logger *zap.Logger, newAnalyst func() *analyst.Analyst) *sessions {
	if ttl <= 0 {
		ttl = store.DefaultTTL
	}
	return &sessions{
		store:      st,
		ttl:        ttl,
		logger:     logger,
		newAnalyst: newAnalyst,
		live:       make(map[string]*workspace),
	}
}

func (s *sessions) get(ctx context.Context, id string) *workspace {
	now := time.Now()
	s.mu.Lock()
	for key, ws := range s.live {
		if now.Sub(ws.seen) > s.ttl {
			delete(s.live, key)
		}
	}
	if ws, ok := s.live[id]; ok {
		ws.seen = now
		s.mu.Unlock()
		return ws
	}
	s.mu.Unlock()

	ws := s.restore(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[id]; ok {
		existing.seen = now
		return existing
	}
	ws.seen = now
	s.live[id] = ws
	return ws
}

func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// restore rebuilds a workspace from its stored session. The API key is
// never stored, so a restored workspace uses the server default translator.
func (s *sessions) restore(ctx context.Context, id string) *workspace {
	ws := &workspace{id: id, analyst: s.newAnalyst()}
	if s.store == nil {
		return ws
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("restore session", zap.String("session", id), zap.Error(err))
		}
		return ws
	}

	ws.provider, ws.model = sess.Provider, sess.Model
	ws.lastQuestion = sess.LastQuestion
	if len(sess.Upload) == 0 {
		return ws
	}
	frame, err := sheet.Load(bytes.NewReader(sess.Upload), sess.FileName, sheet.LoadOptions{Sheet: sess.Sheet})
	if err == nil {
		err = ws.analyst.Load(ctx, frame)
	}
	if err != nil {
		s.logger.Warn("reload session upload", zap.String("session", id), zap.String("file", sess.FileName), zap.Error(err))
		return ws
	}
	ws.fileName, ws.sheet, ws.upload = sess.FileName, frame.Sheet, sess.Upload
	s.logger.Debug("session restored", zap.String("session", id), zap.String("file", sess.FileName))
	return ws
}

// save persists ws. The caller holds ws.mu.
func (s *sessions) save(ctx context.Context, ws *workspace) {
	if s.store == nil {
		return
	}
	err := s.store.Put(ctx, &store.Session{
		ID:           ws.id,
		Provider:     ws.provider,
		Model:        ws.model,
		FileName:     ws.fileName,
		Sheet:        ws.sheet,
		Upload:       ws.upload,
		LastQuestion: ws.lastQuestion,
	})
	if err != nil {
		s.logger.Warn("save session", zap.String("session", ws.id), zap.Error(err))
	}
}
