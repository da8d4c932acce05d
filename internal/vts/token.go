package vts

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// TokenStore keeps the current authentication token in memory and persists
// replacements from a background goroutine. Offer never blocks; when writes
// fall behind only the newest token is written.
type TokenStore struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	current string

	pending   chan string
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewTokenStore loads the token at path, if any, and starts the writer.
func NewTokenStore(fs afero.Fs, path string, logger *zap.Logger) *TokenStore {
	s := &TokenStore{
		fs:      fs,
		path:    path,
		logger:  logger,
		pending: make(chan string, 1),
		done:    make(chan struct{}),
	}

	if data, err := afero.ReadFile(fs, path); err == nil {
		s.current = strings.TrimSpace(string(data))
	} else {
		logger.Debug("No stored VTS token", zap.String("path", path), zap.Error(err))
	}

	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// Current returns the newest known token, empty if none.
func (s *TokenStore) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Offer records a new token and schedules it to be written.
func (s *TokenStore) Offer(token string) {
	s.mu.Lock()
	s.current = token
	s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	for {
		select {
		case s.pending <- token:
			return
		default:
		}
		// replace the stale pending token
		select {
		case <-s.pending:
		default:
		}
	}
}

// Close stops the writer after persisting any pending token.
func (s *TokenStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *TokenStore) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case token := <-s.pending:
			s.write(token)
		case <-s.done:
			select {
			case token := <-s.pending:
				s.write(token)
			default:
			}
			return
		}
	}
}

func (s *TokenStore) write(token string) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("Failed to create token directory", zap.String("path", dir), zap.Error(err))
			return
		}
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(token), 0o600); err != nil {
		s.logger.Error("Failed to save VTS token", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.logger.Info("Saved new VTS token", zap.String("path", s.path))
}
