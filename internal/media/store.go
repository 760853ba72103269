// Package media does the simulator's video bookkeeping: which lanes have
// an uploaded source and where it lives on disk. No frames are processed
// here; the detection pipeline belongs to the real controller unit.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type Store struct {
	dir   string
	lanes []int
	log   *zap.Logger

	mu      sync.Mutex
	sources map[int]string // lane id -> saved file path
}

func NewStore(dir string, lanes []int, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		dir:     dir,
		lanes:   lanes,
		log:     log.Named("media"),
		sources: make(map[int]string),
	}, nil
}

// Save stores an uploaded file for a lane and records it as that lane's
// source, replacing any previous upload.
func (s *Store) Save(laneID int, filename string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("lane%d_%s", laneID, filepath.Base(filename)))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	s.mu.Lock()
	s.sources[laneID] = path
	ready := len(s.sources)
	s.mu.Unlock()

	s.log.Info("video uploaded", zap.Int("lane", laneID), zap.String("path", path), zap.Int("lanesReady", ready))
	return path, nil
}

// Path returns the saved source for a lane, if any.
func (s *Store) Path(laneID int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.sources[laneID]
	return path, ok
}

// Clear forgets one lane's source. The file stays on disk; uploads are
// cheap and repeat uploads overwrite.
func (s *Store) Clear(laneID int) {
	s.mu.Lock()
	delete(s.sources, laneID)
	s.mu.Unlock()
	s.log.Info("video cleared", zap.Int("lane", laneID))
}

// ClearAll resets the store to empty.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.sources = make(map[int]string)
	s.mu.Unlock()
	s.log.Info("all videos cleared")
}

// Ready reports how many lanes have sources and which ones, plus whether
// every configured lane is covered.
func (s *Store) Ready() (lanes []int, allReady bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.sources {
		lanes = append(lanes, id)
	}
	sort.Ints(lanes)
	return lanes, len(s.sources) == len(s.lanes)
}
