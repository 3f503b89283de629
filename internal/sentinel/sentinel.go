// Package sentinel manages the on-disk pause flag and supervision mode.
// Each has a repository-local file, which takes precedence, and a global
// file under ~/.bdb.
package sentinel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/cognaterra/better-drinking-bird/internal/gitctx"
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrLocked      = errors.New("sentinel files are locked by another process")
)

const (
	pauseFileName = ".bdb-paused"
	modeDirName   = ".bdb"
	modeFileName  = "mode"
	lockFileName  = "sentinel.lock"
)

// Mode controls how the stop review behaves.
type Mode string

const (
	ModeDefault Mode = "default"
	ModeAuto    Mode = "auto"
	// ModeInteractive lets every stop through; safety pipelines still run.
	ModeInteractive Mode = "interactive"
)

// Modes lists the accepted modes.
var Modes = []Mode{ModeDefault, ModeAuto, ModeInteractive}

// ParseMode validates a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want default, auto or interactive)", ErrUnknownMode, s)
}

// PauseInfo is the metadata stored in a pause sentinel.
type PauseInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
	User      string    `json:"user,omitempty"`
}

type modeFile struct {
	Mode      Mode      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
}

// TimeProvider returns the current time.
type TimeProvider func() time.Time

// Store reads and writes sentinel files.
type Store struct {
	globalDir    string
	timeProvider TimeProvider
	mu           sync.Mutex
}

// NewStore creates a Store whose global files live in globalDir (~/.bdb).
func NewStore(globalDir string) *Store {
	return &Store{
		globalDir:    globalDir,
		timeProvider: time.Now,
	}
}

// SetTimeProvider replaces the clock, for tests.
func (s *Store) SetTimeProvider(tp TimeProvider) {
	s.timeProvider = tp
}

// PausePath returns the pause sentinel for cwd's repository, or the global one.
func (s *Store) PausePath(cwd string, global bool) (string, error) {
	if global {
		return filepath.Join(s.globalDir, pauseFileName), nil
	}
	root, err := gitctx.FindRoot(cwd)
	if err != nil {
		return "", fmt.Errorf("%w: use --global to pause everywhere", err)
	}
	return filepath.Join(root, pauseFileName), nil
}

// ModePath returns the mode file for cwd's repository, or the global one.
func (s *Store) ModePath(cwd string, global bool) (string, error) {
	if global {
		return filepath.Join(s.globalDir, modeFileName), nil
	}
	root, err := gitctx.FindRoot(cwd)
	if err != nil {
		return "", fmt.Errorf("%w: use --global to set the mode everywhere", err)
	}
	return filepath.Join(root, modeDirName, modeFileName), nil
}

// IsPaused reports whether supervision is paused for cwd and which file says so.
func (s *Store) IsPaused(cwd string) (bool, string) {
	if local, err := s.PausePath(cwd, false); err == nil && exists(local) {
		return true, local
	}
	global := filepath.Join(s.globalDir, pauseFileName)
	if exists(global) {
		return true, global
	}
	return false, ""
}

// Pause writes a pause sentinel and returns its path.
func (s *Store) Pause(cwd string, global bool, reason string) (string, error) {
	path, err := s.PausePath(cwd, global)
	if err != nil {
		return "", err
	}
	info := PauseInfo{
		Timestamp: s.timeProvider(),
		Reason:    reason,
		User:      currentUser(),
	}
	if err := s.writeJSON(path, info); err != nil {
		return "", err
	}
	return path, nil
}

// Resume removes the pause sentinel. removed is false when none existed.
func (s *Store) Resume(cwd string, global bool) (path string, removed bool, err error) {
	path, err = s.PausePath(cwd, global)
	if err != nil {
		return "", false, err
	}
	removed, err = s.remove(path)
	return path, removed, err
}

// ReadPauseInfo returns the metadata in a pause sentinel.
func ReadPauseInfo(path string) (*PauseInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pause sentinel: %w", err)
	}
	var info PauseInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse pause sentinel: %w", err)
	}
	return &info, nil
}

// Mode returns the effective mode for cwd and the file it came from.
// Missing or invalid files fall through; the result defaults to ModeDefault
// with an empty source.
func (s *Store) Mode(cwd string) (Mode, string) {
	if local, err := s.ModePath(cwd, false); err == nil {
		if m, ok := readMode(local); ok {
			return m, local
		}
	}
	global := filepath.Join(s.globalDir, modeFileName)
	if m, ok := readMode(global); ok {
		return m, global
	}
	return ModeDefault, ""
}

// SetMode writes the mode file and returns its path.
func (s *Store) SetMode(cwd string, global bool, mode Mode) (string, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return "", err
	}
	path, err := s.ModePath(cwd, global)
	if err != nil {
		return "", err
	}
	data := modeFile{
		Mode:      mode,
		Timestamp: s.timeProvider(),
		User:      currentUser(),
	}
	if err := s.writeJSON(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ClearMode removes the mode file. removed is false when none existed.
func (s *Store) ClearMode(cwd string, global bool) (path string, removed bool, err error) {
	path, err = s.ModePath(cwd, global)
	if err != nil {
		return "", false, err
	}
	removed, err = s.remove(path)
	return path, removed, err
}

func readMode(path string) (Mode, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var f modeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", false
	}
	m, err := ParseMode(string(f.Mode))
	if err != nil {
		return "", false
	}
	return m, true
}

// lock serializes writers across processes.
func (s *Store) lock() (*flock.Flock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.globalDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.globalDir, err)
	}
	fileLock := flock.New(filepath.Join(s.globalDir, lockFileName))

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return fileLock, nil
}

func (s *Store) writeJSON(path string, v any) error {
	fileLock, err := s.lock()
	if err != nil {
		return err
	}
	defer fileLock.Close()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sentinel: %w", err)
	}
	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write sentinel %s: %w", path, err)
	}
	return nil
}

func (s *Store) remove(path string) (bool, error) {
	fileLock, err := s.lock()
	if err != nil {
		return false, err
	}
	defer fileLock.Close()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return true, nil
}

// atomicWrite writes data to a file atomically using a temp file and rename
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
