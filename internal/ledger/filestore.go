package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
)

const (
	stateFileName = "claims.json"
	lockFileName  = "claims.lock"

	// lockPollInterval is how often a bounded Lock retries a held flock.
	lockPollInterval = 50 * time.Millisecond
)

// persistedState is the serializable representation of the ledger.
type persistedState struct {
	Claims map[int]*Claim `json:"claims"`
}

// FileStore persists the ledger as a JSON file guarded by an flock(2)
// lock file, giving atomic read-modify-write across concurrent processes
// on the same host. Writes are atomic: data goes to a temporary file
// first and is renamed into place.
//
// The flock only excludes other processes; sem excludes the other
// session goroutines sharing this handle. The file field is touched
// only while sem is held.
type FileStore struct {
	dir  string
	sem  chan struct{}
	file *os.File // lock file handle, non-nil while the section is held
}

// NewFileStore creates a FileStore rooted at dir. The directory is
// created if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileStore{dir: dir, sem: make(chan struct{}, 1)}, nil
}

// Lock acquires the exclusive section, waiting at most wait. A zero
// wait blocks until the section is available. The wait bound covers
// both the in-process semaphore and the cross-process flock.
func (s *FileStore) Lock(wait time.Duration) error {
	var deadline time.Time
	if wait > 0 {
		deadline = time.Now().Add(wait)
	}

	if err := acquireSection(s.sem, wait); err != nil {
		return fmt.Errorf("%w: waited %s for %s", errors.ErrLockTimeout, wait, s.lockPath())
	}

	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		<-s.sem
		return corrupt(s.lockPath(), "open lock file", err)
	}

	if wait <= 0 {
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
			_ = f.Close()
			<-s.sem
			return corrupt(s.lockPath(), "flock", err)
		}
		s.file = f
		return nil
	}

	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			s.file = f
			return nil
		}
		if err != syscall.EWOULDBLOCK {
			_ = f.Close()
			<-s.sem
			return corrupt(s.lockPath(), "flock", err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			<-s.sem
			return fmt.Errorf("%w: waited %s for %s", errors.ErrLockTimeout, wait, s.lockPath())
		}
		time.Sleep(lockPollInterval)
	}
}

// Unlock releases the flock and the section. Must be called by the
// goroutine holding the section; a no-op when nothing is held.
func (s *FileStore) Unlock() error {
	if s.file == nil {
		return nil
	}

	flockErr := syscall.Flock(int(s.file.Fd()), syscall.LOCK_UN)
	closeErr := s.file.Close()
	s.file = nil
	<-s.sem

	if flockErr != nil {
		return corrupt(s.lockPath(), "funlock", flockErr)
	}
	return closeErr
}

// Load reads the claim map from the state file. A missing file yields an
// empty map; any other read or decode failure is fatal.
func (s *FileStore) Load() (map[int]*Claim, error) {
	data, err := os.ReadFile(s.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[int]*Claim), nil
		}
		return nil, corrupt(s.statePath(), "read ledger state", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, corrupt(s.statePath(), "unmarshal ledger state", err)
	}
	if state.Claims == nil {
		state.Claims = make(map[int]*Claim)
	}
	return state.Claims, nil
}

// Save writes the claim map atomically via temp-file-and-rename.
func (s *FileStore) Save(claims map[int]*Claim) error {
	data, err := json.MarshalIndent(persistedState{Claims: claims}, "", "  ")
	if err != nil {
		return corrupt(s.statePath(), "marshal ledger state", err)
	}

	tmp := s.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return corrupt(s.statePath(), "write temp file", err)
	}
	if err := os.Rename(tmp, s.statePath()); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return corrupt(s.statePath(), "rename temp file", err)
	}
	return nil
}

// Close releases the lock if held.
func (s *FileStore) Close() error {
	return s.Unlock()
}

func (s *FileStore) statePath() string {
	return filepath.Join(s.dir, stateFileName)
}

func (s *FileStore) lockPath() string {
	return filepath.Join(s.dir, lockFileName)
}
