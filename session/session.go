// Package session persists device-scoped flags that survive restarts and are
// independent of both user identity and the remote store.
package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

const onboardingCompleteKey = "onboarding_complete"

// Manager stores boolean flags in a small JSON file.
type Manager struct {
	path string

	mu    sync.Mutex
	flags map[string]bool
}

// NewManager loads the flag file at path, creating state lazily if the file
// does not exist yet.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path, flags: map[string]bool{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if err := sonic.Unmarshal(data, &m.flags); err != nil {
		return nil, err
	}
	return m, nil
}

// OnboardingComplete reports whether the onboarding walkthrough has been
// finished on this device.
func (m *Manager) OnboardingComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[onboardingCompleteKey]
}

// SetOnboardingComplete records the onboarding walkthrough as finished.
func (m *Manager) SetOnboardingComplete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[onboardingCompleteKey] = true
	return m.save()
}

// save writes the flags atomically via a temp file rename.
func (m *Manager) save() error {
	data, err := sonic.Marshal(m.flags)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
