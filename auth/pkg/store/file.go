package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileData is the on-disk layout of a FileStore.
type fileData struct {
	Profiles map[string]*Credential `yaml:"profiles"`
}

// FileStore keeps credentials for several profiles in one YAML file written
// with 0600 permissions inside a 0700 directory.
type FileStore struct {
	mu      sync.Mutex
	path    string
	profile string
}

func NewFileStore(path, profile string) *FileStore {
	return &FileStore{path: path, profile: profile}
}

// Path returns the file backing the store.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(_ context.Context) (Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return Credential{}, err
	}
	if cred, ok := data.Profiles[f.profile]; ok && cred != nil {
		return *cred, nil
	}
	return Credential{}, nil
}

func (f *FileStore) Save(_ context.Context, cred Credential) error {
	if cred.IsZero() {
		return ErrEmptyCredential
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readOrReset()
	if err != nil {
		return err
	}
	c := cred
	data.Profiles[f.profile] = &c
	return f.write(data)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		// nothing in the file can be trusted; start over
		return f.write(&fileData{Profiles: make(map[string]*Credential)})
	}
	if err != nil {
		return err
	}
	if _, ok := data.Profiles[f.profile]; !ok {
		return nil
	}
	delete(data.Profiles, f.profile)
	return f.write(data)
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) read() (*fileData, error) {
	data := &fileData{Profiles: make(map[string]*Credential)}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	if err := yaml.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCorrupt, f.path, err)
	}
	if data.Profiles == nil {
		data.Profiles = make(map[string]*Credential)
	}
	return data, nil
}

// readOrReset is read, but a corrupt file counts as empty.
func (f *FileStore) readOrReset() (*fileData, error) {
	data, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		return &fileData{Profiles: make(map[string]*Credential)}, nil
	}
	return data, err
}

// write replaces the file atomically so a crash never leaves half a credential.
func (f *FileStore) write(data *fileData) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	raw, err := yaml.Marshal(data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}
