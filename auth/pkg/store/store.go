// Package store persists the client credential between process runs.
//
// Only the access token and the refresh token are ever written. Every backend
// stores them under the keys "token" and "refresh_token" of a named profile.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/phoenixfitness/phoenix-stack/common/config"
	"github.com/phoenixfitness/phoenix-stack/common/metrics"
)

const (
	KeyToken        = "token"
	KeyRefreshToken = "refresh_token"
)

var (
	ErrEmptyCredential = errors.New("store: credential has no access token")
	// ErrCorrupt means the stored data exists but cannot be decoded. Clear and
	// Save still succeed on a corrupt store.
	ErrCorrupt = errors.New("store: stored credential is corrupt")
)

// Credential is the persisted token pair.
type Credential struct {
	AccessToken  string `yaml:"token" json:"token"`
	RefreshToken string `yaml:"refresh_token,omitempty" json:"refresh_token,omitempty"`
}

// IsZero reports whether no access token is present.
func (c Credential) IsZero() bool {
	return c.AccessToken == ""
}

// Store is a keyed credential store. Load returns a zero Credential when
// nothing is stored. Implementations are safe for concurrent use.
type Store interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	profile := cfg.Profile
	if profile == "" {
		profile = "default"
	}

	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		s = NewMemoryStore()
	case config.BackendFile, "":
		s = NewFileStore(cfg.Path, profile)
	case config.BackendBolt:
		s, err = NewBoltStoreFromFile(cfg.Path, profile, nil)
	case config.BackendRedis:
		s, err = NewRedisStoreFromURL(cfg.RedisURL, cfg.KeyPrefix, profile)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	backend := cfg.Backend
	if backend == "" {
		backend = config.BackendFile
	}
	return Instrument(s, backend), nil
}

// Instrument wraps s so every operation is counted per backend.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

type instrumented struct {
	Store
	backend string
}

func (i *instrumented) Load(ctx context.Context) (Credential, error) {
	cred, err := i.Store.Load(ctx)
	i.observe("load", err)
	return cred, err
}

func (i *instrumented) Save(ctx context.Context, cred Credential) error {
	err := i.Store.Save(ctx, cred)
	i.observe("save", err)
	return err
}

func (i *instrumented) Clear(ctx context.Context) error {
	err := i.Store.Clear(ctx)
	i.observe("clear", err)
	return err
}

func (i *instrumented) observe(op string, err error) {
	metrics.StoreOperations.WithLabelValues(i.backend, op, metrics.Result(err)).Inc()
}
