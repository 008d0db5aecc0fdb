package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/phoenixfitness/phoenix-stack/common/config"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// backends returns a fresh store per backend, all scoped to the same profile name.
func backends() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "credentials.yaml"), "default")
		},
		"bolt": func(t *testing.T) Store {
			s, err := NewBoltStoreFromFile(filepath.Join(t.TempDir(), "credentials.db"), "default", nil)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"redis": func(t *testing.T) Store {
			_, client := setupTestRedis(t)
			return NewRedisStore(client, "phoenix", "default")
		},
	}
}

func TestStore_Contract(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			cred, err := s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, cred.IsZero(), "empty store must load a zero credential")

			want := Credential{AccessToken: "access-1", RefreshToken: "refresh-1"}
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// overwrite without refresh token drops the old refresh token
			require.NoError(t, s.Save(ctx, Credential{AccessToken: "access-2"}))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, Credential{AccessToken: "access-2"}, got)

			require.NoError(t, s.Clear(ctx))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, got.IsZero())

			// clearing twice is fine
			require.NoError(t, s.Clear(ctx))

			assert.ErrorIs(t, s.Save(ctx, Credential{RefreshToken: "orphan"}), ErrEmptyCredential)
		})
	}
}

func TestStore_ConcurrentSaves(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.Save(ctx, Credential{AccessToken: "same", RefreshToken: "pair"}))
				}()
			}
			wg.Wait()

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, Credential{AccessToken: "same", RefreshToken: "pair"}, got)
		})
	}
}

func TestFileStore_ProfilesAndPermissions(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "credentials.yaml")

	work := NewFileStore(path, "work")
	home := NewFileStore(path, "home")

	require.NoError(t, work.Save(ctx, Credential{AccessToken: "w", RefreshToken: "wr"}))
	require.NoError(t, home.Save(ctx, Credential{AccessToken: "h"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	require.NoError(t, work.Clear(ctx))

	got, err := home.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "h", got.AccessToken, "clearing one profile must not touch another")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "token: h")
	assert.NotContains(t, string(raw), "password")
	assert.Equal(t, path, home.Path())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [not a map"), 0600))

	_, err := NewFileStore(path, "default").Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStore_CorruptFileCanBeClearedAndRewritten(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [not a map"), 0600))
	s := NewFileStore(path, "default")

	require.NoError(t, s.Clear(ctx))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	require.NoError(t, s.Save(ctx, Credential{AccessToken: "t1", RefreshToken: "r1"}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.AccessToken)
}

func TestFileStore_SaveOverCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [not a map"), 0600))
	s := NewFileStore(path, "default")

	require.NoError(t, s.Save(ctx, Credential{AccessToken: "t1"}))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.AccessToken)
}

func TestBoltStore_SharedDB(t *testing.T) {
	ctx := context.Background()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "shared.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	a := NewBoltStore(db, "a")
	b := NewBoltStore(db, "b")

	require.NoError(t, a.Save(ctx, Credential{AccessToken: "ta"}))
	require.NoError(t, b.Save(ctx, Credential{AccessToken: "tb"}))
	require.NoError(t, a.Clear(ctx))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tb", got.AccessToken)

	// not owned, so the shared db stays open
	require.NoError(t, a.Close())
	_, err = b.Load(ctx)
	assert.NoError(t, err)
}

func TestRedisStore_Keys(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)

	s := NewRedisStore(client, "studio", "default")
	require.NoError(t, s.Save(ctx, Credential{AccessToken: "tok", RefreshToken: "ref"}))

	v, err := mr.Get("studio:default:token")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	v, err = mr.Get("studio:default:refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "ref", v)

	require.NoError(t, s.Clear(ctx))
	assert.False(t, mr.Exists("studio:default:token"))
	assert.False(t, mr.Exists("studio:default:refresh_token"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	s := NewRedisStore(client, "", "default")
	mr.Close()

	_, err = s.Load(context.Background())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StoreConfig{Backend: config.BackendMemory}},
		{name: "file", cfg: config.StoreConfig{Backend: config.BackendFile, Path: filepath.Join(dir, "c.yaml")}},
		{name: "default backend", cfg: config.StoreConfig{Path: filepath.Join(dir, "d.yaml")}},
		{name: "bolt", cfg: config.StoreConfig{Backend: config.BackendBolt, Path: filepath.Join(dir, "c.db")}},
		{name: "redis", cfg: config.StoreConfig{Backend: config.BackendRedis, RedisURL: "redis://" + mr.Addr()}},
		{name: "bad redis url", cfg: config.StoreConfig{Backend: config.BackendRedis, RedisURL: "://nope"}, wantErr: true},
		{name: "unknown", cfg: config.StoreConfig{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()

			ctx := context.Background()
			require.NoError(t, s.Save(ctx, Credential{AccessToken: "x"}))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "x", got.AccessToken)
		})
	}
}
