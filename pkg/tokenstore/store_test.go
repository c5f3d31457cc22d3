package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()

	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "tokens.json"))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return NewRedisStore(rdb, "test")
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("empty store reads empty", func(t *testing.T) {
				s := open(t)
				require.Empty(t, s.Get())
				require.Empty(t, s.GetRefresh())
			})

			t.Run("set then get round-trips", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Set("access-1"))
				require.NoError(t, s.SetRefresh("refresh-1"))
				require.Equal(t, "access-1", s.Get())
				require.Equal(t, "refresh-1", s.GetRefresh())
			})

			t.Run("set pair keeps refresh when none supplied", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.SetPair("a1", "r1"))
				require.NoError(t, s.SetPair("a2", ""))
				require.Equal(t, "a2", s.Get())
				require.Equal(t, "r1", s.GetRefresh())
			})

			t.Run("replace overwrites both keys", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.SetPair("a1", "r1"))
				require.NoError(t, s.Replace("a2", "r2"))
				require.Equal(t, "a2", s.Get())
				require.Equal(t, "r2", s.GetRefresh())

				require.NoError(t, s.Replace("a3", ""))
				require.Equal(t, "a3", s.Get())
				require.Empty(t, s.GetRefresh())
			})

			t.Run("clear removes both keys", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.SetPair("a1", "r1"))
				require.NoError(t, s.Clear())
				require.Empty(t, s.Get())
				require.Empty(t, s.GetRefresh())
			})

			t.Run("clear is idempotent", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Clear())
				require.NoError(t, s.Clear())
			})
		})
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetPair("a1", "r1"))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	require.Equal(t, "a1", second.Get())
	require.Equal(t, "r1", second.GetRefresh())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.Empty(t, s.Get())
	require.Empty(t, s.GetRefresh())

	require.NoError(t, s.Set("a1"))
	require.Equal(t, "a1", s.Get())
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestRedisStoreUsesPrefixedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, "svc")
	require.NoError(t, s.SetPair("a1", "r1"))

	got, err := mr.Get("svc:token")
	require.NoError(t, err)
	require.Equal(t, "a1", got)
	got, err = mr.Get("svc:refreshToken")
	require.NoError(t, err)
	require.Equal(t, "r1", got)

	require.NoError(t, s.Clear())
	require.False(t, mr.Exists("svc:token"))
	require.False(t, mr.Exists("svc:refreshToken"))
}

func TestRedisStoreUnavailableReadsEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, "")
	mr.Close()

	require.Empty(t, s.Get())
	require.Error(t, s.Set("a1"))
}
