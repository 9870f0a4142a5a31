package draft

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	backends := map[string]func(t *testing.T) Storage{
		"memory": func(t *testing.T) Storage { return NewMemoryStorage() },
		"sqlite": func(t *testing.T) Storage {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "draft.db"))
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			_, ok, err := s.Get(ctx, FormDataKey)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, FormDataKey, []byte(`{"a":1}`)))
			require.NoError(t, s.Put(ctx, FormDataKey, []byte(`{"a":2}`)))

			got, ok, err := s.Get(ctx, FormDataKey)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"a":2}`, string(got))

			require.NoError(t, s.Delete(ctx, FormDataKey))
			require.NoError(t, s.Delete(ctx, FormDataKey))
			_, ok, err = s.Get(ctx, FormDataKey)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "draft.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, InputsKey, []byte(`{"newIngredient":"egg"}`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get(ctx, InputsKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"newIngredient":"egg"}`, string(got))
}

func TestOpenSQLite_BadPath(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "dir", "draft.db"))
	assert.Error(t, err)
}
