package mapstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/pose"
)

func sampleMap() *mapping.Map {
	m := mapping.NewMap("kitchen_run")
	m.Created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.Points = []mapping.Point{{X: 1, Y: 2}, {X: 3, Y: 4, Z: 1}}
	m.Trajectory = []pose.Pose{{X: 0, Y: 0}, {X: 1, Y: 1, Orientation: 45}}
	m.Locations = map[string]mapping.Location{
		"kitchen": {X: 100, Y: 100, Name: "Kitchen"},
	}
	return m
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	saved := sampleMap()
	require.NoError(t, store.Save(ctx, saved.Name, saved))

	loaded, err := store.Load(ctx, "kitchen_run")
	require.NoError(t, err)
	assert.Equal(t, saved.Name, loaded.Name)
	assert.True(t, saved.Created.Equal(loaded.Created))
	assert.Equal(t, saved.Points, loaded.Points)
	assert.Equal(t, saved.Trajectory, loaded.Trajectory)
	assert.Equal(t, saved.Locations, loaded.Locations)

	// Names with the extension resolve to the same entry.
	withExt, err := store.Load(ctx, "kitchen_run.json")
	require.NoError(t, err)
	assert.Equal(t, saved.Name, withExt.Name)
}

func TestFileStoreList(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save(ctx, "a", sampleMap()))
	require.NoError(t, store.Save(ctx, "b room", sampleMap()))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b_room"}, names)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "gone", sampleMap()))
	require.NoError(t, store.Delete(ctx, "gone"))

	err = store.Delete(ctx, "gone")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestFileStoreRejectsEmpty(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	err = store.Save(context.Background(), "", sampleMap())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}
