package memory

import (
	"bytes"
	"context"
	"testing"

	"designcomposer/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The memory store keeps package-level state, so every test works with its
// own user IDs.

func TestSceneRoundtrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	scene := core.NewScene("mug.png", 600, 600)
	scene.UserID = "user-roundtrip"
	scene.Name = "Summer drop"
	scene.AddTextLayer()
	scene.AddLogoLayer([]byte{1, 2, 3})

	require.NoError(t, store.Save(ctx, scene))

	got, err := store.Get(ctx, "user-roundtrip", scene.ID)
	require.NoError(t, err)
	assert.Equal(t, scene.ID, got.ID)
	assert.Equal(t, "Summer drop", got.Name)
	assert.Len(t, got.TextLayers, 1)
	assert.Len(t, got.LogoLayers, 1)
	assert.False(t, got.CreatedAt.IsZero())

	// The store hands out copies; mutating one must not leak into the other.
	got.TextLayers[0].Content = "mutated"
	again, err := store.Get(ctx, "user-roundtrip", scene.ID)
	require.NoError(t, err)
	assert.Equal(t, "Your text", again.TextLayers[0].Content)
}

func TestSceneOwnershipIsScoped(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	scene := core.NewScene("mug.png", 600, 600)
	scene.UserID = "user-owner"
	require.NoError(t, store.Save(ctx, scene))

	_, err := store.Get(ctx, "user-intruder", scene.ID)
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "user-intruder", scene.ID))
}

func TestListReturnsMetadataOnly(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	scene := core.NewScene("mug.png", 600, 600)
	scene.UserID = "user-list"
	scene.AddTextLayer()
	require.NoError(t, store.Save(ctx, scene))

	scenes, err := store.List(ctx, "user-list")
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, scene.ID, scenes[0].ID)
	assert.Empty(t, scenes[0].TextLayers)

	empty, err := store.List(ctx, "user-without-scenes")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveKeepsCreationTime(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	scene := core.NewScene("mug.png", 600, 600)
	scene.UserID = "user-times"
	require.NoError(t, store.Save(ctx, scene))
	created := scene.CreatedAt

	require.NoError(t, store.Save(ctx, scene))
	got, err := store.Get(ctx, "user-times", scene.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.False(t, got.UpdatedAt.Before(created))
}

func TestSaveValidatesIdentity(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	scene := core.NewScene("mug.png", 600, 600)
	assert.Error(t, store.Save(ctx, scene), "a scene without an owner is rejected")

	scene.UserID = "user-noid"
	scene.ID = ""
	assert.Error(t, store.Save(ctx, scene))
}

func TestDeleteScene(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	scene := core.NewScene("mug.png", 600, 600)
	scene.UserID = "user-delete"
	require.NoError(t, store.Save(ctx, scene))

	require.NoError(t, store.Delete(ctx, "user-delete", scene.ID))
	_, err := store.Get(ctx, "user-delete", scene.ID)
	assert.Error(t, err)
}

func TestArtifactRoundtrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	artifact := &core.ExportArtifact{Data: *bytes.NewBufferString("png-bytes")}
	id, err := store.Create(ctx, artifact)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.FindID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", got.Data.String())

	_, err = store.FindID(ctx, "no-such-artifact")
	assert.Error(t, err)
}
