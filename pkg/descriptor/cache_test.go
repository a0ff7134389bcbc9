package descriptor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestCachedCodec_HitReturnsPristineClone(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "inventory.binpb", map[string]string{
		"inventory/v1/inventory.proto": inventoryProto,
	})

	codec := NewCachedCodec(NewProtoCodec(), 8, time.Minute)

	m1, err := codec.Decode(path)
	require.NoError(t, err)
	m1.Files.GetFile()[0].Package = proto.String("mutated")

	m2, err := codec.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, "inventory.v1", m2.Files.GetFile()[0].GetPackage(),
		"mutations on a returned module must not leak into the cache")

	stats := codec.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCachedCodec_ChangedFileMisses(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "api.binpb", map[string]string{
		"api/v1/api.proto": `syntax = "proto3"; package api.v1; message Ping {}`,
	})

	codec := NewCachedCodec(NewProtoCodec(), 8, time.Minute)

	m1, err := codec.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, "api.v1", m1.Files.GetFile()[0].GetPackage())

	// Rewrite the file with different content (and a different size, so the
	// key changes even when mtime granularity is coarse).
	writeModuleFile(t, dir, "api.binpb", map[string]string{
		"api/v2/api.proto": `syntax = "proto3"; package api.v2; message Ping { string payload = 1; }`,
	})

	m2, err := codec.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, "api.v2", m2.Files.GetFile()[0].GetPackage())

	stats := codec.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestCachedCodec_MissingFileFallsThrough(t *testing.T) {
	codec := NewCachedCodec(NewProtoCodec(), 8, time.Minute)

	_, err := codec.Decode(filepath.Join(t.TempDir(), "absent.binpb"))
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.Zero(t, codec.Stats().Hits)
	assert.Zero(t, codec.Stats().Misses)
}

func TestCachedCodec_EncodePassesThrough(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "inventory.binpb", map[string]string{
		"inventory/v1/inventory.proto": inventoryProto,
	})

	codec := NewCachedCodec(NewProtoCodec(), 8, time.Minute)
	m, err := codec.Decode(path)
	require.NoError(t, err)

	data, err := codec.Encode(m)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestCachedCodec_Purge(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "inventory.binpb", map[string]string{
		"inventory/v1/inventory.proto": inventoryProto,
	})

	codec := NewCachedCodec(NewProtoCodec(), 8, 0)
	_, err := codec.Decode(path)
	require.NoError(t, err)
	require.Equal(t, 1, codec.Stats().Entries)

	codec.Purge()
	assert.Equal(t, 0, codec.Stats().Entries)

	_, err = codec.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), codec.Stats().Misses)
}

func TestCachedCodec_StatResolution(t *testing.T) {
	// Same path decoded twice with no change in between is exactly one miss.
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "inventory.binpb", map[string]string{
		"inventory/v1/inventory.proto": inventoryProto,
	})
	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, fi.Size())

	codec := NewCachedCodec(NewProtoCodec(), 8, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := codec.Decode(path)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), codec.Stats().Misses)
	assert.Equal(t, int64(2), codec.Stats().Hits)
}
