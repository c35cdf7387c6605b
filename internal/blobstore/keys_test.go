package blobstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "users/a@example.com.json", UserKey("a@example.com"))

	meta := VideoMetaKey("Springfield High", "MATH101", "a@example.com", "Fractions")
	data := VideoDataKey("Springfield High", "MATH101", "a@example.com", "Fractions")
	require.Equal(t, "videos/Springfield High/MATH101/a@example.com/Fractions.json", meta)
	require.Equal(t, "videos/Springfield High/MATH101/a@example.com/Fractions.mp4", data)

	require.Equal(t, data, DataKeyForMeta(meta))
	require.True(t, IsMetaKey(meta))
	require.False(t, IsMetaKey(data))

	require.Equal(t, "videos/Springfield High/", SchoolPrefix("Springfield High"))
	require.Equal(t, "videos/Springfield High/MATH101/a@example.com/", ClassPrefix("Springfield High", "MATH101", "a@example.com"))
}
