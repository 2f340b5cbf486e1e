package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTags_RoundTrip(t *testing.T) {
	tags := Tags{"go", "backend", "forum"}

	value, err := tags.Value()
	require.NoError(t, err)
	assert.Equal(t, "go,backend,forum", value)

	var scanned Tags
	require.NoError(t, scanned.Scan("go,backend,forum"))
	assert.Equal(t, tags, scanned)
}

func TestTags_ScanEmptyAndNil(t *testing.T) {
	var tags Tags
	require.NoError(t, tags.Scan(""))
	assert.Nil(t, tags)

	require.NoError(t, tags.Scan(nil))
	assert.Nil(t, tags)

	require.NoError(t, tags.Scan([]byte("a,b")))
	assert.Equal(t, Tags{"a", "b"}, tags)

	assert.Error(t, tags.Scan(42))
}
