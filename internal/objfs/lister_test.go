package objfs

import (
	"context"
	"testing"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectKeys(objs []filestore.ObjectInfo) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Key)
	}
	return out
}

func TestListDirObjects_Pagination(t *testing.T) {
	a, c := newTestAdapter(t, nil)
	c.pages = []*filestore.ListPage{
		{Objects: []filestore.ObjectInfo{{Key: "d/1"}, {Key: "d/2"}}, NextMarker: "d/2", IsTruncated: true},
		{Objects: []filestore.ObjectInfo{{Key: "d/3"}}, CommonPrefixes: []string{"d/sub/"}, NextMarker: "d/sub/", IsTruncated: true},
		{Objects: []filestore.ObjectInfo{{Key: "d/4"}}},
	}

	listing, err := a.ListDirObjects(context.Background(), "d/", false)
	require.NoError(t, err)

	assert.Equal(t, 3, c.called("ListObjects"))
	assert.Equal(t, []string{"d/1", "d/2", "d/3", "d/4"}, objectKeys(listing.Objects))
	assert.Equal(t, []string{"d/sub/"}, listing.Prefixes)

	markers := []string{}
	for _, o := range c.listOpts {
		markers = append(markers, o.Marker)
		assert.Equal(t, "d/", o.Prefix)
		assert.Equal(t, "/", o.Delimiter)
		assert.Equal(t, 1000, o.MaxKeys)
	}
	assert.Equal(t, []string{"", "d/2", "d/sub/"}, markers)

	for _, o := range listing.Objects {
		assert.Equal(t, "d/", o.Prefix)
	}
}

func TestListDirObjects_Recursive(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	writeString(t, a, "a/x", "1", noConfig)
	writeString(t, a, "a/b/y", "2", noConfig)
	writeString(t, a, "other/z", "3", noConfig)

	flat, err := a.ListDirObjects(context.Background(), "a/", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x"}, objectKeys(flat.Objects))
	assert.Equal(t, []string{"a/b/"}, flat.Prefixes)

	deep, err := a.ListDirObjects(context.Background(), "a/", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/x", "a/b/y"}, objectKeys(deep.Objects))
}

func TestListDirObjects_ParallelKeepsOrder(t *testing.T) {
	keys := []string{
		"t/0", "t/a/1", "t/a/deep/2", "t/a/deep/er/3", "t/b/4", "t/c/5", "t/c/x/6", "t/d/7", "t/e/8",
	}

	listWith := func(concurrency int) []string {
		a, _ := newTestAdapter(t, map[string]any{"list_concurrency": concurrency})
		for _, k := range keys {
			writeString(t, a, k, "v", noConfig)
		}
		listing, err := a.ListDirObjects(context.Background(), "t/", true)
		require.NoError(t, err)
		return objectKeys(listing.Objects)
	}

	sequential := listWith(1)
	assert.ElementsMatch(t, keys, sequential)
	for i := 0; i < 5; i++ {
		assert.Equal(t, sequential, listWith(4))
	}
}

func TestListDirObjects_PropagatesError(t *testing.T) {
	a, c := newTestAdapter(t, nil)
	c.listErr = errs.New(errs.ErrKindConnectionFailed, "network down")

	_, err := a.ListDirObjects(context.Background(), "", true)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.False(t, errs.IsOperationFailed(err), "listing errors are not turned into sentinels")
}
