package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/model"
)

func TestDiff(t *testing.T) {
	remote := history.Manifest{
		"same":    {Version: 2, Operation: model.Updated},
		"ahead":   {Version: 3, Operation: model.Updated},
		"new":     {Version: 1, Operation: model.Added},
		"deleted": {Version: 4, Operation: model.Deleted},
	}
	client := history.Manifest{
		"same":    {Version: 2, Operation: model.Updated},
		"ahead":   {Version: 1, Operation: model.Added},
		"deleted": {Version: 3, Operation: model.Updated},
		"local":   {Version: 1, Operation: model.Added},
	}

	assert.Equal(t, map[string]model.FileOperation{
		"ahead":   model.Updated,
		"new":     model.Added,
		"deleted": model.Deleted,
	}, Diff(remote, client))
	assert.Equal(t, []string{"local"}, ClientOnly(remote, client))

	assert.Empty(t, Diff(remote, remote))
	assert.Empty(t, ClientOnly(remote, remote))
}

func TestDiffEmptyClient(t *testing.T) {
	remote := history.Manifest{
		"b": {Version: 1, Operation: model.Added},
		"a": {Version: 2, Operation: model.Deleted},
	}
	assert.Len(t, Diff(remote, nil), 2)
	assert.Empty(t, ClientOnly(remote, nil))
	assert.Equal(t, []string{"a", "b"}, ClientOnly(nil, remote))
}
