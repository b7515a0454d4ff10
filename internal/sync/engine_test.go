package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/model"
)

var testNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func newEngine(t *testing.T, backend history.Backend) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Backend = backend
	e, err := Open(t.TempDir(), "pkg", opts)
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func runSync(t *testing.T, e *Engine, ledger string, files ...model.SyncRequestFile) *model.SyncResponse {
	t.Helper()
	resp, err := e.Sync(context.Background(), &model.SyncRequest{
		PackageName: "pkg",
		Files:       files,
		History:     ledger,
	})
	require.NoError(t, err)
	return resp
}

func responseFile(resp *model.SyncResponse, p string) (model.SyncResponseFile, bool) {
	for _, f := range resp.Files {
		if f.Path == p {
			return f, true
		}
	}
	return model.SyncResponseFile{}, false
}

func manifestOf(t *testing.T, ledger string) history.Manifest {
	t.Helper()
	entries, err := history.Parse(ledger)
	require.NoError(t, err)
	return history.DeriveManifest(entries)
}

func TestEngineTwoClientScenario(t *testing.T) {
	for _, backend := range []history.Backend{history.BackendFile, history.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			e := newEngine(t, backend)

			seed := runSync(t, e, "", model.NewAddRequest("p", []byte("a\nb\nc\n"), nil))
			require.Equal(t, int32(1), manifestOf(t, seed.Latest)["p"].Version)

			// both clients start from the seeded ledger at p@1
			ledgerA := seed.Latest
			ledgerB := seed.Latest

			respA := runSync(t, e, ledgerA, model.NewUpdateRequest("p", []byte("a\nB\nc\n"), 1, nil))
			fA, ok := responseFile(respA, "p")
			require.True(t, ok)
			assert.Equal(t, model.NoConflict, fA.Status)
			assert.Equal(t, int32(2), manifestOf(t, respA.Latest)["p"].Version)
			ledgerA = respA.Latest

			respB := runSync(t, e, ledgerB, model.NewUpdateRequest("p", []byte("a\nb\nC\n"), 1, nil))
			fB, ok := responseFile(respB, "p")
			require.True(t, ok)
			assert.Equal(t, model.NoConflict, fB.Status)
			assert.Equal(t, "a\nB\nC\n", string(fB.Content))
			assert.Equal(t, int32(3), manifestOf(t, respB.Latest)["p"].Version)

			// A made no request for p but must learn about v3
			again := runSync(t, e, ledgerA)
			f, ok := responseFile(again, "p")
			require.True(t, ok, "remote change must be reported")
			assert.Equal(t, model.NoConflict, f.Status)
			assert.Equal(t, "a\nB\nC\n", string(f.Content))
			require.Len(t, again.DotHistory, 1)
			assert.Equal(t, "p.3", again.DotHistory[0].Path)
			assert.Equal(t, "a\nB\nC\n", string(again.DotHistory[0].Content))
		})
	}
}

func TestEngineAddAddLeavesRemoteUntouched(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	seed := runSync(t, e, "", model.NewAddRequest("p", []byte("remote"), nil))

	resp := runSync(t, e, "", model.NewAddRequest("p", []byte("C1"), nil))
	f, ok := responseFile(resp, "p")
	require.True(t, ok)
	assert.Equal(t, model.CloneAddedRemoteAdded, f.Status)
	assert.Equal(t, "C1", string(f.Content))
	assert.Equal(t, seed.Latest, resp.Latest, "log must not grow")

	got, err := e.tree.Read(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(got))
}

func TestEngineStaleDelete(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	resp := runSync(t, e, "", model.NewAddRequest("p", []byte("v1"), nil))
	var atV3 string
	for v := int32(1); v < 5; v++ {
		resp = runSync(t, e, resp.Latest, model.NewUpdateRequest("p", []byte("v"+string(rune('1'+v))), v, nil))
		if v == 2 {
			atV3 = resp.Latest
		}
	}
	require.Equal(t, int32(5), manifestOf(t, resp.Latest)["p"].Version)

	del := runSync(t, e, atV3, model.NewDeleteRequest("p", 3, nil))
	f, ok := responseFile(del, "p")
	require.True(t, ok)
	assert.Equal(t, model.CloneDeletedRemoteEdited, f.Status)
	assert.Equal(t, "v5", string(f.Content))
	assert.Equal(t, resp.Latest, del.Latest)
}

func TestEngineIdempotentDelete(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	resp := runSync(t, e, "", model.NewAddRequest("p", []byte("x"), nil))
	resp = runSync(t, e, resp.Latest, model.NewDeleteRequest("p", 1, nil))
	f, ok := responseFile(resp, "p")
	require.True(t, ok)
	assert.Equal(t, model.NoConflict, f.Status)
	assert.True(t, manifestOf(t, resp.Latest)["p"].IsDeleted())

	for range 2 {
		again := runSync(t, e, resp.Latest, model.NewDeleteRequest("p", 1, nil))
		_, ok := responseFile(again, "p")
		assert.False(t, ok, "repeated delete must be omitted")
		assert.Equal(t, resp.Latest, again.Latest, "repeated delete must not append")
	}
}

func TestEngineReaddAfterDeleteContinuesVersions(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	resp := runSync(t, e, "", model.NewAddRequest("p", []byte("x"), nil))
	resp = runSync(t, e, resp.Latest, model.NewDeleteRequest("p", 1, nil))
	resp = runSync(t, e, resp.Latest, model.NewAddRequest("p", []byte("y"), nil))

	f, ok := responseFile(resp, "p")
	require.True(t, ok)
	assert.Equal(t, model.NoConflict, f.Status)
	edit := manifestOf(t, resp.Latest)["p"]
	assert.Equal(t, int32(3), edit.Version)
	assert.Equal(t, model.Added, edit.Operation)
}

func TestEngineReportsRemoteDeletesAndAdds(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	base := runSync(t, e, "",
		model.NewAddRequest("keep", []byte("k"), nil),
		model.NewAddRequest("drop", []byte("d"), nil),
	)
	other := runSync(t, e, base.Latest,
		model.NewDeleteRequest("drop", 1, nil),
		model.NewAddRequest("fresh", []byte("f"), nil),
	)
	require.NotEqual(t, base.Latest, other.Latest)

	resp := runSync(t, e, base.Latest)
	paths := make([]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"drop", "fresh"}, paths, "files are sorted and limited to unseen changes")

	drop, _ := responseFile(resp, "drop")
	assert.Equal(t, model.ActionDelete, drop.Action)
	assert.Empty(t, drop.Content)
	fresh, _ := responseFile(resp, "fresh")
	assert.Equal(t, model.ActionAdd, fresh.Action)
	assert.Equal(t, "f", string(fresh.Content))
}

func TestEngineClientOnlyPathsAreDeleted(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	clientLedger := history.Serialize([]history.Entry{
		{Path: "phantom", Edit: model.FileEdit{Version: 1, Operation: model.Added}},
	})

	resp := runSync(t, e, clientLedger)
	f, ok := responseFile(resp, "phantom")
	require.True(t, ok)
	assert.Equal(t, model.ActionDelete, f.Action)
	assert.Equal(t, model.NoConflict, f.Status)
}

func TestEngineRecordsAuthorAndSrcCR(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	srcCR := 42
	resp, err := e.Sync(context.Background(), &model.SyncRequest{
		PackageName: "pkg",
		Files:       []model.SyncRequestFile{model.NewAddRequest("p", []byte("x"), &srcCR)},
		Author:      "ana",
		Message:     "first",
	})
	require.NoError(t, err)

	edit := manifestOf(t, resp.Latest)["p"]
	assert.Equal(t, "ana", edit.Author)
	assert.Equal(t, "first", edit.Message)
	require.NotNil(t, edit.SrcCR)
	assert.Equal(t, 42, *edit.SrcCR)
	assert.True(t, edit.Timestamp.Equal(testNow))
}

func TestEngineBatchIsAllOrNothing(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	ctx := context.Background()
	seed := runSync(t, e, "", model.NewAddRequest("keep", []byte("k1"), nil))

	// block the version file of b so the batch fails after a's was stored
	require.NoError(t, os.MkdirAll(filepath.Join(e.versions.Root(), "b.1"), 0o750))

	_, err := e.Sync(ctx, &model.SyncRequest{
		PackageName: "pkg",
		History:     seed.Latest,
		Files: []model.SyncRequestFile{
			model.NewAddRequest("a", []byte("A"), nil),
			model.NewAddRequest("b", []byte("B"), nil),
			model.NewUpdateRequest("keep", []byte("k2"), 1, nil),
		},
	})
	require.Error(t, err)

	m, err := e.Manifest(ctx)
	require.NoError(t, err)
	assert.Len(t, m, 1, "nothing appended")

	_, err = e.versions.Read(ctx, "a", 1)
	assert.Error(t, err)
	exists, err := e.tree.Exists("a")
	require.NoError(t, err)
	assert.False(t, exists)
	got, err := e.tree.Read(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "k1", string(got))
}

func TestEngineConcurrentSyncsSerializeAppends(t *testing.T) {
	const clients = 40
	for _, backend := range []history.Backend{history.BackendFile, history.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			e := newEngine(t, backend)
			ctx := context.Background()
			seed := runSync(t, e, "", model.NewAddRequest("p.md", []byte("a\nb\nc\n"), nil))

			var g errgroup.Group
			for i := range clients {
				g.Go(func() error {
					resp, err := e.Sync(ctx, &model.SyncRequest{
						PackageName: "pkg",
						History:     seed.Latest,
						Files: []model.SyncRequestFile{
							model.NewUpdateRequest("p.md", []byte("a\nB\nc\n"), 1, nil),
							model.NewAddRequest(fmt.Sprintf("notes/%02d.md", i), []byte("note\n"), nil),
						},
					})
					if err != nil {
						return err
					}
					if conflicted := resp.Conflicts(); len(conflicted) > 0 {
						return fmt.Errorf("client %d: %s conflicted", i, conflicted[0].Path)
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			entries, err := e.log.Load(ctx)
			require.NoError(t, err)
			require.NoError(t, history.Validate(entries))
			assert.Len(t, entries, clients+2)

			manifest := history.DeriveManifest(entries)
			assert.Equal(t, int32(2), manifest["p.md"].Version)
			for i := range clients {
				assert.Equal(t, int32(1), manifest[fmt.Sprintf("notes/%02d.md", i)].Version)
			}
			got, err := e.tree.Read(ctx, "p.md")
			require.NoError(t, err)
			assert.Equal(t, "a\nB\nc\n", string(got))
		})
	}
}

func TestEngineRejectsMalformedRequests(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	tests := map[string]*model.SyncRequest{
		"no package": {Files: []model.SyncRequestFile{model.NewAddRequest("p", nil, nil)}},
		"bad path":   {PackageName: "pkg", Files: []model.SyncRequestFile{model.NewAddRequest("../p", nil, nil)}},
		"bad ledger": {PackageName: "pkg", History: "version: 1\n"},
		"metadata path": {PackageName: "pkg", Files: []model.SyncRequestFile{
			model.NewAddRequest("ok.md", []byte("ok"), nil),
			model.NewAddRequest(".docsync/history/p.1.md", []byte("forged\n"), nil),
		}},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := e.Sync(context.Background(), req)
			assert.ErrorIs(t, err, model.ErrInvalidRequest)
		})
	}

	manifest, err := e.Manifest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, manifest, "rejected batches leave the package untouched")
}

func TestEngineClone(t *testing.T) {
	e := newEngine(t, history.BackendFile)
	resp := runSync(t, e, "",
		model.NewAddRequest("a.md", []byte("a1"), nil),
		model.NewAddRequest("docs/b.md", []byte("b1"), nil),
	)
	resp = runSync(t, e, resp.Latest,
		model.NewUpdateRequest("a.md", []byte("a2"), 1, nil),
		model.NewDeleteRequest("docs/b.md", 1, nil),
	)

	clone, err := e.Clone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pkg", clone.PackageName)
	assert.Equal(t, map[string][]byte{"a.md": []byte("a2")}, clone.Files)
	assert.Equal(t, resp.Latest, clone.Latest)

	keys := make([]string, 0, len(clone.DotHistory))
	for _, h := range clone.DotHistory {
		keys = append(keys, h.Path)
	}
	assert.Equal(t, []string{"a.1.md", "a.2.md", "docs/b.1.md"}, keys)
}
