package sync

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/model"
)

// Diff returns every remote path the client has not seen at its latest
// version, with the operation of that version. Both manifests keep deleted
// entries.
func Diff(remote, client history.Manifest) map[string]model.FileOperation {
	out := make(map[string]model.FileOperation)
	for p, edit := range remote {
		known, ok := client[p]
		if !ok || known.Version < edit.Version {
			out[p] = edit.Operation
		}
	}
	return out
}

// ClientOnly returns, in sorted order, the paths the client has a record of
// that the remote has never seen.
func ClientOnly(remote, client history.Manifest) []string {
	remotePaths := mapset.NewThreadUnsafeSetFromMapKeys(remote)
	clientPaths := mapset.NewThreadUnsafeSetFromMapKeys(client)
	out := clientPaths.Difference(remotePaths).ToSlice()
	sort.Strings(out)
	return out
}
