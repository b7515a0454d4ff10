// Package archive exports a package snapshot to a tar.gz file and reads it
// back.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/util"
)

const (
	// FormatVersion is written into every manifest.
	FormatVersion = "1.0"
	manifestName  = "manifest.json"
	ledgerName    = "latest.ledger"
	filesPrefix   = "files/"
)

// Manifest represents the metadata for an archive
type Manifest struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Package   string         `json:"package,omitempty"`
	FileCount int            `json:"file_count"`
	Files     []ManifestFile `json:"files"`
	HasLedger bool           `json:"has_ledger"`
}

// ManifestFile represents a file entry in the manifest
type ManifestFile struct {
	Path       string    `json:"path"`
	Version    int32     `json:"version,omitempty"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// File is one working-copy file in an archive. Version is its synchronized
// baseline, zero for files that never reached the remote.
type File struct {
	Path       string
	Version    int32
	Content    []byte
	ModifiedAt time.Time
}

// CreateOptions configures archive creation
type CreateOptions struct {
	Package string    // Package name recorded in the manifest
	Ledger  string    // Ledger text stored alongside the files (empty = none)
	Since   time.Time // Only files modified at or after this time
	Now     func() time.Time
}

// ExtractOptions configures archive extraction
type ExtractOptions struct {
	TargetDir string // Target directory for extraction
	DryRun    bool   // Preview without extraction
}

// Contents is what Extract read from an archive.
type Contents struct {
	Manifest *Manifest
	Files    []File
	Ledger   string
}

// Create writes files as a tar.gz archive to w.
func Create(files []File, w io.Writer, opts CreateOptions) (err error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	filtered := filterFiles(files, opts)
	if len(filtered) == 0 {
		return fmt.Errorf("no files match the specified filters")
	}

	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)
	defer func() {
		if closeErr := tarWriter.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if closeErr := gzWriter.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	manifest := Manifest{
		Version:   FormatVersion,
		CreatedAt: now().UTC(),
		Package:   opts.Package,
		FileCount: len(filtered),
		Files:     make([]ManifestFile, 0, len(filtered)),
		HasLedger: opts.Ledger != "",
	}

	for _, f := range filtered {
		if err := model.ValidatePath(f.Path); err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:       f.Path,
			Version:    f.Version,
			Size:       int64(len(f.Content)),
			ModifiedAt: f.ModifiedAt,
		})
		if err := writeEntry(tarWriter, filesPrefix+f.Path, f.Content, f.ModifiedAt); err != nil {
			return err
		}
	}

	if opts.Ledger != "" {
		if err := writeEntry(tarWriter, ledgerName, []byte(opts.Ledger), manifest.CreatedAt); err != nil {
			return err
		}
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	return writeEntry(tarWriter, manifestName, manifestData, manifest.CreatedAt)
}

func writeEntry(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write data for %s: %w", name, err)
	}
	return nil
}

// Extract reads an archive, writing its files below opts.TargetDir unless
// DryRun is set or no target is given.
func Extract(r io.Reader, opts ExtractOptions) (*Contents, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() { _ = gzReader.Close() }()

	tarReader := tar.NewReader(gzReader)
	contents := &Contents{}
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}

		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", header.Name, err)
		}

		switch {
		case header.Name == manifestName:
			if err := json.Unmarshal(data, &contents.Manifest); err != nil {
				return nil, fmt.Errorf("failed to parse manifest: %w", err)
			}
		case header.Name == ledgerName:
			contents.Ledger = string(data)
		case strings.HasPrefix(header.Name, filesPrefix):
			p := strings.TrimPrefix(header.Name, filesPrefix)
			if err := model.ValidatePath(p); err != nil {
				return nil, fmt.Errorf("archive entry %q: %w", header.Name, err)
			}
			contents.Files = append(contents.Files, File{Path: p, Content: data, ModifiedAt: header.ModTime})
		}
	}

	if contents.Manifest == nil {
		return nil, fmt.Errorf("archive missing %s", manifestName)
	}

	versions := make(map[string]int32, len(contents.Manifest.Files))
	for _, mf := range contents.Manifest.Files {
		versions[mf.Path] = mf.Version
	}
	for i := range contents.Files {
		contents.Files[i].Version = versions[contents.Files[i].Path]
	}

	if opts.TargetDir != "" && !opts.DryRun {
		for _, f := range contents.Files {
			target := filepath.Join(opts.TargetDir, filepath.FromSlash(f.Path))
			if err := util.WriteFileAtomic(target, f.Content, 0o644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", f.Path, err)
			}
		}
	}
	return contents, nil
}

// filterFiles applies create options and orders files by path
func filterFiles(files []File, opts CreateOptions) []File {
	filtered := make([]File, 0, len(files))
	for _, f := range files {
		if !opts.Since.IsZero() && f.ModifiedAt.Before(opts.Since) {
			continue
		}
		filtered = append(filtered, f)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Path < filtered[j].Path })
	return filtered
}
