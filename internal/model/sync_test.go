package model

import (
	"errors"
	"testing"
)

func TestSyncRequestFileValidate(t *testing.T) {
	tests := map[string]struct {
		file    SyncRequestFile
		wantErr bool
	}{
		"add ok":               {file: NewAddRequest("a/b.ftd", []byte("x"), nil)},
		"add with version":     {file: SyncRequestFile{Action: ActionAdd, Path: "a", Version: 2}, wantErr: true},
		"update ok":            {file: NewUpdateRequest("a.ftd", []byte("x"), 3, nil)},
		"update no version":    {file: NewUpdateRequest("a.ftd", []byte("x"), 0, nil), wantErr: true},
		"delete ok":            {file: NewDeleteRequest("a.ftd", 1, nil)},
		"delete no version":    {file: NewDeleteRequest("a.ftd", 0, nil), wantErr: true},
		"unknown action":       {file: SyncRequestFile{Action: "Rename", Path: "a"}, wantErr: true},
		"absolute path":        {file: NewAddRequest("/etc/passwd", nil, nil), wantErr: true},
		"parent escape":        {file: NewAddRequest("../x", nil, nil), wantErr: true},
		"unclean path":         {file: NewAddRequest("a//b", nil, nil), wantErr: true},
		"empty path":           {file: NewAddRequest("", nil, nil), wantErr: true},
		"dotted file name ok":  {file: NewAddRequest("a.b.c.ftd", nil, nil)},
		"backslash is refused": {file: NewAddRequest(`a\b`, nil, nil), wantErr: true},
		"metadata dir":         {file: NewAddRequest(".docsync/history/p.1.md", nil, nil), wantErr: true},
		"metadata dir itself":  {file: NewDeleteRequest(".docsync", 1, nil), wantErr: true},
		"similar prefix ok":    {file: NewAddRequest(".docsync-notes/a.md", nil, nil)},
		"nested name ok":       {file: NewAddRequest("docs/.docsync/a.md", nil, nil)},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.file.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("error %v does not wrap ErrInvalidRequest", err)
			}
		})
	}
}

func TestSyncRequestValidateDuplicates(t *testing.T) {
	req := &SyncRequest{
		PackageName: "pkg",
		Files: []SyncRequestFile{
			NewAddRequest("a.ftd", nil, nil),
			NewDeleteRequest("a.ftd", 1, nil),
		},
	}
	if err := req.Validate(); err == nil {
		t.Fatal("expected duplicate path error")
	}

	req.Files = req.Files[:1]
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req.PackageName = " "
	if err := req.Validate(); err == nil {
		t.Fatal("expected missing package error")
	}
}

func TestWorkspaceEntryFromEdit(t *testing.T) {
	edit := FileEdit{Version: 7, Operation: Updated}
	entry := edit.WorkspaceEntry("a.ftd")
	if entry.IsNew() {
		t.Fatal("entry from edit should not be new")
	}
	if entry.BaseVersion() != 7 || entry.Path != "a.ftd" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.IsDeleted() {
		t.Error("entry should not be deleted")
	}
}
