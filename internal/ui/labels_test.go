package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klauern/docsync/internal/model"
)

func TestTitle(t *testing.T) {
	assert.Equal(t, "Edited On Both Sides", Title("edited on both sides"))
	assert.Equal(t, "", Title(""))
}

func TestChangeLabel(t *testing.T) {
	DisableColors()
	defer EnableColors()

	assert.Equal(t, "+ Added", ChangeLabel("added"))
	assert.Equal(t, "~ Modified", ChangeLabel("modified"))
	assert.Equal(t, "- Deleted", ChangeLabel("deleted"))
	assert.Equal(t, "Other", ChangeLabel("other"))
}

func TestSyncStatusLabel(t *testing.T) {
	DisableColors()
	defer EnableColors()

	assert.Equal(t, SymbolSuccess+" Synced", SyncStatusLabel(model.NoConflict))
	assert.Equal(t, SymbolError+" Added On Both Sides", SyncStatusLabel(model.CloneAddedRemoteAdded))
}

func TestConfigureColor(t *testing.T) {
	defer EnableColors()

	ConfigureColor("never")
	assert.False(t, IsColorEnabled())
	ConfigureColor("always")
	assert.True(t, IsColorEnabled())

	t.Setenv("NO_COLOR", "1")
	ConfigureColor("auto")
	assert.False(t, IsColorEnabled())
}
