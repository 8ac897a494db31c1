package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func flagTypes(flags []MetadataFlag) []FlagType {
	types := make([]FlagType, 0, len(flags))
	for _, f := range flags {
		types = append(types, f.Type)
	}
	return types
}

func TestDeriveCapabilityFlags(t *testing.T) {
	d := NewDeriver(NewClassifier(DefaultLists()), fixedNow)

	unit := Unit{
		Name:         "widget",
		Dependencies: []string{"reqwest", "hyper", "walkdir", "tokio-process"},
	}
	flags := d.Derive(unit, nil)

	types := flagTypes(flags)
	assert.Contains(t, types, FlagNetworking)
	assert.Contains(t, types, FlagFileSystemAccess)
	assert.Contains(t, types, FlagProcessExecution)
	// Two networking members still emit one flag for the category.
	count := 0
	for _, ft := range types {
		if ft == FlagNetworking {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDeriveRegistryFlags(t *testing.T) {
	d := NewDeriver(NewClassifier(DefaultLists()), fixedNow)
	unit := Unit{Name: "widget"}

	downloads := int64(5_000_000)
	old := &RegistryMetadata{
		CreatedAt: fixedNow().AddDate(-2, 0, 0),
		Downloads: &downloads,
	}
	assert.Empty(t, d.Derive(unit, old))

	fresh := &RegistryMetadata{
		CreatedAt: fixedNow().Add(-48 * time.Hour),
		Downloads: &downloads,
	}
	assert.Equal(t, []FlagType{FlagRecentPublication}, flagTypes(d.Derive(unit, fresh)))

	few := int64(12)
	obscure := &RegistryMetadata{
		CreatedAt: fixedNow().AddDate(-2, 0, 0),
		Downloads: &few,
	}
	assert.Equal(t, []FlagType{FlagLowDownloads}, flagTypes(d.Derive(unit, obscure)))
}

func TestDeriveMissingDownloadCountRaisesFlag(t *testing.T) {
	d := NewDeriver(NewClassifier(DefaultLists()), fixedNow)
	meta := &RegistryMetadata{CreatedAt: fixedNow().AddDate(-1, 0, 0)}

	flags := d.Derive(Unit{Name: "widget"}, meta)
	require.Len(t, flags, 1)
	assert.Equal(t, FlagLowDownloads, flags[0].Type)
}

func TestDeriveTyposquatFlag(t *testing.T) {
	d := NewDeriver(NewClassifier(DefaultLists()), fixedNow)

	flags := d.Derive(Unit{Name: "sede"}, nil)
	require.Len(t, flags, 1)
	assert.Equal(t, FlagTyposquatting, flags[0].Type)
	assert.Equal(t, SeverityHigh, flags[0].Severity)
	assert.Contains(t, flags[0].Description, "serde")
}

func TestDeriveNilMetadataYieldsNoRegistryFlags(t *testing.T) {
	d := NewDeriver(NewClassifier(DefaultLists()), fixedNow)
	assert.Empty(t, d.Derive(Unit{Name: "plainlib"}, nil))
}
