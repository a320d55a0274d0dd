package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plansync/internal/clock"
	"plansync/internal/domain"
)

const seedYAML = `
releases:
  - team: core
    release: r1
    name: Release One
    objectives:
      - id: O-1
        name: Faster sync
        status: active
        epics:
          - name: Cache reads
            effort: 3
            owner: ana
      - name: Fewer conflicts
`

func TestLoadSeed_Apply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	svc := New(clock.Fake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	svc.Apply(seed)

	target := domain.Target{Team: "core", Release: "r1"}
	release, err := svc.GetRelease(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, "Release One", release.Name)

	items := svc.All()
	require.Len(t, items, 3)

	byName := make(map[string]domain.ItemRecord)
	for _, item := range items {
		byName[item.Name] = item
	}
	assert.Equal(t, "O-1", byName["Faster sync"].ID)
	assert.Equal(t, domain.KindObjective, byName["Fewer conflicts"].Kind)
	assert.NotEmpty(t, byName["Fewer conflicts"].ID)

	epic := byName["Cache reads"]
	assert.Equal(t, domain.KindEpic, epic.Kind)
	assert.Equal(t, "O-1", epic.ParentID)
	require.NotNil(t, epic.Effort)
	assert.Equal(t, 3, *epic.Effort)
	assert.Equal(t, "core", epic.Team)
}

func TestLoadSeed_InvalidTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("releases:\n  - team: Core Team\n    release: r1\n"), 0o644))

	_, err := LoadSeed(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid team slug")
}
