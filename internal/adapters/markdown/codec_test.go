package markdown

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plansync/internal/domain"
)

var syncedAt = time.Date(2026, 10, 1, 9, 30, 0, 123000000, time.UTC)

func sampleDocument() domain.PlanDocument {
	snap := domain.Snapshot{
		Target:      domain.Target{Team: "core", Release: "r1"},
		ReleaseName: "Release 1",
		Items: []domain.ItemRecord{
			{ID: "OBJ-1", Kind: domain.KindObjective, Team: "core", Release: "r1", Name: "Reliability", Status: "active", Effort: domain.Effort(13), Owner: "alice"},
			{ID: "EP-1", Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Retry budget", Status: "planned", Effort: domain.Effort(20), ParentID: "OBJ-1"},
			{ID: "EP-2", Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Cache: sharded locks", Effort: domain.Effort(0), ParentID: "OBJ-1"},
			{ID: "OBJ-2", Kind: domain.KindObjective, Team: "core", Release: "r1", Name: "Growth"},
			{ID: "EP-9", Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Borrowed epic", ParentID: "OBJ-77"},
		},
	}
	return domain.NewDocument(snap, syncedAt)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := New()
	doc := sampleDocument()
	doc.Meta.Tracked[1].SyncedAt = syncedAt.Add(time.Hour)
	doc.Items = append(doc.Items,
		domain.ItemRecord{Kind: domain.KindObjective, Team: "core", Release: "r1", Name: "Fresh objective"},
		domain.ItemRecord{Kind: domain.KindEpic, Team: "core", Release: "r1", Name: "Fresh epic", Status: "draft", ParentID: "new:objective:Fresh objective"},
	)
	domain.SortItems(doc.Items)

	content, err := codec.Render(doc)
	require.NoError(t, err)

	parsed, err := codec.Parse(content)
	require.NoError(t, err)

	assert.Equal(t, doc.Meta, parsed.Meta)
	require.Len(t, parsed.Items, len(doc.Items))
	for i := range doc.Items {
		assert.True(t, doc.Items[i].Equal(parsed.Items[i]), "item %d: want %+v, got %+v", i, doc.Items[i], parsed.Items[i])
	}

	again, err := codec.Render(parsed)
	require.NoError(t, err)
	assert.Equal(t, string(content), string(again), "render must be stable")
}

func TestCodec_RoundTripLongField(t *testing.T) {
	codec := New()
	doc := sampleDocument()
	doc.Items[0].Status = strings.Repeat("x", 2<<20)

	content, err := codec.Render(doc)
	require.NoError(t, err)

	parsed, err := codec.Parse(content)
	require.NoError(t, err)
	require.Len(t, parsed.Items, len(doc.Items), "items after the long line were dropped")
	assert.Equal(t, doc.Items[0].Status, parsed.Items[0].Status)
	for i := range doc.Items {
		assert.Equal(t, doc.Items[i].ID, parsed.Items[i].ID)
	}
}

func TestCodec_RenderLayout(t *testing.T) {
	content, err := New().Render(sampleDocument())
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, "---\nteam: core\nrelease: r1\n"))
	assert.Contains(t, text, "\n# Release 1\n")
	assert.Contains(t, text, "## Reliability\n<!-- id: OBJ-1 -->\n\n- status: active\n\n- effort: 13\n\n- owner: alice\n")
	assert.Contains(t, text, "### Retry budget\n<!-- id: EP-1 -->\n\n- status: planned\n\n- effort: 20\n\n- owner:\n")
	assert.Contains(t, text, "- effort: 0\n")
	assert.Contains(t, text, "- parent: OBJ-77\n", "orphan epic needs an explicit parent")
	assert.Equal(t, 1, strings.Count(text, "- parent:"))
}

func TestCodec_RenderDoesNotReorderInput(t *testing.T) {
	doc := sampleDocument()
	doc.Items[0], doc.Items[1] = doc.Items[1], doc.Items[0]
	first := doc.Items[0].ID

	_, err := New().Render(doc)
	require.NoError(t, err)
	assert.Equal(t, first, doc.Items[0].ID)
}

func TestCodec_RenderRejectsMultilineValues(t *testing.T) {
	doc := sampleDocument()
	doc.Items[0].Status = "active\n- owner: mallory"

	_, err := New().Render(doc)

	var fieldErr *domain.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, domain.FieldStatus, fieldErr.Field)
}

func TestCodec_ParseUserEdits(t *testing.T) {
	codec := New()
	content, err := codec.Render(sampleDocument())
	require.NoError(t, err)

	edited := strings.Replace(string(content), "- effort: 20\n", "- effort: 34\n", 1)
	edited = strings.Replace(edited, "### Retry budget\n", "### Retry budget v2\n", 1)

	doc, err := codec.Parse([]byte(edited))
	require.NoError(t, err)

	item := doc.Index()["EP-1"]
	assert.Equal(t, "34", domain.FormatEffort(item.Effort))
	assert.Equal(t, "Retry budget v2", item.Name)
	assert.Equal(t, "OBJ-1", item.ParentID)
}

func TestCodec_ParseMovesEpicBetweenObjectives(t *testing.T) {
	codec := New()
	content, err := codec.Render(sampleDocument())
	require.NoError(t, err)

	text := string(content)
	block := "\n### Retry budget\n<!-- id: EP-1 -->\n\n- status: planned\n\n- effort: 20\n\n- owner:\n"
	require.Contains(t, text, block)
	text = strings.Replace(text, block, "", 1)
	growth := "## Growth\n<!-- id: OBJ-2 -->\n\n- status:\n\n- effort:\n\n- owner:\n"
	require.Contains(t, text, growth)
	text = strings.Replace(text, growth, growth+block, 1)

	doc, err := codec.Parse([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, "OBJ-2", doc.Index()["EP-1"].ParentID)
}

func TestCodec_ParseErrors(t *testing.T) {
	codec := New()
	valid, err := codec.Render(sampleDocument())
	require.NoError(t, err)
	body := string(valid)

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing front matter",
			content: "# Release 1\n",
		},
		{
			name:    "unterminated front matter",
			content: "---\nteam: core\n",
		},
		{
			name:    "negative effort",
			content: strings.Replace(body, "- effort: 13", "- effort: -1", 1),
		},
		{
			name:    "unknown field",
			content: strings.Replace(body, "- owner: alice", "- priority: high", 1),
		},
		{
			name:    "repeated field",
			content: strings.Replace(body, "- owner: alice", "- owner: alice\n- owner: bob", 1),
		},
		{
			name:    "untracked id",
			content: strings.Replace(body, "<!-- id: EP-2 -->", "<!-- id: EP-404 -->", 1),
			wantErr: domain.ErrUntrackedItem,
		},
		{
			name:    "free text",
			content: body + "\nsome notes\n",
		},
		{
			name:    "conflict markers",
			content: strings.Replace(body, "- effort: 20\n", "<<<<<<< HEAD\n- effort: 25\n=======\n- effort: 34\n>>>>>>> edit\n", 1),
			wantErr: ErrUnresolvedConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Parse([]byte(tt.content))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCodec_LocateConflicts(t *testing.T) {
	codec := New()
	valid, err := codec.Render(sampleDocument())
	require.NoError(t, err)
	body := string(valid)

	t.Run("field conflict", func(t *testing.T) {
		content := strings.Replace(body, "- effort: 20\n",
			"<<<<<<< HEAD\n- effort: 25\n=======\n- effort: 34\n>>>>>>> 1a2b3c (edit effort)\n", 1)

		regions := codec.LocateConflicts([]byte(content))

		require.Len(t, regions, 1)
		assert.Equal(t, "EP-1", regions[0].ItemID)
		assert.Equal(t, "Retry budget", regions[0].ItemName)
		assert.Equal(t, []domain.Field{domain.FieldEffort}, regions[0].Fields)
		assert.Equal(t, "- effort: 25", regions[0].Ours)
		assert.Equal(t, "- effort: 34", regions[0].Theirs)
	})

	t.Run("heading conflict resolves id after hunk", func(t *testing.T) {
		content := strings.Replace(body, "### Retry budget\n",
			"<<<<<<< HEAD\n### Retry policy\n=======\n### Retry budget v2\n>>>>>>> 1a2b3c\n", 1)

		regions := codec.LocateConflicts([]byte(content))

		require.Len(t, regions, 1)
		assert.Equal(t, "EP-1", regions[0].ItemID)
		assert.Equal(t, "Retry policy", regions[0].ItemName)
		assert.Equal(t, []domain.Field{domain.FieldName}, regions[0].Fields)
	})

	t.Run("diff3 base section is ignored", func(t *testing.T) {
		content := strings.Replace(body, "- owner: alice\n",
			"<<<<<<< HEAD\n- owner: bob\n||||||| base\n- owner: alice\n=======\n- owner: carol\n>>>>>>> 1a2b3c\n", 1)

		regions := codec.LocateConflicts([]byte(content))

		require.Len(t, regions, 1)
		assert.Equal(t, "OBJ-1", regions[0].ItemID)
		assert.Equal(t, "- owner: bob", regions[0].Ours)
		assert.Equal(t, "- owner: carol", regions[0].Theirs)
	})

	t.Run("front matter conflict", func(t *testing.T) {
		content := strings.Replace(body, "release_name: Release 1\n",
			"<<<<<<< HEAD\nrelease_name: Release 1\n=======\nrelease_name: Release One\n>>>>>>> 1a2b3c\n", 1)

		regions := codec.LocateConflicts([]byte(content))

		require.Len(t, regions, 1)
		assert.Equal(t, "metadata", regions[0].ItemName)
		assert.Empty(t, regions[0].ItemID)
	})

	t.Run("clean document", func(t *testing.T) {
		assert.Empty(t, codec.LocateConflicts(valid))
	})
}
