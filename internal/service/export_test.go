package service

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldreport/backend/internal/domain"
	"fieldreport/backend/internal/storage/memory"
)

// readArchive parses zip bytes into a map of entry name to content.
func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = content
	}
	return entries
}

func TestExportService_NotFound(t *testing.T) {
	svc := NewExportService(memory.NewStore(), newFakeFileStore(), nil)

	var buf bytes.Buffer
	err := svc.Export("missing", &buf)
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
	assert.Zero(t, buf.Len())
}

func TestExportService_MetadataOnly(t *testing.T) {
	store := memory.NewStore()
	issues := NewIssueService(store, newFakeFileStore(), nil)
	export := NewExportService(store, newFakeFileStore(), nil)

	issue, err := issues.Create(validCreateInput())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.Export(issue.ID, &buf))

	entries := readArchive(t, buf.Bytes())
	require.Len(t, entries, 1)

	var decoded domain.Issue
	require.NoError(t, json.Unmarshal(entries["issue.json"], &decoded))
	assert.Equal(t, issue.ID, decoded.ID)
	assert.Equal(t, issue.IssueTitle, decoded.IssueTitle)
	assert.Equal(t, domain.StatusOpen, decoded.Status)
}

func TestExportService_SkipsMissingBlobs(t *testing.T) {
	store := memory.NewStore()
	files := newFakeFileStore()
	export := NewExportService(store, files, nil)

	saved, err := files.Save("present.txt", strings.NewReader("still here"))
	require.NoError(t, err)

	issue := &domain.Issue{
		ID:          "issue-1",
		ProjectName: "Project Orion",
		IssueTitle:  "Injector leak",
		Description: "desc",
		IssueType:   domain.TypeHardware,
		NtID:        "nt001",
		Email:       "reporter@example.com",
		Status:      domain.StatusOpen,
		Files: []domain.Attachment{
			{StoredName: saved.StoredName, OriginalName: "present.txt"},
			{StoredName: "vanished_1", OriginalName: "vanished.txt"},
		},
	}
	require.NoError(t, store.SaveIssue(issue))

	var buf bytes.Buffer
	require.NoError(t, export.Export("issue-1", &buf))

	entries := readArchive(t, buf.Bytes())
	assert.Contains(t, entries, "issue.json")
	assert.Contains(t, entries, "attachments/present.txt")
	assert.Equal(t, "still here", string(entries["attachments/present.txt"]))
	// The missing blob is skipped without failing the export
	assert.NotContains(t, entries, "attachments/vanished.txt")
	assert.Len(t, entries, 2)
}

func TestExportService_FullLifecycle(t *testing.T) {
	store := memory.NewStore()
	files := newFakeFileStore()
	issues := NewIssueService(store, files, nil)
	search := NewSearchService(store)
	export := NewExportService(store, files, nil)

	// Report an issue with two attachments
	input := validCreateInput()
	input.IssueTitle = "Cooling system failure"
	input.Files = []FileUpload{
		{OriginalName: "thermal.jpg", MimeType: "image/jpeg", Content: strings.NewReader("jpeg-bytes")},
		{OriginalName: "log.csv", MimeType: "text/csv", Content: strings.NewReader("t,temp\n0,95")},
	}
	created, err := issues.Create(input)
	require.NoError(t, err)

	// The issue is findable through free-text search
	found, err := search.SearchIssues(SearchIssuesInput{Query: "cooling"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	// Resolve it with a solution attachment
	_, err = issues.SubmitSolution(created.ID, SubmitSolutionInput{
		Category:      "Known solution",
		Description:   "Flush the cooling circuit and replace the thermostat.",
		SolvedBy:      "Field Engineer",
		SolvedByEmail: "solver@example.com",
		Files: []FileUpload{
			{OriginalName: "procedure.pdf", Content: strings.NewReader("pdf-bytes")},
		},
	})
	require.NoError(t, err)

	// Export carries metadata plus both attachment folders
	var buf bytes.Buffer
	require.NoError(t, export.Export(created.ID, &buf))

	entries := readArchive(t, buf.Bytes())
	assert.Contains(t, entries, "issue.json")
	assert.Contains(t, entries, "attachments/thermal.jpg")
	assert.Contains(t, entries, "attachments/log.csv")
	assert.Contains(t, entries, "solutions/procedure.pdf")
	assert.Len(t, entries, 4)

	assert.Equal(t, "jpeg-bytes", string(entries["attachments/thermal.jpg"]))
	assert.Equal(t, "pdf-bytes", string(entries["solutions/procedure.pdf"]))

	var decoded domain.Issue
	require.NoError(t, json.Unmarshal(entries["issue.json"], &decoded))
	assert.Equal(t, domain.StatusResolved, decoded.Status)
	require.NotNil(t, decoded.Solution)
	assert.Equal(t, domain.CategoryKnown, decoded.Solution.Category)
}

func TestExportFilename(t *testing.T) {
	issue := &domain.Issue{ID: "abc-123"}
	assert.Equal(t, "issue-abc-123.zip", ExportFilename(issue))
}
