package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldreport/backend/internal/domain"
	"fieldreport/backend/internal/storage"
	"fieldreport/backend/internal/storage/filesystem"
	"fieldreport/backend/internal/storage/memory"
)

// fakeFileStore keeps file content in memory for service tests.
type fakeFileStore struct {
	mu      sync.Mutex
	seq     int
	files   map[string][]byte
	saveErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[string][]byte)}
}

func (f *fakeFileStore) Save(originalName string, r io.Reader) (*filesystem.SavedFile, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	storedName := fmt.Sprintf("%s_%d", originalName, f.seq)
	f.files[storedName] = data

	return &filesystem.SavedFile{
		StoredName:  storedName,
		StoragePath: "files/" + storedName,
		Size:        int64(len(data)),
	}, nil
}

func (f *fakeFileStore) Open(storedName string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[storedName]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFileStore) Delete(storedName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, storedName)
	return nil
}

func (f *fakeFileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// failingRepo wraps a repository and injects write failures.
type failingRepo struct {
	storage.IssueRepository
	saveErr   error
	updateErr error
}

func (r *failingRepo) SaveIssue(issue *domain.Issue) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.IssueRepository.SaveIssue(issue)
}

func (r *failingRepo) UpdateIssue(issue *domain.Issue) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.IssueRepository.UpdateIssue(issue)
}

func validCreateInput() CreateIssueInput {
	return CreateIssueInput{
		ProjectName: "Project Orion",
		RatedPower:  "250",
		RatedSpeed:  "1800",
		Application: "Marine",
		Legislation: "IMO Tier III",
		IssueTitle:  "Injector leak at high load",
		Description: "Fuel leaking from injector number 3 under full load.",
		NtID:        "nt001",
		Email:       "Reporter@Example.com",
	}
}

func TestIssueService_Create(t *testing.T) {
	files := newFakeFileStore()
	svc := NewIssueService(memory.NewStore(), files, nil)

	input := validCreateInput()
	input.Files = []FileUpload{
		{OriginalName: "photo.jpg", MimeType: "image/jpeg", Content: strings.NewReader("jpeg-bytes")},
		{OriginalName: "trace.csv", MimeType: "text/csv", Content: strings.NewReader("1,2,3")},
	}

	issue, err := svc.Create(input)
	require.NoError(t, err)

	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, domain.StatusOpen, issue.Status)
	assert.Nil(t, issue.Solution)
	assert.False(t, issue.HasSolution())
	// Empty issueType defaults to Hardware
	assert.Equal(t, domain.TypeHardware, issue.IssueType)
	// Email is normalized to lowercase
	assert.Equal(t, "reporter@example.com", issue.Email)
	assert.Equal(t, float64(250), issue.RatedPower)
	assert.False(t, issue.CreatedAt.IsZero())

	require.Len(t, issue.Files, 2)
	assert.Equal(t, 2, files.count())
	assert.Equal(t, "photo.jpg", issue.Files[0].OriginalName)
	assert.Equal(t, int64(5), issue.Files[1].SizeBytes)
}

func TestIssueService_CreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateIssueInput)
		field  string
	}{
		{"missing project name", func(in *CreateIssueInput) { in.ProjectName = "  " }, "projectName"},
		{"missing title", func(in *CreateIssueInput) { in.IssueTitle = "" }, "issueTitle"},
		{"missing description", func(in *CreateIssueInput) { in.Description = "" }, "description"},
		{"non-numeric power", func(in *CreateIssueInput) { in.RatedPower = "fast" }, "ratedPower"},
		{"negative power", func(in *CreateIssueInput) { in.RatedPower = "-1" }, "ratedPower"},
		{"negative speed", func(in *CreateIssueInput) { in.RatedSpeed = "-100" }, "ratedSpeed"},
		{"unknown issue type", func(in *CreateIssueInput) { in.IssueType = "Firmware" }, "issueType"},
		{"invalid email", func(in *CreateIssueInput) { in.Email = "not-an-email" }, "email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files := newFakeFileStore()
			svc := NewIssueService(memory.NewStore(), files, nil)

			input := validCreateInput()
			tc.mutate(&input)
			input.Files = []FileUpload{
				{OriginalName: "photo.jpg", Content: strings.NewReader("jpeg-bytes")},
			}

			_, err := svc.Create(input)
			require.Error(t, err)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)

			// Validation failures must not touch the file store
			assert.Zero(t, files.count())
		})
	}
}

func TestIssueService_CreateRepoFailureCleansFiles(t *testing.T) {
	files := newFakeFileStore()
	repo := &failingRepo{
		IssueRepository: memory.NewStore(),
		saveErr:         errors.New("database unavailable"),
	}
	svc := NewIssueService(repo, files, nil)

	input := validCreateInput()
	input.Files = []FileUpload{
		{OriginalName: "photo.jpg", Content: strings.NewReader("jpeg-bytes")},
		{OriginalName: "trace.csv", Content: strings.NewReader("1,2,3")},
	}

	_, err := svc.Create(input)
	require.Error(t, err)

	// Compensation removed every blob written for the failed record
	assert.Zero(t, files.count())
}

func TestIssueService_CreateFileFailureAborts(t *testing.T) {
	files := newFakeFileStore()
	files.saveErr = errors.New("disk full")
	store := memory.NewStore()
	svc := NewIssueService(store, files, nil)

	input := validCreateInput()
	input.Files = []FileUpload{
		{OriginalName: "photo.jpg", Content: strings.NewReader("jpeg-bytes")},
	}

	_, err := svc.Create(input)
	require.Error(t, err)

	// Nothing was persisted
	issues, err := store.SearchIssues(domain.IssueSearchCriteria{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Zero(t, files.count())
}

func TestIssueService_SubmitSolution(t *testing.T) {
	files := newFakeFileStore()
	store := memory.NewStore()
	svc := NewIssueService(store, files, nil)

	issue, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	resolved, err := svc.SubmitSolution(issue.ID, SubmitSolutionInput{
		Category:      "Known solution",
		Description:   "Replace injector seal with updated part.",
		SolvedBy:      "Field Engineer",
		SolvedByEmail: "Solver@Example.com",
		Files: []FileUpload{
			{OriginalName: "procedure.pdf", Content: strings.NewReader("pdf-bytes")},
		},
	})
	require.NoError(t, err)

	// Solution and Resolved status are written together
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.Solution)
	assert.Equal(t, domain.CategoryKnown, resolved.Solution.Category)
	assert.Equal(t, "solver@example.com", resolved.Solution.SolvedByEmail)
	assert.Len(t, resolved.Solution.Files, 1)
	assert.False(t, resolved.Solution.SolvedAt.IsZero())

	// Persisted record matches
	stored, err := store.GetIssue(issue.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasSolution())

	// Re-submission overwrites the previous solution
	again, err := svc.SubmitSolution(issue.ID, SubmitSolutionInput{
		Category:      "Innovation solution",
		Description:   "Redesigned seal geometry.",
		SolvedBy:      "Design Team",
		SolvedByEmail: "design@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryInnovation, again.Solution.Category)
	assert.Equal(t, domain.StatusResolved, again.Status)
}

func TestIssueService_SubmitSolutionNotFound(t *testing.T) {
	files := newFakeFileStore()
	svc := NewIssueService(memory.NewStore(), files, nil)

	_, err := svc.SubmitSolution("missing", SubmitSolutionInput{
		Category:      "Known solution",
		Description:   "irrelevant",
		SolvedBy:      "someone",
		SolvedByEmail: "someone@example.com",
		Files: []FileUpload{
			{OriginalName: "procedure.pdf", Content: strings.NewReader("pdf-bytes")},
		},
	})
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)

	// No file may be written for a record that does not exist
	assert.Zero(t, files.count())
}

func TestIssueService_SubmitSolutionValidation(t *testing.T) {
	files := newFakeFileStore()
	svc := NewIssueService(memory.NewStore(), files, nil)

	issue, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	_, err = svc.SubmitSolution(issue.ID, SubmitSolutionInput{
		Category:      "Workaround",
		Description:   "irrelevant",
		SolvedBy:      "someone",
		SolvedByEmail: "someone@example.com",
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "category", ve.Field)
}

func TestIssueService_SubmitSolutionUpdateFailureCleansFiles(t *testing.T) {
	files := newFakeFileStore()
	repo := &failingRepo{IssueRepository: memory.NewStore()}
	svc := NewIssueService(repo, files, nil)

	issue, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	repo.updateErr = errors.New("database unavailable")

	_, err = svc.SubmitSolution(issue.ID, SubmitSolutionInput{
		Category:      "Known solution",
		Description:   "Replace injector seal.",
		SolvedBy:      "Field Engineer",
		SolvedByEmail: "solver@example.com",
		Files: []FileUpload{
			{OriginalName: "procedure.pdf", Content: strings.NewReader("pdf-bytes")},
		},
	})
	require.Error(t, err)
	assert.Zero(t, files.count())
}

func TestIssueService_Patch(t *testing.T) {
	svc := NewIssueService(memory.NewStore(), newFakeFileStore(), nil)

	issue, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	newTitle := "Injector leak at partial load"
	newPower := 300.0
	inProgress := "InProgress"

	patched, err := svc.Patch(issue.ID, PatchIssueInput{
		IssueTitle: &newTitle,
		RatedPower: &newPower,
		Status:     &inProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, newTitle, patched.IssueTitle)
	assert.Equal(t, newPower, patched.RatedPower)
	assert.Equal(t, domain.StatusInProgress, patched.Status)

	// Status can move back to Open
	open := "Open"
	patched, err = svc.Patch(issue.ID, PatchIssueInput{Status: &open})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, patched.Status)
}

func TestIssueService_PatchStatusRules(t *testing.T) {
	svc := NewIssueService(memory.NewStore(), newFakeFileStore(), nil)

	issue, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	var ve *domain.ValidationError

	// Resolved cannot be set through patch
	resolvedStatus := "Resolved"
	_, err = svc.Patch(issue.ID, PatchIssueInput{Status: &resolvedStatus})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)

	// Unknown status values are rejected
	bogus := "Closed"
	_, err = svc.Patch(issue.ID, PatchIssueInput{Status: &bogus})
	require.ErrorAs(t, err, &ve)

	// Once resolved, status is immutable
	_, err = svc.SubmitSolution(issue.ID, SubmitSolutionInput{
		Category:      "Known solution",
		Description:   "done",
		SolvedBy:      "someone",
		SolvedByEmail: "someone@example.com",
	})
	require.NoError(t, err)

	inProgress := "InProgress"
	_, err = svc.Patch(issue.ID, PatchIssueInput{Status: &inProgress})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)

	// Other metadata fields stay editable after resolution
	newCustomer := "Northern Shipyards"
	patched, err := svc.Patch(issue.ID, PatchIssueInput{CustomerName: &newCustomer})
	require.NoError(t, err)
	assert.Equal(t, newCustomer, patched.CustomerName)
	assert.Equal(t, domain.StatusResolved, patched.Status)
}

func TestIssueService_PatchRejectsBlankRequiredFields(t *testing.T) {
	svc := NewIssueService(memory.NewStore(), newFakeFileStore(), nil)

	issue, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	blank := "  "
	cases := []struct {
		field string
		input PatchIssueInput
	}{
		{"projectName", PatchIssueInput{ProjectName: &blank}},
		{"application", PatchIssueInput{Application: &blank}},
		{"legislation", PatchIssueInput{Legislation: &blank}},
		{"description", PatchIssueInput{Description: &blank}},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			_, err := svc.Patch(issue.ID, tc.input)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	// The stored record keeps its original required values
	stored, err := svc.Get(issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Project Orion", stored.ProjectName)
	assert.Equal(t, "Marine", stored.Application)
	assert.Equal(t, "IMO Tier III", stored.Legislation)
	assert.NotEmpty(t, stored.Description)
}

func TestIssueService_PatchValidation(t *testing.T) {
	svc := NewIssueService(memory.NewStore(), newFakeFileStore(), nil)

	issue, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	var ve *domain.ValidationError

	negative := -5.0
	_, err = svc.Patch(issue.ID, PatchIssueInput{RatedSpeed: &negative})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "ratedSpeed", ve.Field)

	badEmail := "nope"
	_, err = svc.Patch(issue.ID, PatchIssueInput{Email: &badEmail})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)

	_, err = svc.Patch("missing", PatchIssueInput{})
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
}

// fakeAttachmentMetrics counts attachment writes for metric wiring tests.
type fakeAttachmentMetrics struct {
	mu         sync.Mutex
	count      int
	totalBytes int64
}

func (m *fakeAttachmentMetrics) RecordAttachmentStored(sizeBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	m.totalBytes += sizeBytes
}

func TestIssueService_RecordsAttachmentMetrics(t *testing.T) {
	svc := NewIssueService(memory.NewStore(), newFakeFileStore(), nil)
	metrics := &fakeAttachmentMetrics{}
	svc.SetMetrics(metrics)

	input := validCreateInput()
	input.Files = []FileUpload{
		{OriginalName: "photo.jpg", Content: strings.NewReader("jpeg-bytes")},
		{OriginalName: "trace.csv", Content: strings.NewReader("1,2,3")},
	}

	issue, err := svc.Create(input)
	require.NoError(t, err)

	assert.Equal(t, 2, metrics.count)
	assert.Equal(t, int64(len("jpeg-bytes")+len("1,2,3")), metrics.totalBytes)

	// Solution uploads are counted as well
	_, err = svc.SubmitSolution(issue.ID, SubmitSolutionInput{
		Category:      "Known solution",
		Description:   "done",
		SolvedBy:      "someone",
		SolvedByEmail: "someone@example.com",
		Files: []FileUpload{
			{OriginalName: "procedure.pdf", Content: strings.NewReader("pdf-bytes")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.count)
}

func TestIssueService_ListOpenFor(t *testing.T) {
	svc := NewIssueService(memory.NewStore(), newFakeFileStore(), nil)

	first, err := svc.Create(validCreateInput())
	require.NoError(t, err)

	second := validCreateInput()
	second.IssueTitle = "Second issue"
	_, err = svc.Create(second)
	require.NoError(t, err)

	other := validCreateInput()
	other.NtID = "nt002"
	_, err = svc.Create(other)
	require.NoError(t, err)

	// Resolving the first issue removes it from the open list
	_, err = svc.SubmitSolution(first.ID, SubmitSolutionInput{
		Category:      "Known solution",
		Description:   "done",
		SolvedBy:      "someone",
		SolvedByEmail: "someone@example.com",
	})
	require.NoError(t, err)

	open, err := svc.ListOpenFor("nt001")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Second issue", open[0].IssueTitle)
}
