package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
)

type stubArchiver struct {
	names []string
	err   error
}

func (s *stubArchiver) Archive(_ context.Context, assignmentID, studentID uint, fileName string, content io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.ReadAll(content); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d/%d/%s", assignmentID, studentID, fileName)
	s.names = append(s.names, name)
	return "https://archive.example.com/" + name, nil
}

type submissionFixture struct {
	repos      testRepos
	svc        *submissionService
	views      *recordingInvalidator
	activity   *stubActivityRecorder
	student    models.User
	assignment models.Assignment
	now        time.Time
}

func newSubmissionFixture(t *testing.T, archiver SubmissionArchiver) submissionFixture {
	t.Helper()
	r := newTestRepos(t)
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	student := r.user(t, "alice@example.com", models.RoleStudent)
	assignment := r.assignment(t, "SQL", models.AssignmentStatusPublished,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	views := &recordingInvalidator{}
	activity := &stubActivityRecorder{}
	svc := NewSubmissionService(r.submissions, r.assignments, views, archiver, activity, testValidator(),
		SubmissionOptions{MaxSizeBytes: 1024}, testLogger()).(*submissionService)
	svc.now = func() time.Time { return now }

	return submissionFixture{repos: r, svc: svc, views: views, activity: activity, student: student, assignment: assignment, now: now}
}

func TestSubmitUpsertsSingleRow(t *testing.T) {
	f := newSubmissionFixture(t, nil)
	ctx := context.Background()

	t1 := f.now
	first, err := f.svc.Submit(ctx, SubmitInput{
		StudentID: f.student.ID, AssignmentID: f.assignment.ID,
		FileName: "a.sql", Content: []byte("SELECT * FROM clients;"), Comment: "<b>premier</b> essai",
	})
	require.NoError(t, err)
	require.False(t, first.Replaced)
	require.True(t, first.SubmittedAt.Equal(t1))

	t2 := t1.Add(time.Hour)
	f.svc.now = func() time.Time { return t2 }
	second, err := f.svc.Submit(ctx, SubmitInput{
		StudentID: f.student.ID, AssignmentID: f.assignment.ID,
		FileName: "b.sql", Content: []byte("SELECT nom FROM clients;"),
	})
	require.NoError(t, err)
	require.True(t, second.Replaced)
	require.Equal(t, first.ID, second.ID)

	var rows []models.Submission
	require.NoError(t, f.repos.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, []byte("SELECT nom FROM clients;"), rows[0].Payload)
	require.Equal(t, "b.sql", rows[0].FileName)
	require.True(t, rows[0].SubmittedAt.Equal(t2))

	stored, err := f.repos.submissions.FindByStudentAndAssignment(ctx, f.student.ID, f.assignment.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Comment)

	require.Len(t, f.views.views, 2)
	require.Equal(t, [2]uint{f.assignment.ID, f.student.ID}, f.views.views[0])
	require.Equal(t, []string{"submission.upserted", "submission.upserted"}, f.activity.actions())
}

func TestSubmitSanitizesComment(t *testing.T) {
	f := newSubmissionFixture(t, nil)
	_, err := f.svc.Submit(context.Background(), SubmitInput{
		StudentID: f.student.ID, AssignmentID: f.assignment.ID,
		Content: []byte("SELECT 1;"), Comment: "<script>alert(1)</script>Voir <b>annexe</b>",
	})
	require.NoError(t, err)

	stored, err := f.repos.submissions.FindByStudentAndAssignment(context.Background(), f.student.ID, f.assignment.ID)
	require.NoError(t, err)
	require.Equal(t, "Voir annexe", stored.Comment)
	require.Equal(t, fmt.Sprintf("soumission-%d.txt", f.assignment.ID), stored.FileName)
}

func TestSubmitConcurrentResubmissionsKeepOneRow(t *testing.T) {
	f := newSubmissionFixture(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), SubmitInput{
				StudentID: f.student.ID, AssignmentID: f.assignment.ID,
				Content: []byte(fmt.Sprintf("SELECT %d;", i)),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, f.repos.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSubmitValidation(t *testing.T) {
	f := newSubmissionFixture(t, nil)
	ctx := context.Background()
	draft := f.repos.assignment(t, "Brouillon", models.AssignmentStatusDraft, f.now.Add(-time.Hour), f.now.Add(time.Hour))
	future := f.repos.assignment(t, "Futur", models.AssignmentStatusPublished, f.now.Add(time.Hour), f.now.Add(2*time.Hour))
	past := f.repos.assignment(t, "Passé", models.AssignmentStatusPublished, f.now.Add(-2*time.Hour), f.now.Add(-time.Hour))

	cases := []struct {
		name  string
		input SubmitInput
		err   error
	}{
		{"missing student", SubmitInput{AssignmentID: f.assignment.ID, Content: []byte("x")}, ErrInvalidArgument},
		{"missing assignment", SubmitInput{StudentID: f.student.ID, Content: []byte("x")}, ErrInvalidArgument},
		{"empty payload", SubmitInput{StudentID: f.student.ID, AssignmentID: f.assignment.ID}, ErrMissingPayload},
		{"too large", SubmitInput{StudentID: f.student.ID, AssignmentID: f.assignment.ID, Content: bytes.Repeat([]byte("a"), 2048)}, ErrPayloadTooLarge},
		{"unknown assignment", SubmitInput{StudentID: f.student.ID, AssignmentID: 999, Content: []byte("x")}, ErrNotFound},
		{"draft assignment", SubmitInput{StudentID: f.student.ID, AssignmentID: draft.ID, Content: []byte("x")}, ErrNotFound},
		{"not yet open", SubmitInput{StudentID: f.student.ID, AssignmentID: future.ID, Content: []byte("x")}, ErrSubmissionClosed},
		{"past deadline", SubmitInput{StudentID: f.student.ID, AssignmentID: past.ID, Content: []byte("x")}, ErrSubmissionClosed},
		{"binary file", SubmitInput{StudentID: f.student.ID, AssignmentID: f.assignment.ID, Content: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}}, ErrUnsupportedFileType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.input)
			require.ErrorIs(t, err, tc.err)
		})
	}

	require.Empty(t, f.views.views)
}

func TestSubmitAcceptsPDF(t *testing.T) {
	f := newSubmissionFixture(t, nil)
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF")

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		StudentID: f.student.ID, AssignmentID: f.assignment.ID, FileName: "rapport.pdf", Content: pdf,
	})
	require.NoError(t, err)

	stored, err := f.repos.submissions.FindByStudentAndAssignment(context.Background(), f.student.ID, f.assignment.ID)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", stored.MimeType)
}

func TestSubmitAcceptsTextSubtypes(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		content  []byte
		detected string
	}{
		{"csv shaped sql", "reponse.sql", []byte("id,nom,note\n1,Alice,14\n2,Bob,12\n3,Chloé,9\n"), "text/csv"},
		{"json", "reponse.json", []byte(`{"requete": "SELECT nom FROM etudiants;"}`), "application/json"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, mimetype.Detect(tc.content).Is(tc.detected))

			f := newSubmissionFixture(t, nil)
			_, err := f.svc.Submit(context.Background(), SubmitInput{
				StudentID: f.student.ID, AssignmentID: f.assignment.ID, FileName: tc.fileName, Content: tc.content,
			})
			require.NoError(t, err)

			stored, err := f.repos.submissions.FindByStudentAndAssignment(context.Background(), f.student.ID, f.assignment.ID)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(stored.MimeType, tc.detected))
			require.Equal(t, tc.fileName, stored.FileName)
		})
	}
}

func TestSubmitArchivesCopy(t *testing.T) {
	archiver := &stubArchiver{}
	f := newSubmissionFixture(t, archiver)

	ack, err := f.svc.Submit(context.Background(), SubmitInput{
		StudentID: f.student.ID, AssignmentID: f.assignment.ID, FileName: "a.sql", Content: []byte("SELECT 1;"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{fmt.Sprintf("%d/%d/a.sql", f.assignment.ID, f.student.ID)}, archiver.names)

	stored, err := f.repos.submissions.GetByID(context.Background(), ack.ID)
	require.NoError(t, err)
	require.Contains(t, stored.ArchiveURL, "https://archive.example.com/")
}

func TestSubmitIgnoresArchiveAndInvalidationFailures(t *testing.T) {
	f := newSubmissionFixture(t, &stubArchiver{err: errors.New("cloud down")})
	f.views.err = errors.New("redis down")

	ack, err := f.svc.Submit(context.Background(), SubmitInput{
		StudentID: f.student.ID, AssignmentID: f.assignment.ID, Content: []byte("SELECT 1;"),
	})
	require.NoError(t, err)
	require.NotZero(t, ack.ID)
}

func TestDownloadChecksOwnership(t *testing.T) {
	f := newSubmissionFixture(t, nil)
	other := f.repos.user(t, "bob@example.com", models.RoleStudent)
	ctx := context.Background()

	ack, err := f.svc.Submit(ctx, SubmitInput{
		StudentID: f.student.ID, AssignmentID: f.assignment.ID, FileName: "a.sql", Content: []byte("SELECT 1;"),
	})
	require.NoError(t, err)

	file, err := f.svc.Download(ctx, Actor{ID: f.student.ID, Role: models.RoleStudent}, ack.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("SELECT 1;"), file.Content)
	require.Equal(t, "a.sql", file.FileName)

	_, err = f.svc.Download(ctx, Actor{ID: other.ID, Role: models.RoleStudent}, ack.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Download(ctx, Actor{ID: 77, Role: models.RoleProfessor}, ack.ID)
	require.NoError(t, err)

	_, err = f.svc.Download(ctx, Actor{ID: f.student.ID, Role: models.RoleStudent}, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListSubmissionsForStaff(t *testing.T) {
	f := newSubmissionFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, SubmitInput{StudentID: f.student.ID, AssignmentID: f.assignment.ID, Content: []byte("SELECT 1;")})
	require.NoError(t, err)

	_, err = f.svc.List(ctx, Actor{ID: f.student.ID, Role: models.RoleStudent}, dto.SubmissionFilter{})
	require.ErrorIs(t, err, ErrUnauthorized)

	items, err := f.svc.List(ctx, Actor{ID: 1, Role: models.RoleAdmin}, dto.SubmissionFilter{AssignmentID: ptrUint(f.assignment.ID)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "SQL", items[0].AssignmentTitle)
	require.Equal(t, "alice@example.com", items[0].StudentEmail)

	mine, err := f.svc.ListMine(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}
