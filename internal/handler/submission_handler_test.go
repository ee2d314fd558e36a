package handler_test

import (
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
)

func TestSubmissionHandlerUpsertFlow(t *testing.T) {
	p := setupPortal(t)
	now := time.Now().UTC()
	alice, aliceToken := p.user(t, "alice@example.com", models.RoleStudent)
	_, bobToken := p.user(t, "bob@example.com", models.RoleStudent)
	_, profToken := p.user(t, "prof@example.com", models.RoleProfessor)
	assignment := p.assignment(t, "Requêtes SQL", now.Add(-time.Hour), now.Add(time.Hour))

	resp := p.submit(t, aliceToken, assignment.ID, "reponse.sql", []byte("SELECT * FROM cours;"), "première version")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var first dto.SubmissionAck
	decodeEnvelope(t, resp, &first)
	require.False(t, first.Replaced)

	resp = p.submit(t, aliceToken, assignment.ID, "reponse.sql", []byte("SELECT id FROM cours;"), "<b>corrigée</b>")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var second dto.SubmissionAck
	decodeEnvelope(t, resp, &second)
	require.True(t, second.Replaced)
	require.Equal(t, first.ID, second.ID)

	resp = p.do(t, http.MethodGet, "/api/v1/student/submissions", aliceToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var mine []dto.SubmissionSummary
	decodeEnvelope(t, resp, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, "corrigée", mine[0].Comment)

	path := "/api/v1/student/submissions/" + strconv.FormatUint(uint64(first.ID), 10) + "/file"
	resp = p.do(t, http.MethodGet, path, aliceToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM cours;", string(content))
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "reponse.sql")

	resp = p.do(t, http.MethodGet, path, bobToken, nil, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/submissions/"+strconv.FormatUint(uint64(first.ID), 10)+"/file", profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/submissions?assignment_id="+strconv.FormatUint(uint64(assignment.ID), 10), profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed []dto.SubmissionResponse
	decodeEnvelope(t, resp, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, alice.ID, listed[0].StudentID)
	require.Equal(t, "alice@example.com", listed[0].StudentEmail)
}

func TestSubmissionHandlerErrorMapping(t *testing.T) {
	p := setupPortal(t)
	now := time.Now().UTC()
	_, token := p.user(t, "alice@example.com", models.RoleStudent)
	open := p.assignment(t, "Ouvert", now.Add(-time.Hour), now.Add(time.Hour))
	closed := p.assignment(t, "Fermé", now.Add(-2*time.Hour), now.Add(-time.Hour))

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	cases := []struct {
		name         string
		assignmentID uint
		content      []byte
		status       int
	}{
		{name: "missing file", assignmentID: open.ID, content: nil, status: fiber.StatusBadRequest},
		{name: "unknown assignment", assignmentID: 9999, content: []byte("SELECT 1;"), status: fiber.StatusNotFound},
		{name: "deadline passed", assignmentID: closed.ID, content: []byte("SELECT 1;"), status: fiber.StatusConflict},
		{name: "image rejected", assignmentID: open.ID, content: png, status: fiber.StatusUnsupportedMediaType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := p.submit(t, token, tc.assignmentID, "fichier", tc.content, "")
			require.Equal(t, tc.status, resp.StatusCode)
			env := decodeEnvelope(t, resp, nil)
			require.False(t, env.Success)
			require.NotEmpty(t, env.Message)
		})
	}

	resp := p.do(t, http.MethodGet, "/api/v1/student/submissions/abc/file", token, nil, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRouteGating(t *testing.T) {
	p := setupPortal(t)
	_, studentToken := p.user(t, "alice@example.com", models.RoleStudent)
	_, profToken := p.user(t, "prof@example.com", models.RoleProfessor)

	resp := p.do(t, http.MethodGet, "/api/v1/professor/analytics", studentToken, nil, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/student/dashboard", profToken, nil, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/student/dashboard", "", nil, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/analytics", profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
