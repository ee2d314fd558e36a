package handler_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
)

func TestProfessorPublishesAndGrades(t *testing.T) {
	p := setupPortal(t)
	now := time.Now().UTC().Truncate(time.Second)
	alice, studentToken := p.user(t, "alice@example.com", models.RoleStudent)
	_, profToken := p.user(t, "prof@example.com", models.RoleProfessor)

	resp := p.doJSON(t, http.MethodPost, "/api/v1/professor/assignments", profToken, map[string]string{
		"title":       "Sous-requêtes",
		"description": "<p>Écrire trois sous-requêtes</p>",
		"type":        "SQL",
		"open_date":   now.Add(-time.Hour).Format(time.RFC3339),
		"deadline":    now.Add(48 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.AssignmentResponse
	decodeEnvelope(t, resp, &created)
	require.Equal(t, models.AssignmentStatusDraft, created.Status)
	id := strconv.FormatUint(uint64(created.ID), 10)

	resp = p.do(t, http.MethodGet, "/api/v1/student/exercises", studentToken, nil, "")
	var exercises []dto.ExerciseView
	decodeEnvelope(t, resp, &exercises)
	require.Empty(t, exercises)

	resp = p.do(t, http.MethodPost, "/api/v1/professor/assignments/"+id+"/publish", profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/student/exercises", studentToken, nil, "")
	decodeEnvelope(t, resp, &exercises)
	require.Len(t, exercises, 1)
	require.Equal(t, "Sous-requêtes", exercises[0].Title)

	resp = p.doJSON(t, http.MethodPut, "/api/v1/professor/grades", profToken, map[string]interface{}{
		"student_id": alice.ID, "assignment_id": created.ID, "value": 25,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = p.doJSON(t, http.MethodPut, "/api/v1/professor/grades", profToken, map[string]interface{}{
		"student_id": alice.ID, "assignment_id": created.ID, "value": 16.5,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/student/dashboard", studentToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stats dto.StudentStats
	decodeEnvelope(t, resp, &stats)
	require.Equal(t, 16.5, stats.AverageGrade)
	require.Equal(t, 1, stats.Rank)
	require.Equal(t, 1, stats.TotalStudents)
	require.Equal(t, int64(1), stats.Pending)

	resp = p.do(t, http.MethodGet, "/api/v1/student/grades", studentToken, nil, "")
	var grades []dto.GradeResponse
	decodeEnvelope(t, resp, &grades)
	require.Len(t, grades, 1)
	require.True(t, grades[0].Passing)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/analytics", profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var analytics dto.ClassAnalytics
	decodeEnvelope(t, resp, &analytics)
	require.Equal(t, 16.5, analytics.AverageGrade)
	require.Equal(t, 100, analytics.SuccessRate)
	require.Equal(t, int64(1), analytics.PublishedCount)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/analytics", studentToken, nil, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/assignments?mine=true&page=1&page_size=5", profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed []dto.AssignmentResponse
	env := decodeEnvelope(t, resp, &listed)
	require.Len(t, listed, 1)
	require.Contains(t, string(env.Meta), `"total_items":1`)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/activity?action=grade.upserted", profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var activity []dto.ActivityResponse
	decodeEnvelope(t, resp, &activity)
	require.Len(t, activity, 1)
	require.Equal(t, "grade", activity[0].EntityType)
	require.NotEmpty(t, activity[0].CorrelationID)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/activity?entity_type=assignment&since="+now.Add(-time.Hour).Format(time.DateOnly), profToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeEnvelope(t, resp, &activity)
	require.Len(t, activity, 2)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/activity?since=hier", profToken, nil, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = p.do(t, http.MethodDelete, "/api/v1/professor/assignments/"+id, profToken, nil, "")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = p.do(t, http.MethodGet, "/api/v1/professor/assignments/"+id, profToken, nil, "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
