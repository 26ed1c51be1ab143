package jobs

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/models"
)

type CreateJobRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Budget      int64    `json:"budget" validate:"required,gt=0"`
	Currency    string   `json:"currency" validate:"required,len=3"`
	SkillLevels []string `json:"skill_levels"`
	Files       []string `json:"files"`
}

// CreateJob posts a new project for the authenticated buyer.
func CreateJob(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(CreateJobRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	var desc *string
	if req.Description != "" {
		desc = &req.Description
	}
	if req.SkillLevels == nil {
		req.SkillLevels = []string{}
	}
	if req.Files == nil {
		req.Files = []string{}
	}

	jobID := uuid.New().String()
	_, err := db.Conn.Exec(context.Background(), `
		INSERT INTO jobs (id, buyer_id, title, description, budget, status, currency, skill_levels, files)
		VALUES ($1, $2, $3, $4, $5, 'open', $6, $7, $8)
	`, jobID, uid, req.Title, desc, req.Budget, strings.ToUpper(req.Currency), req.SkillLevels, req.Files)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create job"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"job_id": jobID})
}

// ListJobs returns postings, newest first. Filter with status, buyer_id,
// limit and offset.
func ListJobs(c echo.Context) error {
	status := c.QueryParam("status")
	buyerID := c.QueryParam("buyer_id")
	limit, offset := 20, 0
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	query := `
		SELECT id, buyer_id, title, description, budget, status, currency, skill_levels, files, created_at
		FROM jobs WHERE ($1 = '' OR status = $1) AND ($2 = '' OR buyer_id::text = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := db.Conn.Query(context.Background(), query, status, buyerID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch jobs"})
	}
	defer rows.Close()

	items := []models.Job{}
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.BuyerID, &j.Title, &j.Description, &j.Budget,
			&j.Status, &j.Currency, &j.SkillLevels, &j.Files, &j.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse job record"})
		}
		items = append(items, j)
	}

	var total int64
	if err := db.Conn.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM jobs WHERE ($1 = '' OR status = $1) AND ($2 = '' OR buyer_id::text = $2)
	`, status, buyerID).Scan(&total); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not count jobs"})
	}

	return c.JSON(http.StatusOK, echo.Map{"jobs": items, "total": total})
}

// GetJob returns one posting.
func GetJob(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing job id"})
	}

	var j models.Job
	err := db.Conn.QueryRow(context.Background(), `
		SELECT id, buyer_id, title, description, budget, status, currency, skill_levels, files, created_at
		FROM jobs WHERE id = $1
	`, id).Scan(&j.ID, &j.BuyerID, &j.Title, &j.Description, &j.Budget,
		&j.Status, &j.Currency, &j.SkillLevels, &j.Files, &j.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}

	return c.JSON(http.StatusOK, j)
}
