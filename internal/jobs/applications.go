package jobs

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/models"
)

// Apply lets a seller apply to an open job. The {job, seller} pair is unique.
func Apply(c echo.Context) error {
	sellerID, ok := c.Get("user_id").(string)
	if !ok || sellerID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	jobID := c.Param("id")
	if jobID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing job id"})
	}

	var status string
	var buyerID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT status, buyer_id FROM jobs WHERE id = $1`, jobID).Scan(&status, &buyerID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}
	if status != string(models.JobStatusOpen) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "job is not open for applications"})
	}
	if buyerID == sellerID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot apply to your own job"})
	}

	appID := uuid.New().String()
	_, err = db.Conn.Exec(context.Background(), `
		INSERT INTO job_applications (id, job_id, seller_id, status)
		VALUES ($1, $2, $3, 'pending')
	`, appID, jobID, sellerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return c.JSON(http.StatusConflict, echo.Map{"error": "already applied to this job"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create application"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"application_id": appID})
}

// ListApplications returns applications for a job; only its buyer may view.
func ListApplications(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	jobID := c.Param("id")
	var buyerID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT buyer_id FROM jobs WHERE id = $1`, jobID).Scan(&buyerID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}
	if buyerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your job"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT id, job_id, seller_id, status, created_at
		FROM job_applications WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch applications"})
	}
	defer rows.Close()

	items := []models.JobApplication{}
	for rows.Next() {
		var a models.JobApplication
		if err := rows.Scan(&a.ID, &a.JobID, &a.SellerID, &a.Status, &a.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse application"})
		}
		items = append(items, a)
	}

	return c.JSON(http.StatusOK, echo.Map{"applications": items})
}

type ApplicationDecision struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

// DecideApplication lets the job's buyer accept or reject an application.
// Acceptance here is advisory; money only moves through contract creation.
func DecideApplication(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	appID := c.Param("application_id")
	req := new(ApplicationDecision)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	res, err := db.Conn.Exec(context.Background(), `
		UPDATE job_applications a SET status = $1
		FROM jobs j
		WHERE a.id = $2 AND a.job_id = j.id AND j.buyer_id = $3 AND a.status = 'pending'
	`, req.Status, appID, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update application"})
	}
	if res.RowsAffected() == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "application not found, not yours, or already decided"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "application " + req.Status})
}
