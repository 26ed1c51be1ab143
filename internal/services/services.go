package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/models"
)

type CreateServiceRequest struct {
	Title              string                     `json:"title" validate:"required"`
	Description        string                     `json:"description" validate:"required"`
	Price              int64                      `json:"price" validate:"required,gt=0"`
	Currency           string                     `json:"currency" validate:"required,len=3"`
	Tags               []string                   `json:"tags"`
	Images             []string                   `json:"images"`
	AdditionalServices []models.AdditionalService `json:"additional_services"`
}

// CreateService lists a new offering for the authenticated seller.
func CreateService(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(CreateServiceRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	addons, err := json.Marshal(req.AdditionalServices)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid additional_services"})
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}
	if req.Images == nil {
		req.Images = []string{}
	}

	serviceID := uuid.New().String()
	_, err = db.Conn.Exec(context.Background(), `
		INSERT INTO services (id, seller_id, title, description, price, currency, tags, images, additional_services)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, serviceID, uid, req.Title, req.Description, req.Price, strings.ToUpper(req.Currency),
		req.Tags, req.Images, addons)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create service"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"service_id": serviceID})
}

// ListServices is the public discovery endpoint. Supports q, tag, min_price,
// max_price, seller_id, limit and offset; responds with rows plus total count.
func ListServices(c echo.Context) error {
	limit, offset := pagination(c)

	var where []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q := c.QueryParam("q"); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if tag := c.QueryParam("tag"); tag != "" {
		add("$%d = ANY(tags)", tag)
	}
	if v := c.QueryParam("min_price"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			add("price >= $%d", n)
		}
	}
	if v := c.QueryParam("max_price"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			add("price <= $%d", n)
		}
	}
	if sid := c.QueryParam("seller_id"); sid != "" {
		add("seller_id = $%d", sid)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := db.Conn.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM services"+clause, args...).Scan(&total); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not count services"})
	}

	query := fmt.Sprintf(`
		SELECT id, seller_id, title, description, price, currency, tags, images, additional_services, created_at
		FROM services%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch services"})
	}
	defer rows.Close()

	items := []models.Service{}
	for rows.Next() {
		var s models.Service
		var addons []byte
		if err := rows.Scan(&s.ID, &s.SellerID, &s.Title, &s.Description, &s.Price,
			&s.Currency, &s.Tags, &s.Images, &addons, &s.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse service record"})
		}
		if err := json.Unmarshal(addons, &s.AdditionalServices); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "corrupt additional_services payload"})
		}
		items = append(items, s)
	}

	return c.JSON(http.StatusOK, echo.Map{"services": items, "total": total})
}

// GetMyServices returns the authenticated seller's own listings.
func GetMyServices(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT id, seller_id, title, description, price, currency, tags, images, additional_services, created_at
		FROM services WHERE seller_id = $1 ORDER BY created_at DESC
	`, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch services"})
	}
	defer rows.Close()

	items := []models.Service{}
	for rows.Next() {
		var s models.Service
		var addons []byte
		if err := rows.Scan(&s.ID, &s.SellerID, &s.Title, &s.Description, &s.Price,
			&s.Currency, &s.Tags, &s.Images, &addons, &s.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse service record"})
		}
		if err := json.Unmarshal(addons, &s.AdditionalServices); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "corrupt additional_services payload"})
		}
		items = append(items, s)
	}

	return c.JSON(http.StatusOK, echo.Map{"services": items})
}

func pagination(c echo.Context) (limit, offset int) {
	limit, offset = 20, 0
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
	return limit, offset
}
