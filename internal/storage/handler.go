package storage

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// 20 MiB, matches the chat attachment limit enforced client-side.
const maxUploadBytes = 20 << 20

// Handler accepts multipart uploads for chat attachments and avatars.
type Handler struct {
	uploader Uploader
}

func NewHandler(u Uploader) *Handler {
	return &Handler{uploader: u}
}

// Upload stores a single multipart "file" part under the given bucket and
// returns its public URL. File names are randomized to avoid collisions.
func (h *Handler) Upload(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	bucket := c.Param("bucket")
	switch bucket {
	case "chat", "avatars", "services":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown bucket"})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing file"})
	}
	if fh.Size > maxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read upload"})
	}
	defer src.Close()

	name := fmt.Sprintf("%s%s", uuid.New().String(), filepath.Ext(fh.Filename))
	url, err := h.uploader.Upload(c.Request().Context(), bucket, name, src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store upload"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"url":       url,
		"file_name": fh.Filename,
		"file_size": fh.Size,
	})
}
