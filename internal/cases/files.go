package cases

import (
	"errors"
	"mime"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

const (
	maxFilesPerUpload = 10
	maxFileSize       = 10 * 1024 * 1024
	signedURLSeconds  = 60
)

var allowedMime = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

func (h *Handler) requireStore() error {
	if h.store == nil || !h.store.Configured() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "document storage is not configured")
	}
	return nil
}

// Upload Case Files godoc
// @Summary      Upload case documents (PDF/PNG/JPEG)
// @Description  Uploads up to 10 files to object storage. Answers 201 even when some files fail; check each item's "error".
// @Tags         files
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id     path      string   true  "case id (uuid)"
// @Param        files  formData  []file   true  "PDF/PNG/JPEG (max 10)"
// @Success      201    {object}  map[string]any  "results: id, key, name, size, error"
// @Failure      400    {object}  models.ErrorResponse
// @Failure      404    {object}  models.ErrorResponse
// @Failure      503    {object}  models.ErrorResponse
// @Router       /cases/{id}/files [post]
func (h *Handler) UploadFile(c *fiber.Ctx) error {
	if err := h.requireStore(); err != nil {
		return err
	}
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.caseExists(caseID); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required; use files[]")
	}
	// Swagger UI posts the key as "files"
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "files are required (use key: files[])")
	}
	if len(files) > maxFilesPerUpload {
		return fiber.NewError(fiber.StatusBadRequest, "max 10 files allowed")
	}

	results := make([]fiber.Map, 0, len(files))
	for _, fh := range files {
		res := fiber.Map{"name": fh.Filename, "size": fh.Size}

		if fh.Size <= 0 {
			res["error"] = "empty file"
			results = append(results, res)
			continue
		}
		if fh.Size > maxFileSize {
			res["error"] = "max 10MB per file"
			results = append(results, res)
			continue
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
		}
		if !allowedMime[ct] {
			res["error"] = "only PDF, PNG or JPEG are allowed"
			results = append(results, res)
			continue
		}

		key := h.store.MakeObjectKey(caseID.String(), fh.Filename)

		f, err := fh.Open()
		if err != nil {
			res["error"] = "open failed"
			results = append(results, res)
			continue
		}
		err = h.store.Upload(c.UserContext(), key, f, ct)
		_ = f.Close()
		if err != nil {
			h.log.Error("upload document", "case", caseID, "key", key, "error", err)
			res["error"] = "upload failed"
			results = append(results, res)
			continue
		}

		rec := models.CaseFile{
			CaseID:       caseID,
			Key:          key,
			Mime:         ct,
			Size:         int(fh.Size),
			OriginalName: fh.Filename,
		}
		if err := h.db.Create(&rec).Error; err != nil {
			res["error"] = "database error"
			results = append(results, res)
			continue
		}

		res["id"] = rec.ID
		res["key"] = rec.Key
		results = append(results, res)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"results": results})
}

// Signed Download URL godoc
// @Summary      Get signed URL
// @Description  Short-lived signed URL for a case document
// @Tags         files
// @Security     BearerAuth
// @Produce      json
// @Param        fileID  path string true "file id (uuid)"
// @Success      200  {object}  map[string]any  "url, expires_in, now"
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /files/{fileID}/signed-url [get]
func (h *Handler) SignedDownloadURL(c *fiber.Ctx) error {
	if err := h.requireStore(); err != nil {
		return err
	}
	fileID, err := parseID(c, "fileID")
	if err != nil {
		return err
	}

	var cf models.CaseFile
	if err := h.db.First(&cf, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	url, err := h.store.SignedURL(c.UserContext(), cf.Key, signedURLSeconds)
	if err != nil {
		h.log.Error("sign document url", "file", fileID, "error", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": signedURLSeconds, "now": time.Now().UTC()})
}

// Delete Case File godoc
// @Summary      Delete a case document
// @Description  Removes the object, then its metadata row
// @Tags         files
// @Security     BearerAuth
// @Param        fileID  path string true "file id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /files/{fileID} [delete]
func (h *Handler) DeleteFile(c *fiber.Ctx) error {
	if err := h.requireStore(); err != nil {
		return err
	}
	fileID, err := parseID(c, "fileID")
	if err != nil {
		return err
	}

	var cf models.CaseFile
	if err := h.db.First(&cf, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if err := h.store.Delete(c.UserContext(), cf.Key); err != nil {
		h.log.Error("delete document", "file", fileID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not delete document")
	}
	if err := h.db.Delete(&models.CaseFile{}, "id = ?", cf.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusNoContent)
}
