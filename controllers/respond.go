package controllers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"diettracker/middlewares"
	"diettracker/services"
	"diettracker/utils"
)

// MaxImageBytes bounds uploaded photos.
const MaxImageBytes = 10 << 20

var errImageRequired = errors.New("image is required")

func currentUser(c *gin.Context) string { return c.GetString(middlewares.UserIDKey) }

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var ee *services.EstimationError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &ee):
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI analysis failed", "detail": ee.Error()})
	default:
		log.Printf("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// readImage accepts a multipart "image" file or an "image_base64" field
// (plain base64 or data URL).
func readImage(c *gin.Context) ([]byte, string, error) {
	if fh, err := c.FormFile("image"); err == nil {
		if fh.Size > MaxImageBytes {
			return nil, "", fmt.Errorf("image too large (max %dMB)", MaxImageBytes>>20)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
		if err != nil {
			return nil, "", err
		}
		return checkImage(data, utils.PickMIME("", fh.Header.Get("Content-Type"), data))
	}
	if b64 := c.PostForm("image_base64"); b64 != "" {
		data, hint, err := utils.DecodeBase64MaybeDataURL(b64)
		if err != nil {
			return nil, "", errors.New("invalid base64 image")
		}
		return checkImage(data, utils.PickMIME("", hint, data))
	}
	return nil, "", errImageRequired
}

func checkImage(data []byte, mime string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errImageRequired
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image too large (max %dMB)", MaxImageBytes>>20)
	}
	if !utils.AllowedImageTypes[mime] {
		return nil, "", errors.New("only JPEG, PNG, and WebP images are supported")
	}
	return data, mime, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

// parseLimit reads ?limit=, enforcing [1, max].
func parseLimit(c *gin.Context, def, max int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		badRequest(c, fmt.Sprintf("limit must be between 1 and %d", max))
		return 0, false
	}
	return n, true
}
