package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"agroai/internal/middleware"
	"agroai/internal/models"
	"agroai/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatRequest struct {
	Message string `json:"message" form:"message"`
}

type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

// Chat answers a text message. A multipart request carrying an image is treated
// as a diagnosis request.
func (h *Handler) Chat(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.limitBody(c)
		if _, err := c.FormFile("image"); err == nil {
			h.diagnose(c, user)
			return
		}
	}

	var req ChatRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	exchange, err := h.gateway.Chat(c.Request.Context(), user, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchange)
}

func (h *Handler) Diagnose(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	h.limitBody(c)
	h.diagnose(c, user)
}

func (h *Handler) diagnose(c *gin.Context, user *models.User) {
	image, err := h.readImage(c)
	if err != nil {
		var upErr *uploadError
		if errors.As(err, &upErr) {
			c.JSON(upErr.status, gin.H{"error": upErr.msg})
			return
		}
		h.respondError(c, err)
		return
	}

	result, err := h.gateway.Diagnose(c.Request.Context(), user, image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
}

func (h *Handler) readImage(c *gin.Context) (models.Image, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.Image{}, &uploadError{status: http.StatusRequestEntityTooLarge, msg: "Image is too large"}
		}
		return models.Image{}, service.ErrNoImage
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.Image{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.Image{}, err
	}

	return models.Image{
		Filename: fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
