package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/http/dto"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
)

type UploadHandler struct {
	uploads service.UploadService
}

func NewUploadHandler(uploads service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload accepts a multipart document and registers its processing
// task. The optional comma-separated views parameter narrows which
// views the pipeline generates.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest,
			dto.NewErrorResponse(apperr.KindBadRequest, "multipart field \"file\" is required", nil))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindServerError, err), "")
		return
	}
	defer file.Close()

	doc, task, err := h.uploads.Upload(c.Request.Context(),
		fileHeader.Filename, fileHeader.Size, file, viewsParam(c))
	if err != nil {
		respondError(c, err, "document not found")
		return
	}

	c.JSON(http.StatusOK, dto.ToUploadResponse(doc, task))
}

// viewsParam reads the optional views hint from the query string or
// the form body. Unknown names are left for the service to reject.
func viewsParam(c *gin.Context) []model.ViewName {
	raw := c.Query("views")
	if raw == "" {
		raw = c.PostForm("views")
	}
	return splitViews(raw)
}

func splitViews(raw string) []model.ViewName {
	if raw == "" {
		return nil
	}
	var views []model.ViewName
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			views = append(views, model.ViewName(name))
		}
	}
	return views
}
