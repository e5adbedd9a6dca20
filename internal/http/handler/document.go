package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/http/dto"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
	"basegraph.app/insight/internal/store"
)

type DocumentHandler struct {
	documents service.DocumentService
}

func NewDocumentHandler(documents service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "document not found")
		return
	}

	c.JSON(http.StatusOK, dto.ToDocumentResponse(doc))
}

func (h *DocumentHandler) Progress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	info, err := h.documents.Progress(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "document not found")
		return
	}

	c.JSON(http.StatusOK, dto.ToProgressResponse(info))
}

func (h *DocumentHandler) History(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		respondError(c, err, "")
		return
	}

	page, err := h.documents.History(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "document not found")
		return
	}

	c.JSON(http.StatusOK, dto.ToHistoryResponse(page))
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "document not found")
		return
	}

	c.JSON(http.StatusOK, dto.DeleteDocumentResponse{DocumentID: id, Deleted: true})
}

// historyFilter parses the listing query parameters. Paging values are
// passed through raw; the service clamps them.
func historyFilter(c *gin.Context) (store.HistoryFilter, error) {
	var filter store.HistoryFilter
	var err error

	if filter.Page, err = intQuery(c, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = intQuery(c, "page_size"); err != nil {
		return filter, err
	}

	if raw := c.Query("document_type"); raw != "" {
		fileType, ok := model.FileTypeFromExtension(strings.ToLower(raw))
		if !ok {
			return filter, apperr.Newf(apperr.KindBadRequest, "unknown document type %q", raw)
		}
		filter.FileType = &fileType
	}

	if raw := c.Query("status"); raw != "" {
		switch status := model.DocumentStatus(raw); status {
		case model.DocumentStatusPending, model.DocumentStatusProcessing,
			model.DocumentStatusCompleted, model.DocumentStatusFailed,
			model.DocumentStatusTimeout, model.DocumentStatusLowQuality:
			filter.Status = &status
		default:
			return filter, apperr.Newf(apperr.KindBadRequest, "unknown status %q", raw)
		}
	}

	filter.Search = strings.TrimSpace(c.Query("search"))

	if filter.From, err = dateQuery(c, "start_date", false); err != nil {
		return filter, err
	}
	if filter.To, err = dateQuery(c, "end_date", true); err != nil {
		return filter, err
	}
	return filter, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Newf(apperr.KindBadRequest, "invalid %s %q", name, raw)
	}
	return value, nil
}

// dateQuery accepts RFC 3339 or a bare date. A bare end date is
// widened to the last instant of that day so the bound stays inclusive.
func dateQuery(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Newf(apperr.KindBadRequest, "invalid %s %q, want YYYY-MM-DD or RFC 3339", name, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
