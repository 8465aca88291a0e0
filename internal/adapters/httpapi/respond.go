package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"arbitros/internal/core"
	"arbitros/internal/records"
)

func writeJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func writeError(c *gin.Context, status int, message string) {
	writeJSON(c, status, gin.H{"error": message})
}

// writeCoreError maps a coordinator or store error onto its status and an {error} body.
func (h *Handler) writeCoreError(c *gin.Context, err error) {
	status := core.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "kind", core.Kind(err), "error", err)
	}
	writeError(c, status, err.Error())
}

// mirror copies an upstream answer. A transport failure has no answer to
// copy and becomes a 500.
func (h *Handler) mirror(c *gin.Context, resp records.Response, err error) {
	var se *records.StoreError
	if err != nil && (!errors.As(err, &se) || se.StatusCode == 0) {
		h.logger.Error("upstream unreachable", "path", c.FullPath(), "error", err)
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		c.Status(resp.StatusCode)
		return
	}
	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	c.Data(resp.StatusCode, ct, resp.Body)
}

// recordID parses :id; it writes the 400 itself when the id is not an integer.
func recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "ID inválido")
		return 0, false
	}
	return id, true
}
