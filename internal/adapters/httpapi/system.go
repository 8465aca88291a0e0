package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"arbitros/docs/openapi"
	"arbitros/internal/core"
)

func (h *Handler) root(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"message":       "API Gateway de Árbitros",
		"version":       h.version,
		"documentation": "/api-docs",
	})
}

func apiDocs(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", openapi.Spec())
}

func (h *Handler) health(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"status":        "UP",
		"timestamp":     h.timestamp(),
		"springBootApi": h.upstream,
	})
}

func (h *Handler) info(c *gin.Context) {
	id, short := h.container()
	writeJSON(c, http.StatusOK, gin.H{
		"containerId":      id,
		"containerShortId": short,
		"timestamp":        h.timestamp(),
		"version":          h.version,
		"platform":         runtime.GOOS,
		"architecture":     runtime.GOARCH,
		"uptime":           h.now().Sub(h.started).Seconds(),
	})
}

func (h *Handler) listImages(c *gin.Context) {
	id, short := h.container()
	images, err := h.images.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list bucket", "kind", core.Kind(err), "error", err)
		writeJSON(c, http.StatusInternalServerError, gin.H{
			"containerId": id,
			"error":       "Error al listar imágenes de S3",
			"message":     err.Error(),
		})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"containerId":      id,
		"containerShortId": short,
		"total":            len(images),
		"bucket":           h.images.Bucket(),
		"images":           images,
		"timestamp":        h.timestamp(),
	})
}

// orphans reports bucket objects and references that have drifted apart. It never deletes.
func (h *Handler) orphans(c *gin.Context) {
	report, err := h.coord.Reconcile(c.Request.Context(), core.ReconcileOptions{})
	if err != nil {
		h.writeCoreError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

func (h *Handler) container() (string, string) {
	name, err := h.hostname()
	if err != nil {
		name = "unknown"
	}
	short := name
	if len(short) > 12 {
		short = short[:12]
	}
	return name, short
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}
