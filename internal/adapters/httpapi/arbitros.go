package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxRecordBody caps JSON bodies forwarded upstream.
const maxRecordBody = 1 << 20

func (h *Handler) listRecords(c *gin.Context) {
	resp, err := h.records.List(c.Request.Context())
	h.mirror(c, resp, err)
}

func (h *Handler) searchRecord(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		writeError(c, http.StatusBadRequest, "Username es requerido")
		return
	}
	resp, err := h.records.Search(c.Request.Context(), username)
	h.mirror(c, resp, err)
}

func (h *Handler) recordByCedula(c *gin.Context) {
	resp, err := h.records.GetByCedula(c.Request.Context(), c.Param("cedula"))
	h.mirror(c, resp, err)
}

func (h *Handler) getRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	resp, err := h.records.Fetch(c.Request.Context(), id)
	h.mirror(c, resp, err)
}

func (h *Handler) createRecord(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	resp, err := h.records.Create(c.Request.Context(), body)
	h.mirror(c, resp, err)
}

func (h *Handler) replaceRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	resp, err := h.records.Replace(c.Request.Context(), id, body)
	h.mirror(c, resp, err)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	resp, err := h.records.Delete(c.Request.Context(), id)
	h.mirror(c, resp, err)
}

func (h *Handler) recordsWithImages(c *gin.Context) {
	recs, err := h.records.WithImages(c.Request.Context())
	if err != nil {
		h.writeCoreError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, recs)
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordBody))
	if err != nil {
		writeError(c, http.StatusBadRequest, "cuerpo de la petición inválido")
		return nil, false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	return body, true
}
