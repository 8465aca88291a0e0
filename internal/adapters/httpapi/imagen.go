package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"arbitros/internal/assets"
	"arbitros/internal/core"
)

// uploadField is the multipart field carrying the image.
const uploadField = "imagen"

func (h *Handler) attachImage(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, assets.MaxUploadBytes+1<<20)
	fh, err := c.FormFile(uploadField)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), err == nil && fh.Size > assets.MaxUploadBytes:
		writeError(c, http.StatusBadRequest, fmt.Sprintf("La imagen supera el límite de %d bytes", assets.MaxUploadBytes))
		return
	case err != nil:
		writeError(c, http.StatusBadRequest, "No se proporcionó ninguna imagen")
		return
	}
	mimeType := assets.NormalizeMimeType(fh.Header.Get("Content-Type"))
	if !assets.AllowedMimeType(mimeType) {
		writeError(c, http.StatusBadRequest, "Tipo de archivo no válido. Solo se permiten imágenes (JPEG, PNG, GIF, WEBP)")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "No se pudo leer la imagen")
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, assets.MaxUploadBytes+1))
	if err != nil {
		writeError(c, http.StatusBadRequest, "No se pudo leer la imagen")
		return
	}

	policy := core.CleanupBestEffort
	if strict, _ := strconv.ParseBool(c.Query("strict")); strict {
		policy = core.CleanupStrict
	}
	res, err := h.coord.Attach(c.Request.Context(), id, core.Upload{
		Data:         data,
		OriginalName: fh.Filename,
		MimeType:     mimeType,
	}, policy)
	if err != nil {
		h.writeCoreError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"message":  "Imagen subida exitosamente",
		"imageUrl": res.URL,
		"arbitro":  res.Record,
	})
}

func (h *Handler) detachImage(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	rec, err := h.coord.Detach(c.Request.Context(), id)
	if err != nil {
		h.writeCoreError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"message": "Imagen eliminada exitosamente",
		"arbitro": rec,
	})
}
