package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/staffbook/internal/storage"
	"github.com/yoockh/staffbook/internal/utils"
)

const MsgFileNotFound = "File not found"

// UploadHandler serves stored images read-only.
type UploadHandler struct {
	files  storage.Opener
	prefix string
}

func NewUploadHandler(files storage.Opener) *UploadHandler {
	return &UploadHandler{files: files, prefix: storage.DefaultPrefix}
}

// Serve handles GET /uploads/*name.
func (h *UploadHandler) Serve(c *gin.Context) {
	const op = "UploadHandler.Serve"

	storedPath := h.prefix + "/" + strings.TrimPrefix(c.Param("name"), "/")

	obj, err := h.files.Open(c.Request.Context(), storedPath)
	if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrInvalidPath) {
		writeError(c, utils.E(utils.CodeNotFound, op, MsgFileNotFound, err))
		return
	}
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open stored file", err))
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}
