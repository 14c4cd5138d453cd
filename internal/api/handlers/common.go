package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/staffbook/internal/storage"
	"github.com/yoockh/staffbook/internal/utils"
)

// ProfilePicField is the multipart field carrying the optional image.
const ProfilePicField = "profilePic"

// MsgBody is the {msg} envelope every non-record response uses.
type MsgBody struct {
	Msg string `json:"msg"`
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(utils.HTTPStatus(err), MsgBody{Msg: utils.Message(err)})
}

// ProfilePicture returns the uploaded image, or nil when the request has none.
// The returned close func must be called once the upload is consumed.
func ProfilePicture(c *gin.Context) (*storage.Upload, func(), error) {
	fh, err := c.FormFile(ProfilePicField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*storage.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	up := &storage.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}
	return up, func() { _ = f.Close() }, nil
}
