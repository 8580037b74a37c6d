package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/logx"
	"justchat/internal/pkg/req"
	"justchat/internal/pkg/resp"
)

const (
	// MaxImageSize is the largest accepted image upload.
	MaxImageSize int64 = 10 << 20 // 10 MB

	// ImageField is the multipart field carrying a chat image.
	ImageField = "image"

	// sniffLen is how much of a file is read to detect its type.
	sniffLen = 3072
)

// allowedImageTypes maps detected MIME types to the extension stored in the key.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// HandleUploadImage stores a chat image and returns its URL for a later send.
func HandleUploadImage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		url, customErr := storeImage(r, deps, ImageField, "messages")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"imageUrl": url})
	}
}

// storeImage validates the image in field of a parsed multipart form and uploads
// it under prefix. The type is detected from content, never from the client's header.
func storeImage(r *http.Request, deps *AppDeps, field, prefix string) (string, *errs.CustomError) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", errs.NewError(errs.ErrFileMissing)
		}
		return "", errs.NewError(errs.ErrFormParseFailed)
	}
	defer file.Close()

	if header.Size > MaxImageSize {
		return "", errs.NewError(errs.ErrFileSizeTooLarge)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errs.NewError(errs.ErrFormParseFailed)
	}

	contentType := mimetype.Detect(head[:n]).String()
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		logx.Warn("Upload rejected: not an allowed image type", "detected", contentType)
		return "", errs.NewError(errs.ErrFileTypeInvalid)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", errs.NewError(errs.ErrFormParseFailed)
	}

	key := prefix + "/" + uuid.NewString() + ext
	url, err := deps.Storage.Upload(r.Context(), key, contentType, header.Size, file)
	if err != nil {
		logx.Error(err, "image upload failed", "key", key)
		return "", errs.NewError(errs.ErrFileStorageFailed)
	}

	return url, nil
}
