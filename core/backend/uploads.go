package backend

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/backend/kss"
	"github.com/harman-mundh/localcommunity/core/logger"
)

const imagesPath = "/api/v1/images"

// maximum size of an uploaded image
const maxUploadSize = 10 << 20

// the content type served for blobs stored without an image type
const defaultImageType = "image/jpeg"

// handleUploads adds the image upload and download routes
func (b *Backend) handleUploads() {
	b.handle(imagesPath, b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.uploadImage(w, r, requester)
	}), http.MethodPost)

	b.handle(imagesPath+"/{uuid:[0-9a-f-]{36}}", b.downloadImage, http.MethodGet)
}

func (b *Backend) uploadImage(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("upload")
	if err != nil {
		b.fail(w, r, core.Validation("missing multipart file upload", err.Error()))
		return
	}
	defer file.Close()

	// the stored type comes from the content, never from the client
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		b.fail(w, r, core.Validation("cannot read upload", err.Error()))
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !isImage(contentType) {
		b.fail(w, r, core.Validation("only images can be uploaded", contentType))
		return
	}
	key := uuid.New().String()
	if err := b.kss.Put(r.Context(), key, io.MultiReader(bytes.NewReader(head), file), contentType); err != nil {
		b.fail(w, r, upstream("4792", err))
		return
	}
	logger.FromContext(r.Context()).Infof("stored image %s of %d bytes for user %d", key, header.Size, requester.ID)
	b.metrics.mutations.WithLabelValues("images", string(core.OperationCreate)).Inc()
	b.respond(w, http.StatusCreated, map[string]interface{}{
		"links": map[string]string{"path": imagesPath + "/" + key},
	})
}

func (b *Backend) downloadImage(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["uuid"]
	if _, err := uuid.Parse(key); err != nil {
		b.fail(w, r, core.NotFound("image"))
		return
	}
	reader, info, err := b.kss.Open(r.Context(), key)
	if errors.Is(err, kss.ErrNotFound) {
		b.fail(w, r, core.NotFound("image"))
		return
	}
	if err != nil {
		b.fail(w, r, upstream("4793", err))
		return
	}
	defer reader.Close()

	contentType := info.ContentType
	if !isImage(contentType) {
		contentType = defaultImageType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4794: cannot stream image %s", key)
	}
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
