package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/npezzotti/diayouth/internal/types"
	"github.com/teris-io/shortid"
)

const (
	maxUploadSize   = 5 << 20
	photoListLimit  = 100
	uploadFormField = "file"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// storeUpload stores the multipart image of r in bucket under prefix and
// returns the object name.
func (s *DiaYouthApp) storeUpload(w http.ResponseWriter, r *http.Request, bucket, prefix string) (string, error) {
	if s.storage == nil {
		return "", NewServiceUnavailableError(errStorageDisabled)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile(uploadFormField)
	if err != nil {
		return "", NewInvalidInputError("multipart field \"file\" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", NewInvalidInputError("upload too large")
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", NewInvalidInputError("unsupported image type")
	}

	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate object name: %w", err)
	}
	name := id + ext
	if prefix != "" {
		name = prefix + "/" + name
	}

	if err := s.storage.Upload(r.Context(), bucket, name, contentType, bytes.NewReader(data)); err != nil {
		return "", NewServiceUnavailableError(fmt.Errorf("upload %s: %w", name, err))
	}

	s.log.WithField("bucket", bucket).WithField("object", name).Info("photo uploaded")
	return name, nil
}

func (s *DiaYouthApp) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	name, err := s.storeUpload(w, r, s.photoBucket, "")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Photo{Name: name, URL: s.storage.PublicURL(s.photoBucket, name)})
}

func (s *DiaYouthApp) listPhotos(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.fail(w, r, NewServiceUnavailableError(errStorageDisabled))
		return
	}

	objects, err := s.storage.List(r.Context(), s.photoBucket, "", photoListLimit)
	if err != nil {
		s.fail(w, r, NewServiceUnavailableError(err))
		return
	}

	photos := make([]types.Photo, 0, len(objects))
	for _, o := range objects {
		photos = append(photos, types.Photo{
			Name:      o.Name,
			URL:       s.storage.PublicURL(s.photoBucket, o.Name),
			CreatedAt: o.CreatedAt,
		})
	}
	s.writeJson(w, http.StatusOK, photos)
}
