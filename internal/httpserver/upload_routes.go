package httpserver

import (
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pairchat/internal/config"
	"pairchat/internal/storage"
)

const maxUploadBytes = 10 << 20 // 10MB

// handleUploadImage accepts a multipart "image" field, stores the blob, and
// returns the URL a message's imageUrl can reference.
//
// @Summary      Upload an image
// @Tags         messages
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        image formData file true "Image file"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /messages/upload [post]
func handleUploadImage(blobs storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to parse multipart form"})
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image file required"})
			return
		}
		defer file.Close()

		ext := filepath.Ext(header.Filename)
		filename := strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()[:8] + ext

		url, err := blobs.Save(r.Context(), filename, header.Header.Get("Content-Type"), file, header.Size)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"imageUrl": url})
	}
}

// UploadFileRoutes serves previously uploaded files from the local upload
// directory. Only meaningful for the disk backend; S3 URLs point at the
// bucket directly.
func UploadFileRoutes(cfg *config.Config) chi.Router {
	r := chi.NewRouter()

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" {
			http.Error(w, "missing filename", http.StatusBadRequest)
			return
		}
		// Prevent path traversal.
		if filepath.Base(filename) != filename {
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.UploadDir, filename))
	})

	return r
}
