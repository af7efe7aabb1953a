package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ESMP/core/auth"
	"ESMP/logger"
	"ESMP/metrics"
	"ESMP/storage"
)

type downloadRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Password string `json:"password"`
}

// DownloadHandler checks the shared passphrase, then streams the remote
// audio file back as an attachment. Nothing is fetched on a mismatch.
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.passphrase.Verify(req.Password); err != nil {
		metrics.Downloads.WithLabelValues("unauthorized").Inc()
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "비밀번호가 일치하지 않습니다.")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify passphrase")
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	name := strings.TrimSpace(req.Filename)
	if name == "" {
		name = "download"
	}

	obj, err := h.fetcher.Open(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			metrics.Downloads.WithLabelValues("not_found").Inc()
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		metrics.Downloads.WithLabelValues("upstream_error").Inc()
		logger.Error("download fetch failed", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "다운로드에 실패했습니다.")
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", storage.AttachmentHeader(name))
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, obj.Body)
	if err != nil {
		metrics.Downloads.WithLabelValues("aborted").Inc()
		logger.Warn("download stream interrupted",
			logger.String("filename", name),
			logger.Int64("bytes", n),
			logger.ErrorField(err))
		return
	}
	metrics.Downloads.WithLabelValues("ok").Inc()
}
