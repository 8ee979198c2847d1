package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
)

// ExportServiceInterface はエクスポートハンドラーが必要とするサービスインターフェース。
type ExportServiceInterface interface {
	StudentsCSV(ctx context.Context, actorID string, w io.Writer) error
	TimetablePDF(ctx context.Context, actorID string, w io.Writer, classID string) error
}

// ExportHandler は名簿・時間割のファイル出力ハンドラー。
// 出力はバッファに生成してから送信する。途中でエラーが起きた場合に
// 不完全なファイルではなくJSONエラーを返すため。
type ExportHandler struct {
	service ExportServiceInterface
}

// NewExportHandler はExportHandlerを生成する。
func NewExportHandler(service ExportServiceInterface) *ExportHandler {
	return &ExportHandler{service: service}
}

// StudentsCSV は生徒名簿のCSVダウンロードを処理する。
// GET /api/export/students.csv
func (h *ExportHandler) StudentsCSV(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var buf bytes.Buffer
	if err := h.service.StudentsCSV(r.Context(), identity.UserID, &buf); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="students.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// TimetablePDF はクラス時間割のPDFダウンロードを処理する。
// GET /api/export/classes/:id/timetable.pdf
func (h *ExportHandler) TimetablePDF(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	classID := chi.URLParam(r, "id")

	var buf bytes.Buffer
	if err := h.service.TimetablePDF(r.Context(), identity.UserID, &buf, classID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="timetable_%s.pdf"`, classID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
