package export

import (
	"context"
	"io"
	"log/slog"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

// 名簿出力時に一度に読み込む生徒数。
const csvPageSize = 500

// AuditRecorder は監査ログ記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type AuditRecorder interface {
	Record(userID, action, entity, entityID string, metadata map[string]string)
}

// Service は名簿・時間割のファイル出力を提供する。
type Service struct {
	students  repository.StudentRepository
	classes   repository.ClassRepository
	timetable repository.TimetableRepository
	recorder  AuditRecorder
	pdf       *PDFWriter
}

// NewService はServiceを生成する。
func NewService(
	students repository.StudentRepository,
	classes repository.ClassRepository,
	timetable repository.TimetableRepository,
	recorder AuditRecorder,
	pdf *PDFWriter,
) *Service {
	return &Service{
		students:  students,
		classes:   classes,
		timetable: timetable,
		recorder:  recorder,
		pdf:       pdf,
	}
}

// StudentsCSV は全生徒の名簿をCSV形式でwに書き出す。
func (s *Service) StudentsCSV(ctx context.Context, actorID string, w io.Writer) error {
	classes, err := s.classes.List(ctx)
	if err != nil {
		slog.Error("failed to list classes for export", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	classNames := make(map[string]string, len(classes))
	for _, c := range classes {
		classNames[c.ID] = c.Name
	}

	var all []*model.Student
	for offset := 0; ; offset += csvPageSize {
		page, err := s.students.List(ctx, csvPageSize, offset)
		if err != nil {
			slog.Error("failed to list students for export", slog.String("error", err.Error()))
			return model.NewInternalError()
		}
		all = append(all, page...)
		if len(page) < csvPageSize {
			break
		}
	}

	if err := WriteStudentsCSV(w, all, classNames); err != nil {
		slog.Error("failed to write students csv", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionExport, "student", "", map[string]string{
		"format": "csv",
	})
	return nil
}

// TimetablePDF は指定クラスの時間割をPDF形式でwに書き出す。
func (s *Service) TimetablePDF(ctx context.Context, actorID string, w io.Writer, classID string) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		slog.Error("failed to find class for export", slog.String("error", err.Error()))
		return model.NewInternalError()
	}
	if class == nil {
		return model.NewNotFoundError("クラス")
	}

	entries, err := s.timetable.ListByClassID(ctx, classID)
	if err != nil {
		slog.Error("failed to list timetable for export", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	if err := s.pdf.WriteTimetablePDF(w, class, entries); err != nil {
		slog.Error("failed to write timetable pdf", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	s.recorder.Record(actorID, model.AuditActionExport, "timetable", classID, map[string]string{
		"format": "pdf",
	})
	return nil
}
