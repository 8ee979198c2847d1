// Package dashboard はロール別ダッシュボードの集計を提供する。
package dashboard

import (
	"context"
	"log/slog"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

// ダッシュボードに表示する直近のお知らせ・監査ログ件数。
const (
	recentAnnouncementCount = 5
	recentAuditLogCount     = 5
)

// AnnouncementLister はロール別のお知らせ取得に必要なインターフェース。
type AnnouncementLister interface {
	ListFor(ctx context.Context, role model.Role, limit, offset int) ([]*model.Announcement, error)
}

// Summary はロールに応じたダッシュボードの内容。
// 該当しないフィールドはゼロ値のまま返される。
type Summary struct {
	Role model.Role

	// 管理者向け: 集計と直近の監査ログ
	UserCount       int
	StudentCount    int
	ClassCount      int
	RecentAuditLogs []*model.AuditLogEntry

	// 教員向け: 担任クラス
	HomeroomClasses []*model.Class

	// 生徒向け: 所属クラスと自分の時間割
	MyClass     *model.Class
	MyTimetable []*model.TimetableEntry

	// 全ロール共通: 直近のお知らせ
	RecentAnnouncements []*model.Announcement
}

// Service はダッシュボードの集計を提供する。
type Service struct {
	users         repository.UserRepository
	students      repository.StudentRepository
	classes       repository.ClassRepository
	timetable     repository.TimetableRepository
	auditLog      repository.AuditLogRepository
	announcements AnnouncementLister
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	students repository.StudentRepository,
	classes repository.ClassRepository,
	timetable repository.TimetableRepository,
	auditLog repository.AuditLogRepository,
	announcements AnnouncementLister,
) *Service {
	return &Service{
		users:         users,
		students:      students,
		classes:       classes,
		timetable:     timetable,
		auditLog:      auditLog,
		announcements: announcements,
	}
}

// Summarize はログイン中のユーザーのロールに応じた集計を返す。
func (s *Service) Summarize(ctx context.Context, identity *model.Identity) (*Summary, error) {
	summary := &Summary{Role: identity.Role}

	announcements, err := s.announcements.ListFor(ctx, identity.Role, recentAnnouncementCount, 0)
	if err != nil {
		return nil, err
	}
	summary.RecentAnnouncements = announcements

	switch identity.Role {
	case model.RoleAdmin:
		return s.summarizeAdmin(ctx, summary)
	case model.RoleTeacher:
		return s.summarizeTeacher(ctx, identity.UserID, summary)
	case model.RoleStudent:
		return s.summarizeStudent(ctx, identity.UserID, summary)
	}

	return summary, nil
}

func (s *Service) summarizeAdmin(ctx context.Context, summary *Summary) (*Summary, error) {
	var err error
	if summary.UserCount, err = s.users.Count(ctx); err != nil {
		slog.Error("failed to count users", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if summary.StudentCount, err = s.students.Count(ctx); err != nil {
		slog.Error("failed to count students", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if summary.ClassCount, err = s.classes.Count(ctx); err != nil {
		slog.Error("failed to count classes", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	entries, err := s.auditLog.ListRecent(ctx, recentAuditLogCount, 0)
	if err != nil {
		slog.Error("failed to list recent audit logs", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	summary.RecentAuditLogs = entries

	return summary, nil
}

func (s *Service) summarizeTeacher(ctx context.Context, userID string, summary *Summary) (*Summary, error) {
	classes, err := s.classes.ListByTeacherID(ctx, userID)
	if err != nil {
		slog.Error("failed to list homeroom classes", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	summary.HomeroomClasses = classes
	return summary, nil
}

// summarizeStudent はログインユーザーに紐づく生徒レコードを辿り、
// 所属クラスの時間割を返す。紐づけや所属クラスがない場合はお知らせのみとなる。
func (s *Service) summarizeStudent(ctx context.Context, userID string, summary *Summary) (*Summary, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		slog.Error("failed to find student record", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if student == nil || student.ClassID == "" {
		return summary, nil
	}

	class, err := s.classes.FindByID(ctx, student.ClassID)
	if err != nil {
		slog.Error("failed to find class", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	summary.MyClass = class

	entries, err := s.timetable.ListByClassID(ctx, student.ClassID)
	if err != nil {
		slog.Error("failed to list timetable", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	summary.MyTimetable = entries

	return summary, nil
}
