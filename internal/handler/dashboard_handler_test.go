package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gakuen/internal/dashboard"
	"github.com/hitoshi/gakuen/internal/model"
)

// mockDashboardService はDashboardServiceInterfaceのモック実装。
type mockDashboardService struct {
	summarizeFn func(ctx context.Context, identity *model.Identity) (*dashboard.Summary, error)
}

func (m *mockDashboardService) Summarize(ctx context.Context, identity *model.Identity) (*dashboard.Summary, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, identity)
	}
	return &dashboard.Summary{Role: identity.Role}, nil
}

func TestDashboardHandler_AdminCounts(t *testing.T) {
	svc := &mockDashboardService{
		summarizeFn: func(ctx context.Context, identity *model.Identity) (*dashboard.Summary, error) {
			return &dashboard.Summary{
				Role:         model.RoleAdmin,
				UserCount:    120,
				StudentCount: 95,
				ClassCount:   6,
				RecentAuditLogs: []*model.AuditLogEntry{
					{ID: "log-1", UserID: "admin-1", Action: model.AuditActionLogin},
				},
			}, nil
		},
	}
	h := NewDashboardHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req = withIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	h.Summary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var res dashboardResponse
	decodeJSONBody(t, w, &res)
	if res.Counts == nil || res.Counts.Students != 95 {
		t.Errorf("unexpected response: %+v", res)
	}
	if len(res.RecentAuditLogs) != 1 {
		t.Errorf("recent_audit_logs = %d, want 1", len(res.RecentAuditLogs))
	}
}

func TestDashboardHandler_TeacherHomerooms(t *testing.T) {
	svc := &mockDashboardService{
		summarizeFn: func(ctx context.Context, identity *model.Identity) (*dashboard.Summary, error) {
			return &dashboard.Summary{
				Role:            model.RoleTeacher,
				HomeroomClasses: []*model.Class{testClass()},
			}, nil
		},
	}
	h := NewDashboardHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req = withIdentity(req, teacherIdentity())
	w := httptest.NewRecorder()

	h.Summary(w, req)

	var res dashboardResponse
	decodeJSONBody(t, w, &res)
	if res.Counts != nil {
		t.Error("counts must be omitted for teachers")
	}
	if len(res.HomeroomClasses) != 1 || res.HomeroomClasses[0].Name != "3年B組" {
		t.Errorf("unexpected response: %+v", res)
	}
}

func TestDashboardHandler_StudentTimetableAndAnnouncements(t *testing.T) {
	svc := &mockDashboardService{
		summarizeFn: func(ctx context.Context, identity *model.Identity) (*dashboard.Summary, error) {
			return &dashboard.Summary{
				Role:    model.RoleStudent,
				MyClass: testClass(),
				MyTimetable: []*model.TimetableEntry{
					{ID: "tt-1", DayOfWeek: 1, Period: 1, Subject: "数学"},
				},
				RecentAnnouncements: []*model.Announcement{testAnnouncement()},
			}, nil
		},
	}
	h := NewDashboardHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req = withIdentity(req, studentIdentity())
	w := httptest.NewRecorder()

	h.Summary(w, req)

	var res dashboardResponse
	decodeJSONBody(t, w, &res)
	if res.Counts != nil || len(res.HomeroomClasses) != 0 {
		t.Errorf("student dashboard must not carry admin/teacher fields: %+v", res)
	}
	if res.MyClass == nil || res.MyClass.ID != "class-1" {
		t.Errorf("my_class = %+v", res.MyClass)
	}
	if len(res.MyTimetable) != 1 || len(res.RecentAnnouncements) != 1 {
		t.Errorf("unexpected response: %+v", res)
	}
}
