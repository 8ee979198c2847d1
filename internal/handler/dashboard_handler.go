package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gakuen/internal/dashboard"
	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	Summarize(ctx context.Context, identity *model.Identity) (*dashboard.Summary, error)
}

// DashboardHandler はダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

type dashboardCountsResponse struct {
	Users    int `json:"users"`
	Students int `json:"students"`
	Classes  int `json:"classes"`
}

type dashboardResponse struct {
	Role                string                   `json:"role"`
	Counts              *dashboardCountsResponse `json:"counts,omitempty"`
	RecentAuditLogs     []auditLogResponse       `json:"recent_audit_logs,omitempty"`
	HomeroomClasses     []classResponse          `json:"homeroom_classes,omitempty"`
	MyClass             *classResponse           `json:"my_class,omitempty"`
	MyTimetable         []timetableEntryResponse `json:"my_timetable,omitempty"`
	RecentAnnouncements []announcementResponse   `json:"recent_announcements"`
}

// Summary はロールに応じたダッシュボードを返す。
// GET /api/dashboard
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summary, err := h.service.Summarize(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := dashboardResponse{
		Role:                string(summary.Role),
		RecentAnnouncements: make([]announcementResponse, len(summary.RecentAnnouncements)),
	}
	for i, a := range summary.RecentAnnouncements {
		res.RecentAnnouncements[i] = toAnnouncementResponse(a)
	}

	switch summary.Role {
	case model.RoleAdmin:
		res.Counts = &dashboardCountsResponse{
			Users:    summary.UserCount,
			Students: summary.StudentCount,
			Classes:  summary.ClassCount,
		}
		res.RecentAuditLogs = toAuditLogResponses(summary.RecentAuditLogs)
	case model.RoleTeacher:
		res.HomeroomClasses = make([]classResponse, len(summary.HomeroomClasses))
		for i, c := range summary.HomeroomClasses {
			res.HomeroomClasses[i] = toClassResponse(c)
		}
	case model.RoleStudent:
		if summary.MyClass != nil {
			myClass := toClassResponse(summary.MyClass)
			res.MyClass = &myClass
		}
		res.MyTimetable = toTimetableResponses(summary.MyTimetable)
	}

	writeJSON(w, http.StatusOK, res)
}
