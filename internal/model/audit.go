// Package model はドメインモデルを定義する。
package model

import "time"

// AuditLogEntry は特権操作の監査ログレコードを表す。
// 追記専用であり、アプリケーションから更新・削除されることはない。
type AuditLogEntry struct {
	ID        string
	UserID    string            // 操作を実行したユーザー
	Action    string            // 例: "student.create", "user.role_change"
	Entity    string            // 操作対象のエンティティ種別。例: "student"
	EntityID  string            // 操作対象のID。対象が特定できない操作では空
	Metadata  map[string]string // 補足情報。JSONBとして保存される
	CreatedAt time.Time
}

// 監査ログのアクション名。
const (
	AuditActionLogin            = "auth.login"
	AuditActionLoginFailed      = "auth.login_failed"
	AuditActionLogout           = "auth.logout"
	AuditActionRegister         = "auth.register"
	AuditActionPasswordReset    = "auth.password_reset"
	AuditActionPasswordChange   = "auth.password_change"
	AuditActionTwoFactorEnable  = "2fa.enable"
	AuditActionTwoFactorDisable = "2fa.disable"
	AuditActionRoleChange       = "user.role_change"
	AuditActionStatusChange     = "user.status_change"
	AuditActionStudentCreate    = "student.create"
	AuditActionStudentUpdate    = "student.update"
	AuditActionStudentDelete    = "student.delete"
	AuditActionClassCreate      = "class.create"
	AuditActionClassUpdate      = "class.update"
	AuditActionClassDelete      = "class.delete"
	AuditActionTimetableReplace = "timetable.replace"
	AuditActionAnnounceCreate   = "announcement.create"
	AuditActionAnnounceUpdate   = "announcement.update"
	AuditActionAnnounceDelete   = "announcement.delete"
	AuditActionExport           = "export.download"
)
