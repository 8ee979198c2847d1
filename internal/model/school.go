// Package model はドメインモデルを定義する。
package model

import "time"

// Student は在籍生徒を表す。
// ポータルアカウント（users）とは独立したレコードで、UserIDは任意の紐付け。
type Student struct {
	ID            string
	UserID        string // 紐付くポータルアカウントのID。未発行の場合は空
	StudentNumber string // 学籍番号。全校で一意
	Name          string
	ClassID       string // 所属クラス。未割り当ての場合は空
	EnrolledAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Class はクラス（学級）を表す。
type Class struct {
	ID                string
	Name              string // 例: "3-B"。全校で一意
	Grade             int
	HomeroomTeacherID string // 担任教員のユーザーID。未割り当ての場合は空
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TimetableEntry は時間割の1コマを表す。
// (class_id, day_of_week, period) の組で一意。
type TimetableEntry struct {
	ID        string
	ClassID   string
	DayOfWeek int // 0=日曜 〜 6=土曜
	Period    int // 1〜8時限
	Subject   string
	TeacherID string // 担当教員のユーザーID。未割り当ての場合は空
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Audience はお知らせの配信対象を表す。
type Audience string

const (
	// AudienceAll は全ユーザー向けのお知らせ。
	AudienceAll Audience = "ALL"
	// AudienceTeachers は教員向けのお知らせ。
	AudienceTeachers Audience = "TEACHERS"
	// AudienceStudents は生徒向けのお知らせ。
	AudienceStudents Audience = "STUDENTS"
)

// IsValid はAudienceが定義済みの値かどうかを判定する。
func (a Audience) IsValid() bool {
	switch a {
	case AudienceAll, AudienceTeachers, AudienceStudents:
		return true
	default:
		return false
	}
}

// VisibleTo は指定されたロールがこのお知らせを閲覧できるかどうかを判定する。
// 管理者は全お知らせを閲覧できる。
func (a Audience) VisibleTo(role Role) bool {
	switch a {
	case AudienceAll:
		return true
	case AudienceTeachers:
		return role == RoleAdmin || role == RoleTeacher
	case AudienceStudents:
		return role == RoleAdmin || role == RoleStudent
	default:
		return false
	}
}

// Announcement はお知らせを表す。
// Bodyは保存前にサニタイズ済みのHTML。
type Announcement struct {
	ID        string
	AuthorID  string
	Title     string
	Body      string
	Audience  Audience
	CreatedAt time.Time
	UpdatedAt time.Time
}
