package repository

import (
	"errors"

	"github.com/lib/pq"
)

// 一意制約違反を表すセンチネルエラー。
// サービス層で409 Conflictへの変換に使用する。
var (
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrDuplicateStudentNumber = errors.New("student number already registered")
	ErrDuplicateClassName     = errors.New("class name already exists")
)

// uniqueViolation はPostgreSQLの一意制約違反（SQLSTATE 23505）かどうかを判定する。
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
