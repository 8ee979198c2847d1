package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/gakuen/internal/model"
)

// PostgresAnnouncementRepo はPostgreSQLを使用したお知らせリポジトリ。
type PostgresAnnouncementRepo struct {
	db *sql.DB
}

// NewPostgresAnnouncementRepo はPostgresAnnouncementRepoを生成する。
func NewPostgresAnnouncementRepo(db *sql.DB) *PostgresAnnouncementRepo {
	return &PostgresAnnouncementRepo{db: db}
}

const announcementColumns = `id, author_id, title, body, audience, created_at, updated_at`

// FindByID は指定IDのお知らせを取得する。見つからない場合はnilを返す。
func (r *PostgresAnnouncementRepo) FindByID(ctx context.Context, id string) (*model.Announcement, error) {
	a := &model.Announcement{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id,
	).Scan(&a.ID, &a.AuthorID, &a.Title, &a.Body, &a.Audience, &a.CreatedAt, &a.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find announcement: %w", err)
	}
	return a, nil
}

// ListForAudience は指定の配信対象群に合致するお知らせを作成日時の降順で取得する。
func (r *PostgresAnnouncementRepo) ListForAudience(ctx context.Context, audiences []model.Audience, limit, offset int) ([]*model.Announcement, error) {
	values := make([]string, len(audiences))
	for i, a := range audiences {
		values[i] = string(a)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+announcementColumns+`
		 FROM announcements
		 WHERE audience = ANY($1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		pq.Array(values), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	var announcements []*model.Announcement
	for rows.Next() {
		a := &model.Announcement{}
		if err := rows.Scan(&a.ID, &a.AuthorID, &a.Title, &a.Body, &a.Audience, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate announcements: %w", err)
	}
	return announcements, nil
}

// Create はお知らせを作成する。
func (r *PostgresAnnouncementRepo) Create(ctx context.Context, a *model.Announcement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO announcements (id, author_id, title, body, audience, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.AuthorID, a.Title, a.Body, a.Audience, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

// Update はお知らせを更新する。
func (r *PostgresAnnouncementRepo) Update(ctx context.Context, a *model.Announcement) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE announcements
		 SET title = $1, body = $2, audience = $3, updated_at = $4
		 WHERE id = $5`,
		a.Title, a.Body, a.Audience, time.Now(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("announcement not found: %s", a.ID)
	}
	return nil
}

// Delete は指定IDのお知らせを削除する。
func (r *PostgresAnnouncementRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("announcement not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ AnnouncementRepository = (*PostgresAnnouncementRepo)(nil)
