package student

import (
	"context"
	"sync"
	"testing"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

type mockStudentRepo struct {
	findByID      func(ctx context.Context, id string) (*model.Student, error)
	list          func(ctx context.Context, limit, offset int) ([]*model.Student, error)
	listByClassID func(ctx context.Context, classID string) ([]*model.Student, error)
	create        func(ctx context.Context, student *model.Student) error
	update        func(ctx context.Context, student *model.Student) error
	deleteFn      func(ctx context.Context, id string) error
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	return m.findByID(ctx, id)
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*model.Student, error) {
	return nil, nil
}

func (m *mockStudentRepo) List(ctx context.Context, limit, offset int) ([]*model.Student, error) {
	return m.list(ctx, limit, offset)
}

func (m *mockStudentRepo) ListByClassID(ctx context.Context, classID string) ([]*model.Student, error) {
	return m.listByClassID(ctx, classID)
}

func (m *mockStudentRepo) Create(ctx context.Context, student *model.Student) error {
	return m.create(ctx, student)
}

func (m *mockStudentRepo) Update(ctx context.Context, student *model.Student) error {
	return m.update(ctx, student)
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockStudentRepo) CountByClassID(ctx context.Context, classID string) (int, error) {
	return 0, nil
}

func (m *mockStudentRepo) Count(ctx context.Context) (int, error) { return 0, nil }

type mockClassFinder struct {
	findByID func(ctx context.Context, id string) (*model.Class, error)
}

func (m *mockClassFinder) FindByID(ctx context.Context, id string) (*model.Class, error) {
	return m.findByID(ctx, id)
}

type mockAuditRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (m *mockAuditRecorder) Record(userID, action, entity, entityID string, metadata map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
}

func (m *mockAuditRecorder) has(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions {
		if a == action {
			return true
		}
	}
	return false
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("code = %s, want %s", apiErr.Code, wantCode)
	}
}

func TestCreate_Success(t *testing.T) {
	var created *model.Student
	repo := &mockStudentRepo{
		create: func(ctx context.Context, student *model.Student) error {
			created = student
			return nil
		},
	}
	classes := &mockClassFinder{
		findByID: func(ctx context.Context, id string) (*model.Class, error) {
			return &model.Class{ID: id, Name: "3-B", Grade: 3}, nil
		},
	}
	recorder := &mockAuditRecorder{}
	s := NewService(repo, classes, recorder)

	student, err := s.Create(context.Background(), "admin-1", CreateInput{
		StudentNumber: "2026001",
		Name:          "佐藤花子",
		ClassID:       "class-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if created == nil || created.ID == "" {
		t.Fatal("student was not created with ID")
	}
	if student.EnrolledAt.IsZero() {
		t.Error("enrolled_at was not defaulted")
	}
	if !recorder.has(model.AuditActionStudentCreate) {
		t.Error("create audit log not recorded")
	}
}

func TestCreate_EmptyStudentNumber(t *testing.T) {
	s := NewService(&mockStudentRepo{}, &mockClassFinder{}, &mockAuditRecorder{})

	_, err := s.Create(context.Background(), "admin-1", CreateInput{Name: "佐藤花子"})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestCreate_UnknownClass(t *testing.T) {
	classes := &mockClassFinder{
		findByID: func(ctx context.Context, id string) (*model.Class, error) {
			return nil, nil
		},
	}
	s := NewService(&mockStudentRepo{}, classes, &mockAuditRecorder{})

	_, err := s.Create(context.Background(), "admin-1", CreateInput{
		StudentNumber: "2026001",
		Name:          "佐藤花子",
		ClassID:       "missing-class",
	})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestCreate_DuplicateStudentNumber(t *testing.T) {
	repo := &mockStudentRepo{
		create: func(ctx context.Context, student *model.Student) error {
			return repository.ErrDuplicateStudentNumber
		},
	}
	s := NewService(repo, &mockClassFinder{}, &mockAuditRecorder{})

	_, err := s.Create(context.Background(), "admin-1", CreateInput{
		StudentNumber: "2026001",
		Name:          "佐藤花子",
	})
	assertAPIErrorCode(t, err, model.ErrCodeConflict)
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockStudentRepo{
		findByID: func(ctx context.Context, id string) (*model.Student, error) {
			return nil, nil
		},
	}
	s := NewService(repo, &mockClassFinder{}, &mockAuditRecorder{})

	_, err := s.Get(context.Background(), "missing")
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)
}

func TestUpdate_Success(t *testing.T) {
	existing := &model.Student{ID: "stu-1", StudentNumber: "2026001", Name: "佐藤花子"}
	var updated *model.Student
	repo := &mockStudentRepo{
		findByID: func(ctx context.Context, id string) (*model.Student, error) {
			return existing, nil
		},
		update: func(ctx context.Context, student *model.Student) error {
			updated = student
			return nil
		},
	}
	recorder := &mockAuditRecorder{}
	s := NewService(repo, &mockClassFinder{}, recorder)

	_, err := s.Update(context.Background(), "admin-1", "stu-1", UpdateInput{
		StudentNumber: "2026002",
		Name:          "佐藤花子",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.StudentNumber != "2026002" {
		t.Errorf("student_number = %s, want 2026002", updated.StudentNumber)
	}
	if !recorder.has(model.AuditActionStudentUpdate) {
		t.Error("update audit log not recorded")
	}
}

func TestDelete_RecordsAudit(t *testing.T) {
	repo := &mockStudentRepo{
		findByID: func(ctx context.Context, id string) (*model.Student, error) {
			return &model.Student{ID: id}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			return nil
		},
	}
	recorder := &mockAuditRecorder{}
	s := NewService(repo, &mockClassFinder{}, recorder)

	if err := s.Delete(context.Background(), "admin-1", "stu-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !recorder.has(model.AuditActionStudentDelete) {
		t.Error("delete audit log not recorded")
	}
}
