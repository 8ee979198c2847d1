package class

import (
	"context"
	"sync"
	"testing"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

type mockClassRepo struct {
	findByID func(ctx context.Context, id string) (*model.Class, error)
	create   func(ctx context.Context, class *model.Class) error
	update   func(ctx context.Context, class *model.Class) error
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*model.Class, error) {
	return m.findByID(ctx, id)
}

func (m *mockClassRepo) List(ctx context.Context) ([]*model.Class, error) { return nil, nil }

func (m *mockClassRepo) ListByTeacherID(ctx context.Context, teacherID string) ([]*model.Class, error) {
	return nil, nil
}

func (m *mockClassRepo) Create(ctx context.Context, class *model.Class) error {
	return m.create(ctx, class)
}

func (m *mockClassRepo) Update(ctx context.Context, class *model.Class) error {
	return m.update(ctx, class)
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockClassRepo) Count(ctx context.Context) (int, error) { return 0, nil }

type mockUserFinder struct {
	findByID func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByID(ctx, id)
}

type mockStudentCounter struct {
	count int
}

func (m *mockStudentCounter) CountByClassID(ctx context.Context, classID string) (int, error) {
	return m.count, nil
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
	var created *model.Class
	repo := &mockClassRepo{
		create: func(ctx context.Context, class *model.Class) error {
			created = class
			return nil
		},
	}
	users := &mockUserFinder{
		findByID: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Role: model.RoleTeacher}, nil
		},
	}
	recorder := &mockAuditRecorder{}
	s := NewService(repo, users, &mockStudentCounter{}, recorder)

	class, err := s.Create(context.Background(), "admin-1", Input{
		Name:              "3-B",
		Grade:             3,
		HomeroomTeacherID: "teacher-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created == nil || class.ID == "" {
		t.Fatal("class was not created with ID")
	}
	if !recorder.has(model.AuditActionClassCreate) {
		t.Error("create audit log not recorded")
	}
}

func TestCreate_HomeroomTeacherMustBeTeacher(t *testing.T) {
	users := &mockUserFinder{
		findByID: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Role: model.RoleStudent}, nil
		},
	}
	s := NewService(&mockClassRepo{}, users, &mockStudentCounter{}, &mockAuditRecorder{})

	_, err := s.Create(context.Background(), "admin-1", Input{
		Name:              "3-B",
		Grade:             3,
		HomeroomTeacherID: "student-user",
	})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestCreate_GradeOutOfRange(t *testing.T) {
	s := NewService(&mockClassRepo{}, &mockUserFinder{}, &mockStudentCounter{}, &mockAuditRecorder{})

	_, err := s.Create(context.Background(), "admin-1", Input{Name: "3-B", Grade: 0})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestCreate_DuplicateName(t *testing.T) {
	repo := &mockClassRepo{
		create: func(ctx context.Context, class *model.Class) error {
			return repository.ErrDuplicateClassName
		},
	}
	s := NewService(repo, &mockUserFinder{}, &mockStudentCounter{}, &mockAuditRecorder{})

	_, err := s.Create(context.Background(), "admin-1", Input{Name: "3-B", Grade: 3})
	assertAPIErrorCode(t, err, model.ErrCodeConflict)
}

// 在籍生徒がいるクラスは削除できないことを検証
func TestDelete_RefusesWithEnrolledStudents(t *testing.T) {
	repo := &mockClassRepo{
		findByID: func(ctx context.Context, id string) (*model.Class, error) {
			return &model.Class{ID: id, Name: "3-B", Grade: 3}, nil
		},
	}
	s := NewService(repo, &mockUserFinder{}, &mockStudentCounter{count: 5}, &mockAuditRecorder{})

	err := s.Delete(context.Background(), "admin-1", "class-1")
	assertAPIErrorCode(t, err, model.ErrCodeConflict)
}

func TestDelete_EmptyClass(t *testing.T) {
	deleted := false
	repo := &mockClassRepo{
		findByID: func(ctx context.Context, id string) (*model.Class, error) {
			return &model.Class{ID: id, Name: "3-B", Grade: 3}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	recorder := &mockAuditRecorder{}
	s := NewService(repo, &mockUserFinder{}, &mockStudentCounter{count: 0}, recorder)

	if err := s.Delete(context.Background(), "admin-1", "class-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("repository Delete was not called")
	}
	if !recorder.has(model.AuditActionClassDelete) {
		t.Error("delete audit log not recorded")
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockClassRepo{
		findByID: func(ctx context.Context, id string) (*model.Class, error) {
			return nil, nil
		},
	}
	s := NewService(repo, &mockUserFinder{}, &mockStudentCounter{}, &mockAuditRecorder{})

	_, err := s.Get(context.Background(), "missing")
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)
}
