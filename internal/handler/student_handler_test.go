package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/student"
)

// mockStudentService はStudentServiceInterfaceのモック実装。
type mockStudentService struct {
	getFn           func(ctx context.Context, id string) (*model.Student, error)
	listFn          func(ctx context.Context, limit, offset int) ([]*model.Student, error)
	listByClassIDFn func(ctx context.Context, classID string) ([]*model.Student, error)
	createFn        func(ctx context.Context, actorID string, input student.CreateInput) (*model.Student, error)
	updateFn        func(ctx context.Context, actorID, id string, input student.UpdateInput) (*model.Student, error)
	deleteFn        func(ctx context.Context, actorID, id string) error
}

func (m *mockStudentService) Get(ctx context.Context, id string) (*model.Student, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockStudentService) List(ctx context.Context, limit, offset int) ([]*model.Student, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockStudentService) ListByClassID(ctx context.Context, classID string) ([]*model.Student, error) {
	if m.listByClassIDFn != nil {
		return m.listByClassIDFn(ctx, classID)
	}
	return nil, nil
}

func (m *mockStudentService) Create(ctx context.Context, actorID string, input student.CreateInput) (*model.Student, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actorID, input)
	}
	return nil, nil
}

func (m *mockStudentService) Update(ctx context.Context, actorID, id string, input student.UpdateInput) (*model.Student, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actorID, id, input)
	}
	return nil, nil
}

func (m *mockStudentService) Delete(ctx context.Context, actorID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actorID, id)
	}
	return nil
}

func testStudent() *model.Student {
	return &model.Student{
		ID:            "stu-1",
		StudentNumber: "2026-0042",
		Name:          "佐藤花子",
		ClassID:       "class-1",
		EnrolledAt:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStudentHandler_List(t *testing.T) {
	svc := &mockStudentService{
		listFn: func(ctx context.Context, limit, offset int) ([]*model.Student, error) {
			if limit != 10 || offset != 20 {
				t.Errorf("limit = %d, offset = %d, want 10, 20", limit, offset)
			}
			return []*model.Student{testStudent()}, nil
		},
	}
	h := NewStudentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/students?limit=10&offset=20", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var res []studentResponse
	decodeJSONBody(t, w, &res)
	if len(res) != 1 || res[0].StudentNumber != "2026-0042" {
		t.Errorf("unexpected response: %+v", res)
	}
	if res[0].EnrolledAt != "2026-04-01" {
		t.Errorf("enrolled_at = %q, want %q", res[0].EnrolledAt, "2026-04-01")
	}
}

func TestStudentHandler_Get_NotFound(t *testing.T) {
	svc := &mockStudentService{
		getFn: func(ctx context.Context, id string) (*model.Student, error) {
			return nil, model.NewNotFoundError("生徒")
		},
	}
	h := NewStudentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/students/missing", nil)
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.Get(w, req)

	assertErrorResponse(t, w, http.StatusNotFound, model.ErrCodeNotFound)
}

func TestStudentHandler_Create_Success(t *testing.T) {
	svc := &mockStudentService{
		createFn: func(ctx context.Context, actorID string, input student.CreateInput) (*model.Student, error) {
			if actorID != "teacher-1" {
				t.Errorf("actorID = %q, want %q", actorID, "teacher-1")
			}
			if input.StudentNumber != "2026-0042" {
				t.Errorf("studentNumber = %q", input.StudentNumber)
			}
			if !input.EnrolledAt.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("enrolledAt = %v", input.EnrolledAt)
			}
			return testStudent(), nil
		},
	}
	h := NewStudentHandler(svc)

	body := `{"student_number": "2026-0042", "name": "佐藤花子", "class_id": "class-1", "enrolled_at": "2026-04-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewBufferString(body))
	req = withIdentity(req, teacherIdentity())
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestStudentHandler_Create_BadEnrolledAtFormat(t *testing.T) {
	h := NewStudentHandler(&mockStudentService{})

	body := `{"student_number": "2026-0042", "name": "佐藤花子", "enrolled_at": "04/01/2026"}`
	req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewBufferString(body))
	req = withIdentity(req, teacherIdentity())
	w := httptest.NewRecorder()

	h.Create(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

func TestStudentHandler_Create_DuplicateNumber(t *testing.T) {
	svc := &mockStudentService{
		createFn: func(ctx context.Context, actorID string, input student.CreateInput) (*model.Student, error) {
			return nil, model.NewConflictError("学籍番号が重複しています")
		},
	}
	h := NewStudentHandler(svc)

	body := `{"student_number": "2026-0042", "name": "佐藤花子"}`
	req := httptest.NewRequest(http.MethodPost, "/api/students", bytes.NewBufferString(body))
	req = withIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	h.Create(w, req)

	assertErrorResponse(t, w, http.StatusConflict, model.ErrCodeConflict)
}

func TestStudentHandler_Delete(t *testing.T) {
	var deletedID string
	svc := &mockStudentService{
		deleteFn: func(ctx context.Context, actorID, id string) error {
			deletedID = id
			return nil
		},
	}
	h := NewStudentHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/students/stu-1", nil)
	req = withChiURLParam(req, "id", "stu-1")
	req = withIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deletedID != "stu-1" {
		t.Errorf("deletedID = %q, want %q", deletedID, "stu-1")
	}
}
