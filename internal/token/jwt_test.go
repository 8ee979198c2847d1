package token

import (
	"testing"
	"time"

	"github.com/hitoshi/gakuen/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:     "user-123",
		Email:  "tanaka@example.jp",
		Role:   model.RoleTeacher,
		Status: model.StatusActive,
	}
}

// 発行したトークンがパースでき、クレームのスナップショットが一致することを検証
func TestManager_IssueAndParse(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute)

	signed, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	identity, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if identity.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", identity.UserID, "user-123")
	}
	if identity.Role != model.RoleTeacher {
		t.Errorf("Role = %q, want %q", identity.Role, model.RoleTeacher)
	}
	if identity.Status != model.StatusActive {
		t.Errorf("Status = %q, want %q", identity.Status, model.StatusActive)
	}
}

// 異なるシークレットで署名されたトークンが拒否されることを検証
func TestManager_Parse_WrongSecret(t *testing.T) {
	m1 := NewManager("secret-one", 15*time.Minute)
	m2 := NewManager("secret-two", 15*time.Minute)

	signed, err := m1.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := m2.Parse(signed); err == nil {
		t.Error("Parse() with wrong secret: error = nil, want error")
	}
}

// 期限切れトークンが拒否されることを検証
func TestManager_Parse_Expired(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute)

	issued := time.Now()
	m.now = func() time.Time { return issued }

	signed, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// 検証時刻をTTL経過後に進める
	m.now = func() time.Time { return issued.Add(16 * time.Minute) }

	if _, err := m.Parse(signed); err == nil {
		t.Error("Parse() after expiry: error = nil, want error")
	}
}

// 改ざんされたトークンが拒否されることを検証
func TestManager_Parse_Tampered(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute)

	signed, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tampered := signed[:len(signed)-4] + "xxxx"
	if _, err := m.Parse(tampered); err == nil {
		t.Error("Parse() of tampered token: error = nil, want error")
	}
}

// リフレッシュトークンの生成とハッシュの安定性を検証
func TestRefreshTokenHash(t *testing.T) {
	raw, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken() error = %v", err)
	}
	if len(raw) < 40 {
		t.Errorf("raw token length = %d, want >= 40", len(raw))
	}

	if HashToken(raw) != HashToken(raw) {
		t.Error("HashToken is not deterministic")
	}

	other, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken() error = %v", err)
	}
	if raw == other {
		t.Error("two generated tokens are identical")
	}
	if HashToken(raw) == HashToken(other) {
		t.Error("hashes of distinct tokens collide")
	}
}
