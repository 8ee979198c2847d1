package twofactor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/token"
)

// RFC 6238のテストベクタで使用される共有秘密（"12345678901234567890"のbase32表現）。
// t=59のときの正しいコードは287082。
const (
	rfcSecret    = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	rfcValidCode = "287082"
)

var rfcTime = time.Unix(59, 0)

type mockTwoFactorRepo struct {
	findByUserID      func(ctx context.Context, userID string) (*model.TwoFactorSecret, error)
	stagePending      func(ctx context.Context, userID, pendingSecret string) error
	activate          func(ctx context.Context, userID string, backupCodeHashes []string) error
	disable           func(ctx context.Context, userID string) error
	consumeBackupCode func(ctx context.Context, userID, codeHash string) (bool, error)
}

func (m *mockTwoFactorRepo) FindByUserID(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
	return m.findByUserID(ctx, userID)
}

func (m *mockTwoFactorRepo) StagePending(ctx context.Context, userID, pendingSecret string) error {
	return m.stagePending(ctx, userID, pendingSecret)
}

func (m *mockTwoFactorRepo) Activate(ctx context.Context, userID string, backupCodeHashes []string) error {
	return m.activate(ctx, userID, backupCodeHashes)
}

func (m *mockTwoFactorRepo) Disable(ctx context.Context, userID string) error {
	return m.disable(ctx, userID)
}

func (m *mockTwoFactorRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	return m.consumeBackupCode(ctx, userID, codeHash)
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

func TestSetup_StagesPendingSecret(t *testing.T) {
	var stagedSecret string
	repo := &mockTwoFactorRepo{
		stagePending: func(ctx context.Context, userID, pendingSecret string) error {
			stagedSecret = pendingSecret
			return nil
		},
	}
	s := NewService(repo, &mockAuditRecorder{}, "gakuen")

	result, err := s.Setup(context.Background(), "user-1", "taro@example.com")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	if result.Secret == "" || result.Secret != stagedSecret {
		t.Error("staged secret does not match returned secret")
	}
	if !strings.HasPrefix(result.ProvisionURI, "otpauth://totp/") {
		t.Errorf("provision URI = %s, want otpauth://totp/ prefix", result.ProvisionURI)
	}
	if !strings.Contains(result.ProvisionURI, result.Secret) {
		t.Error("provision URI does not contain secret")
	}
}

func TestConfirm_NoPendingSecret(t *testing.T) {
	repo := &mockTwoFactorRepo{
		findByUserID: func(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
			return nil, nil
		},
	}
	s := NewService(repo, &mockAuditRecorder{}, "gakuen")

	_, err := s.Confirm(context.Background(), "user-1", "123456")
	if err == nil {
		t.Fatal("Confirm succeeded without setup")
	}
}

func TestConfirm_WrongCode(t *testing.T) {
	activated := false
	repo := &mockTwoFactorRepo{
		findByUserID: func(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
			return &model.TwoFactorSecret{UserID: userID, PendingSecret: rfcSecret}, nil
		},
		activate: func(ctx context.Context, userID string, backupCodeHashes []string) error {
			activated = true
			return nil
		},
	}
	s := NewService(repo, &mockAuditRecorder{}, "gakuen")
	s.now = func() time.Time { return rfcTime }

	_, err := s.Confirm(context.Background(), "user-1", "000000")
	if err == nil {
		t.Fatal("Confirm succeeded with wrong code")
	}
	if activated {
		t.Error("two factor was activated with wrong code")
	}
}

func TestConfirm_ValidCodeActivatesWithBackupCodes(t *testing.T) {
	var storedHashes []string
	repo := &mockTwoFactorRepo{
		findByUserID: func(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
			return &model.TwoFactorSecret{UserID: userID, PendingSecret: rfcSecret}, nil
		},
		activate: func(ctx context.Context, userID string, backupCodeHashes []string) error {
			storedHashes = backupCodeHashes
			return nil
		},
	}
	recorder := &mockAuditRecorder{}
	s := NewService(repo, recorder, "gakuen")
	s.now = func() time.Time { return rfcTime }

	rawCodes, err := s.Confirm(context.Background(), "user-1", rfcValidCode)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if len(rawCodes) != backupCodeCount {
		t.Fatalf("backup codes = %d, want %d", len(rawCodes), backupCodeCount)
	}
	if len(storedHashes) != backupCodeCount {
		t.Fatalf("stored hashes = %d, want %d", len(storedHashes), backupCodeCount)
	}
	// 保存されるのは生値ではなくハッシュ
	for i, raw := range rawCodes {
		if storedHashes[i] == raw {
			t.Error("raw backup code was stored")
		}
		if storedHashes[i] != token.HashToken(raw) {
			t.Error("stored hash does not match backup code")
		}
	}
	if !recorder.has(model.AuditActionTwoFactorEnable) {
		t.Error("enable audit log not recorded")
	}
}

func TestVerifyLogin_ValidTOTPCode(t *testing.T) {
	repo := &mockTwoFactorRepo{
		findByUserID: func(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
			return &model.TwoFactorSecret{UserID: userID, Secret: rfcSecret, Enabled: true}, nil
		},
	}
	s := NewService(repo, &mockAuditRecorder{}, "gakuen")
	s.now = func() time.Time { return rfcTime }

	ok, err := s.VerifyLogin(context.Background(), "user-1", rfcValidCode)
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if !ok {
		t.Error("valid TOTP code was rejected")
	}
}

func TestVerifyLogin_BackupCodeFallback(t *testing.T) {
	backupCode := "a1b2c3d4e5"
	var consumedHash string
	repo := &mockTwoFactorRepo{
		findByUserID: func(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
			return &model.TwoFactorSecret{UserID: userID, Secret: rfcSecret, Enabled: true}, nil
		},
		consumeBackupCode: func(ctx context.Context, userID, codeHash string) (bool, error) {
			consumedHash = codeHash
			return true, nil
		},
	}
	s := NewService(repo, &mockAuditRecorder{}, "gakuen")
	s.now = func() time.Time { return rfcTime }

	ok, err := s.VerifyLogin(context.Background(), "user-1", backupCode)
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if !ok {
		t.Error("backup code was rejected")
	}
	if consumedHash != token.HashToken(backupCode) {
		t.Error("backup code was not consumed by hash")
	}
}

func TestVerifyLogin_NotEnabled(t *testing.T) {
	repo := &mockTwoFactorRepo{
		findByUserID: func(ctx context.Context, userID string) (*model.TwoFactorSecret, error) {
			return &model.TwoFactorSecret{UserID: userID, PendingSecret: rfcSecret, Enabled: false}, nil
		},
	}
	s := NewService(repo, &mockAuditRecorder{}, "gakuen")

	ok, err := s.VerifyLogin(context.Background(), "user-1", rfcValidCode)
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if ok {
		t.Error("VerifyLogin = true for user without enabled two factor")
	}
}

func TestDisable(t *testing.T) {
	disabled := false
	repo := &mockTwoFactorRepo{
		disable: func(ctx context.Context, userID string) error {
			disabled = true
			return nil
		},
	}
	recorder := &mockAuditRecorder{}
	s := NewService(repo, recorder, "gakuen")

	if err := s.Disable(context.Background(), "user-1"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if !disabled {
		t.Error("repository Disable was not called")
	}
	if !recorder.has(model.AuditActionTwoFactorDisable) {
		t.Error("disable audit log not recorded")
	}
}
