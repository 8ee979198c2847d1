// Package password はargon2idによるパスワードハッシュの生成・検証を提供する。
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	memoryKB    uint32 = 64 * 1024
	timeCost    uint32 = 2
	parallelism uint8  = 2
	saltLength  uint32 = 16
	keyLength   uint32 = 32

	// MinPasswordLength はパスワードの最小バイト長。
	MinPasswordLength = 8
)

// ErrPasswordTooShort はパスワードが短すぎる場合のエラー。
var ErrPasswordTooShort = errors.New("password must be at least 8 bytes")

// ErrMalformedHash はPHC形式として解釈できないハッシュ文字列のエラー。
var ErrMalformedHash = errors.New("malformed argon2id hash")

// Hash はパスワードをargon2idでハッシュ化し、PHC形式の文字列を返す。
// ソルトは呼び出しごとにランダム生成されるため、同一パスワードでも出力は毎回異なる。
func Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, timeCost, memoryKB, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memoryKB,
		timeCost,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify はパスワードがPHC形式のハッシュと一致するかを定数時間比較で検証する。
// ハッシュ文字列に埋め込まれたパラメータで再計算するため、
// パラメータ変更後も既存ハッシュの検証は継続できる。
func Verify(password, encodedHash string) (bool, error) {
	salt, key, m, t, p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(key)))

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// parsePHC は "$argon2id$v=19$m=65536,t=2,p=2$salt$hash" 形式の文字列を分解する。
func parsePHC(encoded string) (salt, key []byte, memory, timeParam uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeParam, &threads); err != nil {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	return salt, key, memory, timeParam, threads, nil
}
