package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestIssue тестирует создание JWT токена
func TestIssue(t *testing.T) {
	ts, err := NewTokenService("", 0)
	if err != nil {
		t.Fatalf("Ошибка создания сервиса: %v", err)
	}

	token, err := ts.Issue(uuid.New(), "admin", true)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	// Проверяем, что токен содержит точки (разделители частей JWT)
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}
}

// TestValidate тестирует валидацию JWT токена
func TestValidate(t *testing.T) {
	ts, _ := NewTokenService(GenerateSecureSecret(), time.Hour)
	agent := uuid.New()

	token, err := ts.Issue(agent, "validuser", true)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	claims, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Валидный токен определен как недействительный: %v", err)
	}
	if claims.AgentID != agent {
		t.Errorf("Неверный agent: ожидался %s, получен %s", agent, claims.AgentID)
	}
	if !claims.IsAdmin {
		t.Error("Потерян признак администратора")
	}
}

// TestValidateInvalid тестирует отказ для испорченных и чужих токенов
func TestValidateInvalid(t *testing.T) {
	ts, _ := NewTokenService("", 0)
	other, _ := NewTokenService("", 0)

	foreign, _ := other.Issue(uuid.New(), "intruder", true)
	cases := map[string]string{
		"пустой":     "",
		"мусор":      "not.a.token",
		"чужой ключ": foreign,
	}
	for name, token := range cases {
		if _, err := ts.Validate(token); err == nil {
			t.Errorf("%s токен принят", name)
		}
	}
}

// TestValidateExpired проверяет срок действия
func TestValidateExpired(t *testing.T) {
	ts, _ := NewTokenService("", time.Minute)
	now := time.Now()
	ts.now = func() time.Time { return now }

	token, _ := ts.Issue(uuid.New(), "admin", true)
	ts.now = func() time.Time { return now.Add(2 * time.Minute) }

	if _, err := ts.Validate(token); err == nil {
		t.Error("Просроченный токен принят")
	}
}

// TestValidateRejectsNone проверяет, что алгоритм none не проходит
func TestValidateRejectsNone(t *testing.T) {
	ts, _ := NewTokenService("", 0)
	claims := &Claims{
		AgentID: uuid.New(),
		IsAdmin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Ошибка подписи: %v", err)
	}
	if _, err := ts.Validate(token); err == nil {
		t.Error("Токен без подписи принят")
	}
}

// TestNewTokenServiceSecret тестирует разбор секрета
func TestNewTokenServiceSecret(t *testing.T) {
	if _, err := NewTokenService(base64.StdEncoding.EncodeToString([]byte("short")), 0); err != ErrWeakSecret {
		t.Errorf("Ожидалась ErrWeakSecret, получено %v", err)
	}
	if _, err := NewTokenService("%%%", 0); err == nil {
		t.Error("Невалидный base64 принят")
	}

	secret := GenerateSecureSecret()
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(decoded) != 32 {
		t.Errorf("Неверный секрет: %v, длина %d", err, len(decoded))
	}
	if _, err := NewTokenService(secret, 0); err != nil {
		t.Errorf("Валидный секрет отклонён: %v", err)
	}
}
