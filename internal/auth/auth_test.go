package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestIssueAndVerifyToken(t *testing.T) {
	svc := NewService("test-key", time.Hour, testLogger(t))

	staff := Staff{ID: "staff-1", DisplayName: "Sato Ken", Role: RoleDoctor}
	token, err := svc.IssueToken(staff)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	verified, err := svc.VerifyToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "staff-1", verified.ID)
	assert.Equal(t, "Sato Ken", verified.DisplayName)
	assert.Equal(t, RoleDoctor, verified.Role)
	assert.True(t, verified.IsDoctor())
}

func TestVerifyTokenRejectsWrongKey(t *testing.T) {
	issuer := NewService("key-a", time.Hour, testLogger(t))
	verifier := NewService("key-b", time.Hour, testLogger(t))

	token, err := issuer.IssueToken(Staff{ID: "staff-1", Role: RoleNurse})
	assert.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc := NewService("test-key", -time.Minute, testLogger(t))

	token, err := svc.IssueToken(Staff{ID: "staff-1", Role: RoleNurse})
	assert.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := NewService("test-key", time.Hour, testLogger(t))

	_, err := svc.VerifyToken("not-a-token")
	assert.Error(t, err)
}

func TestIsDoctor(t *testing.T) {
	assert.True(t, Staff{Role: RoleDoctor}.IsDoctor())
	assert.False(t, Staff{Role: RoleNurse}.IsDoctor())
	assert.False(t, Staff{Role: "admin"}.IsDoctor())
}
