package auth_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/tenantnote/pkg/auth"
	"github.com/surrealdb/tenantnote/pkg/models"
)

var testSecret = []byte("test-secret")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testClaims() auth.Claims {
	return auth.Claims{
		UserID:     models.NewUserID(),
		Email:      "admin@acme.test",
		Role:       models.RoleAdmin,
		TenantID:   models.NewTenantID(),
		TenantSlug: "acme",
		TenantPlan: models.PlanFree,
	}
}

func TestNewCodecValidation(t *testing.T) {
	_, err := auth.NewCodec(nil, time.Hour)
	assert.Error(t, err)

	_, err = auth.NewCodec(testSecret, 0)
	assert.Error(t, err)
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	codec, err := auth.NewCodec(testSecret, 24*time.Hour, auth.WithClock(fixedClock(now)))
	require.NoError(t, err)

	in := testClaims()
	token, err := codec.Issue(in)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	out, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.Email, out.Email)
	assert.Equal(t, in.Role, out.Role)
	assert.Equal(t, in.TenantID, out.TenantID)
	assert.Equal(t, in.TenantSlug, out.TenantSlug)
	assert.Equal(t, in.TenantPlan, out.TenantPlan)
	require.NotNil(t, out.ExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), out.ExpiresAt.Unix())
}

func TestClaimsWireNames(t *testing.T) {
	codec, err := auth.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := codec.Issue(testClaims())
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	require.NoError(t, err)
	for _, key := range []string{`"userId"`, `"email"`, `"role"`, `"tenantId"`, `"tenantSlug"`, `"tenantPlan"`, `"exp"`} {
		assert.Contains(t, string(payload), key)
	}
}

func TestDecodeRejects(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	codec, err := auth.NewCodec(testSecret, time.Hour, auth.WithClock(fixedClock(now)))
	require.NoError(t, err)

	valid, err := codec.Issue(testClaims())
	require.NoError(t, err)
	parts := strings.Split(valid, ".")

	other, err := auth.NewCodec([]byte("other-secret"), time.Hour, auth.WithClock(fixedClock(now)))
	require.NoError(t, err)
	foreign, err := other.Issue(testClaims())
	require.NoError(t, err)

	expiredClaims := testClaims()
	expiredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Second))
	expired, err := codec.Issue(expiredClaims)
	require.NoError(t, err)

	atNowClaims := testClaims()
	atNowClaims.ExpiresAt = jwt.NewNumericDate(now)
	atNow, err := codec.Issue(atNowClaims)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": models.NewUserID().String(),
		"role":   "admin",
	}).SignedString(testSecret)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"role": "admin",
		"exp":  now.Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"role": "admin",
		"exp":  now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tamperedPayload := base64.RawURLEncoding.EncodeToString(
		[]byte(`{"userId":"x","role":"admin","tenantSlug":"globex","exp":4102444800}`))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", parts[0] + "." + parts[1]},
		{"four segments", valid + ".x"},
		{"undecodable claims", parts[0] + ".!!!." + parts[2]},
		{"modified claims", parts[0] + "." + tamperedPayload + "." + parts[2]},
		{"other secret", foreign},
		{"expired one second ago", expired},
		{"expires now", atNow},
		{"missing exp", noExp},
		{"wrong algorithm", hs512},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := codec.Decode(tt.token)
			require.ErrorIs(t, err, auth.ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestClaimsFor(t *testing.T) {
	tenant := &models.Tenant{ID: models.NewTenantID(), Slug: "acme", Plan: models.PlanPro}
	user := &models.User{
		ID:       models.NewUserID(),
		Email:    "user@acme.test",
		Role:     models.RoleMember,
		TenantID: tenant.ID,
		Tenant:   tenant,
	}

	claims, err := auth.ClaimsFor(user)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.TenantSlug)
	assert.Equal(t, models.PlanPro, claims.TenantPlan)
	assert.Equal(t, tenant.ID, claims.TenantID)

	user.Tenant = nil
	_, err = auth.ClaimsFor(user)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	// bcrypt hash of "password" used by the demo seed data
	const seedHash = "$2a$10$92IXUNpkjO0rOQ5byMi.Ye4oKoEa3Ro9llC/.og/at2.uheWG/igi"
	assert.True(t, auth.CheckPassword(seedHash, "password"))
	assert.False(t, auth.CheckPassword(seedHash, "Password"))
	assert.False(t, auth.CheckPassword("not-a-hash", "password"))

	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(hash, "hunter2"))
}
