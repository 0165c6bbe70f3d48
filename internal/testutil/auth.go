package testutil

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/require"
)

const (
	JWTSecret     = "test-secret"
	JWTExpiration = "15m"
)

// JWTService returns the token service every test signs with.
func JWTService() jwt.Service {
	return jwt.NewJWTService(JWTSecret, JWTExpiration)
}

// Token signs an access token for actor.
func Token(t *testing.T, actor jwt.Actor) string {
	t.Helper()
	claims := jwt.AccessClaims{
		UserID:  actor.UserID,
		Email:   actor.UserID + "@example.com",
		IsAdmin: actor.IsAdmin,
	}
	if actor.EmployeeID != "" {
		employeeID := actor.EmployeeID
		claims.EmployeeID = &employeeID
	}
	token, _, err := JWTService().GenerateAccessToken(claims)
	require.NoError(t, err)
	return token
}

// ActorContext returns a context carrying a verified token for actor, the
// way the Verifier middleware leaves it.
func ActorContext(t *testing.T, actor jwt.Actor) context.Context {
	t.Helper()
	token, err := JWTService().JWTAuth().Decode(Token(t, actor))
	require.NoError(t, err)
	return jwtauth.NewContext(context.Background(), token, nil)
}

// Admin is an operator without an employee record.
func Admin() jwt.Actor {
	return jwt.Actor{UserID: "admin-1", IsAdmin: true}
}

// EmployeeActor is a regular employee acting on their own timesheets.
func EmployeeActor(employeeID string) jwt.Actor {
	return jwt.Actor{UserID: "user-" + employeeID, EmployeeID: employeeID}
}
