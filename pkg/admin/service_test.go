package admin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/pkg/database"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	client, err := database.NewSQLiteClient(database.MemoryDSN(uuid.NewString()), logger.Discard())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Migrate(context.Background()))

	svc := NewService(client.DB, logger.Discard())
	ctx := context.Background()

	t.Run("Success - ensure creates once", func(t *testing.T) {
		a, created, err := svc.Ensure(ctx, "root", "Root@Example.dz", "admin-pass")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "root@example.dz", a.Email)
		assert.True(t, a.IsSuperuser)

		again, created, err := svc.Ensure(ctx, "root", "", "other-pass")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, a.ID, again.ID)
	})

	t.Run("Success - authenticate", func(t *testing.T) {
		a, err := svc.Authenticate(ctx, " root ", "admin-pass")
		require.NoError(t, err)
		assert.Equal(t, "root", a.Username)

		got, err := svc.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
	})

	t.Run("Error - wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "root", "other-pass")
		assert.True(t, domain.IsUnauthorized(err))
	})

	t.Run("Error - unknown user", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "ghost", "admin-pass")
		assert.True(t, domain.IsUnauthorized(err))
	})

	t.Run("Error - missing fields", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "", "")
		assert.True(t, domain.IsValidation(err))

		_, _, err = svc.Ensure(ctx, "", "", "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Error - unknown id", func(t *testing.T) {
		_, err := svc.Get(ctx, uuid.New())
		assert.True(t, domain.IsNotFound(err))
	})
}
