package service

import (
	"context"
	"testing"

	"hospital-inventory/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedService_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cfg := config.SeedConfig{
		AdminUsername:       "admin",
		AdminPassword:       "admin123",
		SubordinateUsername: "subordinate",
		SubordinatePassword: "subordinate123",
	}
	svc := NewSeedService(env.users, env.suppliers, env.items, env.movements, env.tx, cfg, nil)

	first, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Users)
	assert.Equal(t, len(seedSuppliers), first.Suppliers)
	assert.Equal(t, len(seedItems), first.Items)

	second, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SeedReport{}, second)

	res, err := env.userService(nil).Login(ctx, "127.0.0.1", LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, "admin", res.User.Role)

	item, err := env.items.FindByCode(ctx, "MED-PARA-500")
	require.NoError(t, err)
	assert.Equal(t, 120, item.Quantity)
	require.NotNil(t, item.SupplierID)
}
