package service

import (
	"context"
	"testing"

	"hospital-inventory/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_ResolvesUsernames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := &model.User{Username: "auditor", Password: "x", Role: model.RoleAdmin, IsActive: true}
	require.NoError(t, env.users.Create(ctx, user))
	actor := Actor{UserID: user.ID.String(), Role: model.RoleAdmin}

	_, err := env.requisitionService().Create(ctx, actor, CreateRequisitionRequest{DepartmentName: "Ward A"})
	require.NoError(t, err)
	require.NoError(t, env.audit.Log(ctx, newAudit(SystemActor, model.ActionCreateItem, "x", "seeded", nil)))

	svc := NewAuditService(env.audit)
	logs, total, err := svc.GetAuditLogs(ctx, AuditLogQuery{Action: model.ActionCreateRequisition})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "auditor", logs[0].Username)
	assert.JSONEq(t, `"Ward A"`, string(mustField(t, logs[0].Details, "departmentName")))

	logs, _, err = svc.GetAuditLogs(ctx, AuditLogQuery{Action: model.ActionCreateItem})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "System", logs[0].Username)
	assert.Equal(t, "null", string(logs[0].Details))
}
