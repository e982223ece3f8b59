// Package access holds the single role -> capability table used by both
// route middleware and services.
package access

import "hospital-inventory/internal/model"

type Action string

const (
	RequisitionsCreate  Action = "requisitions.create"
	RequisitionsRead    Action = "requisitions.read"
	RequisitionsReadAll Action = "requisitions.read_all"
	RequisitionsManage  Action = "requisitions.manage" // forward, cancel, update, delete

	ItemsRead   Action = "items.read"
	ItemsCreate Action = "items.create"
	ItemsManage Action = "items.manage" // update, delete

	VouchersRead   Action = "vouchers.read"
	VouchersManage Action = "vouchers.manage"

	PurchaseOrdersRead   Action = "purchase_orders.read"
	PurchaseOrdersManage Action = "purchase_orders.manage"

	SuppliersRead   Action = "suppliers.read"
	SuppliersManage Action = "suppliers.manage"

	UsersManage   Action = "users.manage"
	ReportsRead   Action = "reports.read"
	AuditLogsRead Action = "audit_logs.read"
)

// subordinate capabilities; admin may do everything.
var subordinateActions = map[Action]bool{
	RequisitionsCreate: true,
	RequisitionsRead:   true,
	ItemsRead:          true,
	ItemsCreate:        true,
}

// CanPerform reports whether a role is allowed to perform action.
func CanPerform(role string, action Action) bool {
	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleSubordinate:
		return subordinateActions[action]
	default:
		return false
	}
}

// Capabilities lists the actions granted to role, for the /auth/me payload.
func Capabilities(role string) []Action {
	out := make([]Action, 0, len(allActions))
	for _, a := range allActions {
		if CanPerform(role, a) {
			out = append(out, a)
		}
	}
	return out
}

var allActions = []Action{
	RequisitionsCreate, RequisitionsRead, RequisitionsReadAll, RequisitionsManage,
	ItemsRead, ItemsCreate, ItemsManage,
	VouchersRead, VouchersManage,
	PurchaseOrdersRead, PurchaseOrdersManage,
	SuppliersRead, SuppliersManage,
	UsersManage, ReportsRead, AuditLogsRead,
}
