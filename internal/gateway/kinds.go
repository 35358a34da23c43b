package gateway

import "github.com/meridian-crm/meridian/internal/authz"

// Entity kinds mirrored by the console. The set is closed; adding a kind
// means adding its schema here.
const (
	KindLeads             Kind = "leads"
	KindClients           Kind = "clients"
	KindContacts          Kind = "contacts"
	KindDeals             Kind = "deals"
	KindQuotes            Kind = "quotes"
	KindActivities        Kind = "activities"
	KindCampaigns         Kind = "campaigns"
	KindMeetings          Kind = "meetings"
	KindNotes             Kind = "notes"
	KindReminders         Kind = "reminders"
	KindProjects          Kind = "projects"
	KindTasks             Kind = "tasks"
	KindMilestones        Kind = "milestones"
	KindTimesheets        Kind = "timesheets"
	KindInvoices          Kind = "invoices"
	KindPayments          Kind = "payments"
	KindTransactions      Kind = "transactions"
	KindExpenses          Kind = "expenses"
	KindBudgets           Kind = "budgets"
	KindTaxRates          Kind = "tax_rates"
	KindBankAccounts      Kind = "bank_accounts"
	KindProducts          Kind = "products"
	KindMaterials         Kind = "materials"
	KindWorkOrders        Kind = "work_orders"
	KindProductionRuns    Kind = "production_runs"
	KindQualityChecks     Kind = "quality_checks"
	KindInventoryItems    Kind = "inventory_items"
	KindStockMoves        Kind = "stock_moves"
	KindSuppliers         Kind = "suppliers"
	KindPurchaseOrders    Kind = "purchase_orders"
	KindEmployees         Kind = "employees"
	KindDepartments       Kind = "departments"
	KindPositions         Kind = "positions"
	KindPayrollEntries    Kind = "payroll_entries"
	KindLeaveRequests     Kind = "leave_requests"
	KindAttendanceRecords Kind = "attendance_records"
	KindTrainings         Kind = "trainings"
	KindAssets            Kind = "assets"
	KindContracts         Kind = "contracts"
	KindDocuments         Kind = "documents"
)

func req(name string, t FieldType) FieldSpec { return FieldSpec{Name: name, Type: t, Required: true} }
func opt(name string, t FieldType) FieldSpec { return FieldSpec{Name: name, Type: t} }

// DefaultRegistry declares every mirrored collection, its owning module,
// and whether removal is a soft delete (active flag) or a hard delete.
func DefaultRegistry() *Registry {
	return NewRegistry([]Schema{
		{Kind: KindLeads, Module: authz.ModulePipeline, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("company", FieldString), opt("email", FieldString),
			opt("phone", FieldString), req("status", FieldString), opt("source", FieldString),
			opt("value", FieldNumber), opt("client_id", FieldRef), opt("owner_id", FieldRef),
		}},
		{Kind: KindClients, Module: authz.ModuleClients, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("company", FieldString), opt("email", FieldString),
			opt("phone", FieldString), opt("address", FieldString), opt("tax_id", FieldString),
			opt("owner_id", FieldRef), opt("lead_id", FieldRef),
		}},
		{Kind: KindContacts, Module: authz.ModuleClients, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("email", FieldString), opt("phone", FieldString),
			opt("position", FieldString), opt("client_id", FieldRef),
		}},
		{Kind: KindDeals, Module: authz.ModulePipeline, SoftDelete: true, Fields: []FieldSpec{
			req("title", FieldString), req("stage", FieldString), opt("value", FieldNumber),
			opt("client_id", FieldRef), opt("expected_close", FieldTime), opt("owner_id", FieldRef),
		}},
		{Kind: KindQuotes, Module: authz.ModulePipeline, SoftDelete: true, Fields: []FieldSpec{
			req("number", FieldString), req("client_id", FieldRef), opt("total", FieldNumber),
			opt("valid_until", FieldTime), opt("status", FieldString),
		}},
		{Kind: KindActivities, Module: authz.ModulePipeline, Fields: []FieldSpec{
			req("subject", FieldString), req("kind", FieldString), opt("due_at", FieldTime),
			opt("done", FieldBool), opt("lead_id", FieldRef), opt("client_id", FieldRef),
		}},
		{Kind: KindCampaigns, Module: authz.ModulePipeline, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("channel", FieldString), opt("budget", FieldNumber),
			opt("starts_at", FieldTime), opt("ends_at", FieldTime),
		}},
		{Kind: KindMeetings, Module: authz.ModuleCalendar, Fields: []FieldSpec{
			req("title", FieldString), req("starts_at", FieldTime), opt("ends_at", FieldTime),
			opt("location", FieldString), opt("client_id", FieldRef),
		}},
		{Kind: KindNotes, Module: authz.ModuleCalendar, Fields: []FieldSpec{
			req("body", FieldString), opt("pinned", FieldBool), opt("entity_ref", FieldRef),
		}},
		{Kind: KindReminders, Module: authz.ModuleCalendar, Fields: []FieldSpec{
			req("message", FieldString), req("remind_at", FieldTime), opt("done", FieldBool),
		}},
		{Kind: KindProjects, Module: authz.ModuleProjects, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), req("status", FieldString), opt("client_id", FieldRef),
			opt("budget", FieldNumber), opt("starts_at", FieldTime), opt("deadline", FieldTime),
		}},
		{Kind: KindTasks, Module: authz.ModuleProjects, Fields: []FieldSpec{
			req("title", FieldString), req("status", FieldString), opt("project_id", FieldRef),
			opt("assignee_id", FieldRef), opt("due_at", FieldTime), opt("priority", FieldString),
		}},
		{Kind: KindMilestones, Module: authz.ModuleProjects, Fields: []FieldSpec{
			req("title", FieldString), req("project_id", FieldRef), opt("due_at", FieldTime),
			opt("reached", FieldBool),
		}},
		{Kind: KindTimesheets, Module: authz.ModuleProjects, Fields: []FieldSpec{
			req("employee_id", FieldRef), req("hours", FieldNumber), req("worked_on", FieldTime),
			opt("project_id", FieldRef), opt("notes", FieldString),
		}},
		{Kind: KindInvoices, Module: authz.ModuleFinance, SoftDelete: true, Fields: []FieldSpec{
			req("number", FieldString), req("client_id", FieldRef), req("total", FieldNumber),
			opt("status", FieldString), opt("issued_at", FieldTime), opt("due_at", FieldTime),
		}},
		{Kind: KindPayments, Module: authz.ModuleFinance, Fields: []FieldSpec{
			req("invoice_id", FieldRef), req("amount", FieldNumber), req("paid_at", FieldTime),
			opt("method", FieldString),
		}},
		{Kind: KindTransactions, Module: authz.ModuleFinance, Fields: []FieldSpec{
			req("amount", FieldNumber), req("direction", FieldString), req("occurred_at", FieldTime),
			opt("category", FieldString), opt("account_id", FieldRef), opt("memo", FieldString),
		}},
		{Kind: KindExpenses, Module: authz.ModuleFinance, SoftDelete: true, Fields: []FieldSpec{
			req("amount", FieldNumber), req("category", FieldString), opt("incurred_at", FieldTime),
			opt("employee_id", FieldRef), opt("approved", FieldBool),
		}},
		{Kind: KindBudgets, Module: authz.ModuleFinance, Fields: []FieldSpec{
			req("name", FieldString), req("amount", FieldNumber), opt("period", FieldString),
			opt("department_id", FieldRef),
		}},
		{Kind: KindTaxRates, Module: authz.ModuleFinance, Fields: []FieldSpec{
			req("name", FieldString), req("rate", FieldNumber), opt("country", FieldString),
		}},
		{Kind: KindBankAccounts, Module: authz.ModuleFinance, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), req("iban", FieldString), opt("currency", FieldString),
			opt("balance", FieldNumber),
		}},
		{Kind: KindProducts, Module: authz.ModuleProduction, SoftDelete: true, Fields: []FieldSpec{
			req("sku", FieldString), req("name", FieldString), opt("price", FieldNumber),
			opt("unit", FieldString),
		}},
		{Kind: KindMaterials, Module: authz.ModuleProduction, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("supplier_id", FieldRef), opt("unit_cost", FieldNumber),
			opt("unit", FieldString),
		}},
		{Kind: KindWorkOrders, Module: authz.ModuleProduction, Fields: []FieldSpec{
			req("number", FieldString), req("status", FieldString), opt("product_id", FieldRef),
			opt("quantity", FieldNumber), opt("due_at", FieldTime),
		}},
		{Kind: KindProductionRuns, Module: authz.ModuleProduction, Fields: []FieldSpec{
			req("work_order_id", FieldRef), req("started_at", FieldTime), opt("finished_at", FieldTime),
			opt("yield", FieldNumber),
		}},
		{Kind: KindQualityChecks, Module: authz.ModuleProduction, Fields: []FieldSpec{
			req("production_run_id", FieldRef), req("passed", FieldBool), opt("notes", FieldString),
			opt("checked_at", FieldTime),
		}},
		{Kind: KindInventoryItems, Module: authz.ModuleInventory, SoftDelete: true, Fields: []FieldSpec{
			req("product_id", FieldRef), req("quantity", FieldNumber), opt("warehouse", FieldString),
			opt("reorder_level", FieldNumber),
		}},
		{Kind: KindStockMoves, Module: authz.ModuleInventory, Fields: []FieldSpec{
			req("inventory_item_id", FieldRef), req("delta", FieldNumber), req("moved_at", FieldTime),
			opt("reason", FieldString),
		}},
		{Kind: KindSuppliers, Module: authz.ModuleInventory, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("email", FieldString), opt("phone", FieldString),
			opt("address", FieldString),
		}},
		{Kind: KindPurchaseOrders, Module: authz.ModuleInventory, SoftDelete: true, Fields: []FieldSpec{
			req("number", FieldString), req("supplier_id", FieldRef), req("status", FieldString),
			opt("total", FieldNumber), opt("expected_at", FieldTime),
		}},
		{Kind: KindEmployees, Module: authz.ModuleHR, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), req("email", FieldString), opt("position_id", FieldRef),
			opt("department_id", FieldRef), opt("hired_at", FieldTime), opt("salary", FieldNumber),
		}},
		{Kind: KindDepartments, Module: authz.ModuleHR, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("manager_id", FieldRef),
		}},
		{Kind: KindPositions, Module: authz.ModuleHR, Fields: []FieldSpec{
			req("title", FieldString), opt("department_id", FieldRef), opt("grade", FieldString),
		}},
		{Kind: KindPayrollEntries, Module: authz.ModuleHR, Fields: []FieldSpec{
			req("employee_id", FieldRef), req("amount", FieldNumber), req("period", FieldString),
			opt("paid_at", FieldTime),
		}},
		{Kind: KindLeaveRequests, Module: authz.ModuleHR, Fields: []FieldSpec{
			req("employee_id", FieldRef), req("starts_at", FieldTime), req("ends_at", FieldTime),
			opt("status", FieldString), opt("reason", FieldString),
		}},
		{Kind: KindAttendanceRecords, Module: authz.ModuleHR, Fields: []FieldSpec{
			req("employee_id", FieldRef), req("day", FieldTime), opt("clock_in", FieldTime),
			opt("clock_out", FieldTime),
		}},
		{Kind: KindTrainings, Module: authz.ModuleHR, SoftDelete: true, Fields: []FieldSpec{
			req("title", FieldString), opt("starts_at", FieldTime), opt("trainer", FieldString),
			opt("seats", FieldNumber),
		}},
		{Kind: KindAssets, Module: authz.ModuleInventory, SoftDelete: true, Fields: []FieldSpec{
			req("name", FieldString), opt("serial", FieldString), opt("assigned_to", FieldRef),
			opt("purchased_at", FieldTime), opt("value", FieldNumber),
		}},
		{Kind: KindContracts, Module: authz.ModuleDocuments, SoftDelete: true, Fields: []FieldSpec{
			req("title", FieldString), req("client_id", FieldRef), opt("signed_at", FieldTime),
			opt("expires_at", FieldTime), opt("value", FieldNumber),
		}},
		{Kind: KindDocuments, Module: authz.ModuleDocuments, SoftDelete: true, Fields: []FieldSpec{
			req("title", FieldString), opt("url", FieldString), opt("entity_ref", FieldRef),
			opt("uploaded_at", FieldTime),
		}},
	})
}
