package log

import "moneymanager/internal/core"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOwnerID       = "owner_id"
	FieldAccountID     = "account_id"
	FieldFromAccountID = "from_account_id"
	FieldToAccountID   = "to_account_id"
	FieldTransactionID = "transaction_id"
	FieldTransferID    = "transfer_id"
	FieldBudgetID      = "budget_id"
	FieldType          = "type"
	FieldCategory      = "category"
	FieldDivision      = "division"
	FieldPeriod        = "period"
	FieldAmountCents   = "amount_cents"
	FieldBalanceCents  = "balance_cents"
	FieldExpectedCents = "expected_cents"
	FieldEventType     = "event_type"
	FieldCount         = "count"
	FieldDuration      = "duration_ms"
	FieldTraceID       = "trace_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentAccounts  = "accounts"
	ComponentLedger    = "ledger"
	ComponentTransfer  = "transfer"
	ComponentBudget    = "budget"
	ComponentDashboard = "dashboard"
	ComponentAudit     = "audit"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpApplyDelta = "apply_delta"
	OpSetPrimary = "set_primary"
	OpTransfer   = "transfer"
	OpAudit      = "audit"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithOwner adds the caller identity
func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

// WithError adds the error and its taxonomy kind
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = core.Kind(err)
	}
	return f
}

// WithAccount adds account fields
func (f LogFields) WithAccount(id string, balance core.Money) LogFields {
	f[FieldAccountID] = id
	f[FieldBalanceCents] = balance.Cents
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	f[FieldTransactionID] = t.ID
	f[FieldAccountID] = t.AccountID
	f[FieldType] = string(t.Type)
	f[FieldAmountCents] = t.Amount.Cents
	f[FieldCategory] = t.Category
	f[FieldDivision] = string(t.Division)
	return f
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
