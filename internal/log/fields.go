package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldUser      = "user"
	FieldExpense   = "expense"
	FieldAmount    = "amount"
	FieldCurrency  = "currency"
	FieldCategory  = "category"
	FieldQueue     = "queue"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentExpense  = "expense"
	ComponentReport   = "report"
	ComponentScope    = "scope"
	ComponentAuth     = "auth"
	ComponentNotify   = "notify"
	ComponentUsers    = "users"
	ComponentDelivery = "delivery"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpPublish = "publish"
	OpSignIn  = "sign_in"
	OpSignOut = "sign_out"
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

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithUser adds the acting user's id
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUser] = userID
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id string, amount float64, currency, category string) LogFields {
	f[FieldExpense] = id
	f[FieldAmount] = amount
	f[FieldCurrency] = currency
	f[FieldCategory] = category
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
