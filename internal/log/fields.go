package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldOrgID       = "org_id"
	FieldPeriod      = "period"
	FieldVendor      = "vendor"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldImported    = "imported"
	FieldSkipped     = "skipped"
	FieldMonth       = "month"
	FieldCount       = "count"
)

// Standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentImport  = "import"
	ComponentReport  = "report"
)
