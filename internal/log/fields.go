package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUser       = "user"
	FieldDepartment = "department"
	FieldFiscalYear = "fiscal_year"
	FieldCategory   = "category"
	FieldRows       = "rows"
	FieldCacheHit   = "cache_hit"
	FieldCacheKey   = "cache_key"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentCache   = "cache"
	ComponentSession = "session"
	ComponentReport  = "report"
)

// Operations defines standard operation names
const (
	OpLoad      = "load"
	OpFilter    = "filter"
	OpExport    = "export"
	OpRefresh   = "refresh"
	OpSelection = "selection"
	OpRender    = "render"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
