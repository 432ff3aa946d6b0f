package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID = "user_id"
	FieldEmail  = "email"

	// Realtime
	FieldConnID      = "conn_id"
	FieldEvent       = "event"
	FieldRecipientID = "recipient_id"
	FieldMessageID   = "message_id"
	FieldOnline      = "online"

	// Service
	FieldService   = "service"
	FieldInstance  = "instance"
	FieldComponent = "component"

	// gRPC
	FieldGRPCMethod = "grpc_method"
	FieldGRPCCode   = "grpc_code"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
