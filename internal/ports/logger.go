package ports

import "context"

// Logger is the logging contract every adapter and service receives by injection.
// Fields are an optional single map of structured key/value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err together with msg at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
