package logging

import "context"

type attrsKey struct{}

// WithAttrs attaches key/value pairs that downstream log events carry, such as the namespace being served.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev := Attrs(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func Attrs(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	args, _ := ctx.Value(attrsKey{}).([]any)
	return args
}
