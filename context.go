package microchan

import (
	"context"
	"regexp"

	"github.com/tendermint/tendermint/libs/log"
)

type contextKey int

const (
	contextKeyLogInfo contextKey = iota
)

var (
	// IsValidChainID is the RegExp to ensure valid chain IDs.
	IsValidChainID = regexp.MustCompile(`^[a-zA-Z0-9_\-]{6,20}$`).MatchString
)

// WithLogInfo accepts keyvalue pairs, and returns another context like
// this, carrying them in addition to the ones already set.
func WithLogInfo(ctx context.Context, keyvals ...interface{}) context.Context {
	prev := LogInfo(ctx)
	kv := make([]interface{}, 0, len(prev)+len(keyvals))
	kv = append(append(kv, prev...), keyvals...)
	return context.WithValue(ctx, contextKeyLogInfo, kv)
}

// LogInfo returns the keyvalue pairs set with WithLogInfo.
func LogInfo(ctx context.Context) []interface{} {
	if ctx == nil {
		return nil
	}
	kv, _ := ctx.Value(contextKeyLogInfo).([]interface{})
	return kv
}

// Logger returns base extended with the keyvalue pairs carried by ctx.
func Logger(ctx context.Context, base log.Logger) log.Logger {
	if kv := LogInfo(ctx); len(kv) != 0 {
		return base.With(kv...)
	}
	return base
}
