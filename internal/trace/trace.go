// Package trace 在 context 中传递 trace ID，每次刷新一个 ID，日志行带 TRACE=id 便于排查。
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
)

type ctxKey int

const traceIDKey ctxKey = 0

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

func NewTraceID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "0"
	}
	return hex.EncodeToString(b)
}

var logMu sync.Mutex

// Log 打日志，每行开头固定为 TRACE=id，便于一眼看到 trace 并 grep
func Log(ctx context.Context, format string, args ...interface{}) {
	id := TraceID(ctx)
	if id == "" {
		id = "-"
	}
	logMu.Lock()
	msg := fmt.Sprintf(format, args...)
	log.Printf("TRACE=%s | %s", id, msg)
	logMu.Unlock()
}

// Warn 跳行类警告：行情缺失、数据非法等，单只股票跳过但整体继续。
func Warn(ctx context.Context, format string, args ...interface{}) {
	Log(ctx, "--- Warning!!! --- "+format, args...)
}

// Error 中止类错误：缺列、表不存在等，当前驱动中止但进程不退出。
func Error(ctx context.Context, format string, args ...interface{}) {
	Log(ctx, "--- Error!!! --- "+format, args...)
}
