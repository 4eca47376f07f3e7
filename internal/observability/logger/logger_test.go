package logger

import (
	"context"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/grievance-portal/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@example.com", MaskEmail("jane@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
	assert.Equal(t, "***", MaskEmail("@example.com"))
}

func TestWithContextOmitsEmptyFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("plain")
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	WithContext(ctx, base).Info("scoped")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Empty(t, entries[0].Context)
	assert.Equal(t, "req-1", entries[1].ContextMap()["request_id"])
}

func TestDescribeSQL(t *testing.T) {
	op, table := describeSQL(`SELECT id, status FROM complaints WHERE id = ?`)
	assert.Equal(t, "SELECT", op)
	assert.Equal(t, "complaints", table)

	op, table = describeSQL(`INSERT INTO "payment_events" (id) VALUES (?)`)
	assert.Equal(t, "INSERT", op)
	assert.Equal(t, "payment_events", table)

	op, table = describeSQL(`UPDATE complaints SET status = ?`)
	assert.Equal(t, "UPDATE", op)
	assert.Equal(t, "complaints", table)
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := zap.L()
	zap.ReplaceGlobals(zap.New(core))
	defer zap.ReplaceGlobals(prev)

	l := NewGormLogger(DefaultGormLoggerConfig())
	fc := func() (string, int64) { return "SELECT * FROM complaints", 0 }
	l.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), fc, assert.AnError)
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "db.query", logs.All()[0].Message)
}
