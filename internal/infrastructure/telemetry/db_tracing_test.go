package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:64"`
}

func openTracedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := openTracedDB(t)
	require.NoError(t, NewDBTracingPlugin(DBTracingConfig{}, nil).Register(db))
	assert.Nil(t, db.Callback().Query().Get("squill:annotate_query"))
}

func TestDBTracingPlugin_DefaultThreshold(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
}

func TestDBTracingPlugin_Annotate(t *testing.T) {
	db := openTracedDB(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	p := NewDBTracingPlugin(DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: time.Nanosecond,
		DBName:          "squill",
		TracerProvider:  tp,
	}, nil)
	require.NoError(t, p.Register(db))
	assert.NotNil(t, db.Callback().Query().Get("squill:annotate_query"))

	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)
	require.Error(t, db.WithContext(ctx).Exec("SELECT * FROM missing_table").Error)
	span.End()

	var slow, failed bool
	for _, s := range recorder.Ended() {
		if s.Name() == "request" {
			continue
		}
		for _, ev := range s.Events() {
			if ev.Name == "slow_query" {
				slow = true
			}
		}
		if s.Status().Code == codes.Error {
			failed = true
		}
	}
	assert.True(t, slow, "query spans carry the slow_query event")
	assert.True(t, failed, "failed statement marks its span")
}
