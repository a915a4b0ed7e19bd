package logger_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type loggedRound struct {
	ID         uint
	CrashPoint float64
}

func TestGormLoggingIntegration(t *testing.T) {
	out := &lockedBuffer{}
	logger.Init(logger.Config{
		Level:  "debug",
		Format: "json",
		Output: out,
	})

	gormLog := logger.NewGormLogger()
	gormLog.LogLevel = gormlogger.Info

	db, err := gorm.Open(sqlite.Open("file:gorm_logging?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormLog,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&loggedRound{}))

	ctx := logger.WithRequestID(context.Background(), "req-gorm")
	round := loggedRound{CrashPoint: 2.5}
	require.NoError(t, db.WithContext(ctx).Create(&round).Error)

	var found loggedRound
	require.NoError(t, db.WithContext(ctx).First(&found, round.ID).Error)

	err = db.WithContext(ctx).Table("missing_table").Find(&found).Error
	require.Error(t, err)

	logger.Flush()
	output := out.String()

	assert.Contains(t, output, "INSERT INTO")
	assert.Contains(t, output, "SELECT * FROM")
	assert.Contains(t, output, `"rows":`)
	assert.Contains(t, output, `"elapsed_ms":`)
	assert.Contains(t, output, `"request_id":"req-gorm"`)
	assert.Contains(t, output, `"level":"error"`)
}

// The subprocess initializes a file logger and panics; buffered lines must
// still reach the file through the deferred Flush.
func TestLoggerFlushOnPanic(t *testing.T) {
	if path := os.Getenv("PANIC_TEST_LOG"); path != "" {
		doLoggerWork(path)
		return
	}

	path := filepath.Join(t.TempDir(), "panic_test.log")
	cmd := exec.Command(os.Args[0], "-test.run=TestLoggerFlushOnPanic")
	cmd.Env = append(os.Environ(), "PANIC_TEST_LOG="+path)

	// non-zero exit is expected
	_ = cmd.Run()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "log file was never flushed")
	assert.Contains(t, string(content), "This message should be flushed before panic")
}

func doLoggerWork(path string) {
	logger.InitWithFile(path, "info", "json", false)
	defer logger.Flush()

	logger.InfoGlobal().Msg("This message should be flushed before panic")
	panic("Intentional panic for testing")
}
