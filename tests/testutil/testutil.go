package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"testing"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestJWTSecret signs tokens issued in tests
const TestJWTSecret = "test-secret"

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// TestConfig returns a configuration suitable for an in-memory test run
// and installs it as the shared config
func TestConfig() *config.Config {
	cfg := &config.Config{
		GoEnv:              "test",
		Port:               "8080",
		DatabaseDriver:     "sqlite",
		DatabaseURL:        ":memory:",
		JWTSecret:          TestJWTSecret,
		TokenTTL:           time.Hour,
		AdminSessionCookie: "admin_session",
		LoginRateLimit:     100,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		StorageDriver:      "local",
		UploadDir:          os.TempDir(),
		PublicBaseURL:      "/api/v1/files",
		DashboardCacheTTL:  time.Minute,
		VABank:             "BCA",
		SurveyFee:          decimal.NewFromInt(500000),
	}
	config.SetConfig(cfg)
	return cfg
}

// SetupTestDB opens a migrated in-memory SQLite database and installs it as the shared DB
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.RunMigrations(db))
	config.SetDB(db)
	return db
}

// MultipartBody builds a multipart form with optional fields and one file part.
// It returns the body and its Content-Type header.
func MultipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (io.Reader, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

// PNG is a small payload used as image content in upload tests
var PNG = []byte("\x89PNG\r\n\x1a\ntest-image")
