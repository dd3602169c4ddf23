package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"

	"github.com/clearwave/api/internal/client"
	"github.com/clearwave/api/internal/config"
	"github.com/clearwave/api/internal/handler"
	"github.com/clearwave/api/internal/logger"
	"github.com/clearwave/api/internal/middleware"
	"github.com/clearwave/api/internal/service"
	"github.com/clearwave/api/internal/storage/sqlite"
)

const testJWTSecret = "test-secret-for-e2e"

const testUserID int64 = 42

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *sqlite.Store
}

// stubEnqueuer accepts every task without a broker. Tests that need enqueue
// failures are covered at the service level; here the queue always succeeds.
type stubEnqueuer struct{}

func (stubEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

// setupApp wires a Fiber app like main.go does, backed by a throwaway
// database and an object store client nothing in these tests reaches.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	log := logger.New("test", "error")

	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	storageClient, err := client.NewS3Client(&config.StorageConfig{
		Endpoint:        "http://localhost:1", // never reached by these tests
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Bucket:          "test",
		Region:          "auto",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to build storage client: %v", err)
	}

	validate := validator.New()

	fileService := service.NewFileService(store, storageClient, log)
	processingService := service.NewProcessingService(store, stubEnqueuer{}, log)

	fileHandler := handler.NewFileHandler(fileService, validate)
	processHandler := handler.NewProcessHandler(processingService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Key-addressed route for the external transcription service; no token.
	app.Get("/api/files/content/:userId/:filename", fileHandler.DownloadByKey)

	api := app.Group("/api", authMiddleware.Authenticate())

	api.Get("/presets", processHandler.Presets)

	files := api.Group("/files")
	files.Get("/", fileHandler.List)
	files.Get("/:id", fileHandler.Get)
	files.Delete("/:id", fileHandler.Delete)
	files.Post("/:id/noise-removal", processHandler.RemoveNoise)
	files.Post("/:id/vocal-removal", processHandler.RemoveVocals)
	files.Post("/:id/melody-removal", processHandler.RemoveMelody)
	files.Post("/:id/enhancement", processHandler.Enhance)

	return &testApp{app: app, store: store}
}

// generateToken creates an HMAC JWT for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := middleware.UserClaims{
		UserID: testUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}
