package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/duetly/api/internal/auth"
	"github.com/duetly/api/internal/config"
	"github.com/duetly/api/internal/handler"
	"github.com/duetly/api/internal/middleware"
	"github.com/duetly/api/internal/service"
	ws "github.com/duetly/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	sessions *service.SessionService
	redis    *redis.Client
}

// testConfig builds a config with capture enabled and a fast tick so takes
// complete quickly.
func testConfig() *config.Config {
	return &config.Config{
		Capture: config.CaptureConfig{
			Enabled:   true,
			Width:     1280,
			Height:    720,
			FrameRate: 30,
		},
		Session: config.SessionConfig{
			TickIntervalMs: 20,
		},
		RateLimit: config.RateLimitConfig{
			SessionsPerHour:  10000,
			PublishesPerHour: 10000,
		},
	}
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients, so storage stays in memory and publishes succeed locally.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	cfg := testConfig()

	// Redis (localhost, DB 15 to avoid collision). Flows that never touch
	// redis still work when it is down.
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	// storage nil → in-memory previews, publisher unconfigured → local success
	sessionService := service.NewSessionService(cfg, redisClient, hub, nil)
	publishService := service.NewPublishService(redisClient, asynqClient, sessionService)

	sessionHandler := handler.NewSessionHandler(sessionService, validate)
	mixHandler := handler.NewMixHandler(sessionService, validate)
	layoutHandler := handler.NewLayoutHandler()
	previewHandler := handler.NewPreviewHandler(sessionService, validate)
	publishHandler := handler.NewPublishHandler(publishService)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"storage": false,
				"publish": false,
				"capture": cfg.Capture.Enabled,
				"auth":    true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())

	api.Get("/layouts", layoutHandler.List)
	api.Get("/layouts/:style", layoutHandler.Get)

	sessions := api.Group("/sessions")
	sessions.Post("/", rateLimiter.SessionLimit(cfg.RateLimit.SessionsPerHour), sessionHandler.Open)
	sessions.Get("/:sessionId", sessionHandler.Get)
	sessions.Delete("/:sessionId", sessionHandler.Close)
	sessions.Post("/:sessionId/start", sessionHandler.Start)
	sessions.Post("/:sessionId/pause", sessionHandler.Pause)
	sessions.Post("/:sessionId/resume", sessionHandler.Resume)
	sessions.Post("/:sessionId/stop", sessionHandler.Stop)
	sessions.Post("/:sessionId/retake", sessionHandler.Retake)
	sessions.Post("/:sessionId/device-lost", sessionHandler.DeviceLost)
	sessions.Get("/:sessionId/mix", mixHandler.Get)
	sessions.Patch("/:sessionId/mix", mixHandler.Update)
	sessions.Get("/:sessionId/preview", previewHandler.Get)
	sessions.Post("/:sessionId/preview/back", previewHandler.BackToEdit)
	sessions.Patch("/:sessionId/metadata", previewHandler.UpdateMetadata)
	sessions.Post("/:sessionId/publish", rateLimiter.PublishLimit(cfg.RateLimit.PublishesPerHour), publishHandler.Start)
	api.Get("/publish/:jobId", publishHandler.Status)

	return &testApp{app: app, sessions: sessionService, redis: redisClient}
}

// requireRedis skips the test when redis is not reachable.
func requireRedis(t *testing.T, ta *testApp) {
	t.Helper()
	if err := ta.redis.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: userID,
		Handle: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "duetly-api",
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

// doAuthRequest performs an authenticated request as the given user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body, userID string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, userID)
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

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// openSessionBody builds a valid open-session request. durationMs bounds the
// take; small values auto-stop quickly under the 20ms test tick.
func openSessionBody(durationMs int) string {
	return fmt.Sprintf(`{
		"original": {
			"id": "orig-1",
			"sourceUrl": "https://videos.example.com/orig-1.mp4",
			"durationMs": %d,
			"creatorId": "creator-1",
			"creatorHandle": "dancequeen"
		},
		"style": "side_by_side",
		"capture": {"permission": "granted", "hasCamera": true, "hasMic": true}
	}`, durationMs)
}

// openSession opens a recorder and returns the session ID.
func openSession(t *testing.T, ta *testApp, userID string, durationMs int) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/sessions/", openSessionBody(durationMs), userID)
	if err != nil {
		t.Fatalf("open session request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	result := parseJSON(t, resp)
	sessionID, _ := result["id"].(string)
	if sessionID == "" {
		t.Fatalf("open session returned no id: %v", result)
	}
	t.Cleanup(func() {
		resp, err := doAuthRequest(t, ta.app, "DELETE", "/api/sessions/"+sessionID, "", userID)
		if err == nil {
			resp.Body.Close()
		}
	})
	return sessionID
}

// waitForState polls the session endpoint until it reports the wanted state.
func waitForState(t *testing.T, ta *testApp, userID, sessionID, state string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, ta.app, "GET", "/api/sessions/"+sessionID, "", userID)
		if err != nil {
			t.Fatalf("get session failed: %v", err)
		}
		result := parseJSON(t, resp)
		if result["state"] == state {
			return result
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session %s never reached state %s", sessionID, state)
	return nil
}
