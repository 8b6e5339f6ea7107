//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/minchat/apiserver/config"
	"github.com/minchat/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	// Everything below reads config from the environment, so this
	// must happen before the first LoadConfig call.
	setTestEnv()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestChatLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("alice_%d", time.Now().UnixNano())
	password := "secret1"

	// Register and keep the first token.
	status, body := postJSON(t, baseURL+"/register/", "", map[string]string{
		"username": username,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register status %d: %s", status, body)
	}
	firstToken := decodeToken(t, body)

	// Wrong password: generic error, nothing about which field failed.
	status, body = postJSON(t, baseURL+"/login/", "", map[string]string{
		"username": username,
		"password": "wrong-password",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("bad login status %d: %s", status, body)
	}
	if !strings.Contains(string(body), "invalid credentials") {
		t.Fatalf("bad login body: %s", body)
	}

	// Correct login rotates the token.
	status, body = postJSON(t, baseURL+"/login/", "", map[string]string{
		"username": username,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login status %d: %s", status, body)
	}
	secondToken := decodeToken(t, body)
	if secondToken == firstToken {
		t.Fatal("login did not rotate the token")
	}

	// The pre-login token must be dead.
	if status, _ := getJSON(t, baseURL+"/profile/", firstToken); status != http.StatusUnauthorized {
		t.Fatalf("old token status %d, want 401", status)
	}

	status, body = getJSON(t, baseURL+"/profile/", secondToken)
	if status != http.StatusOK {
		t.Fatalf("profile status %d: %s", status, body)
	}
	var profile struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Username != username {
		t.Fatalf("profile username %q, want %q", profile.Username, username)
	}

	// Post messages and read them back oldest-first.
	for _, text := range []string{"m1", "m2", "m3"} {
		status, body = postJSON(t, baseURL+"/messages/create/", secondToken, map[string]string{"text": text})
		if status != http.StatusCreated {
			t.Fatalf("create message status %d: %s", status, body)
		}
	}

	status, body = getJSON(t, baseURL+"/messages/?limit=100", secondToken)
	if status != http.StatusOK {
		t.Fatalf("list status %d: %s", status, body)
	}
	var list struct {
		Messages []struct {
			Username string `json:"username"`
			Text     string `json:"text"`
		} `json:"messages"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	mine := make([]string, 0, 3)
	for _, message := range list.Messages {
		if message.Username == username {
			mine = append(mine, message.Text)
		}
	}
	if len(mine) != 3 || mine[0] != "m1" || mine[1] != "m2" || mine[2] != "m3" {
		t.Fatalf("messages out of order: %v", mine)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("bob_%d", time.Now().UnixNano())

	status, body := postJSON(t, baseURL+"/register/", "", map[string]string{
		"username": username,
		"password": "secret1",
	})
	if status != http.StatusCreated {
		t.Fatalf("register status %d: %s", status, body)
	}

	status, body = postJSON(t, baseURL+"/register/", "", map[string]string{
		"username": username,
		"password": "secret2",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("duplicate register status %d: %s", status, body)
	}
	var resp struct {
		FieldErrors map[string][]string `json:"field_errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(resp.FieldErrors["username"]) == 0 {
		t.Fatalf("no username field error: %s", body)
	}
}

func decodeToken(t *testing.T, body []byte) string {
	t.Helper()

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("bad token envelope: %s", body)
	}
	return resp.AccessToken
}

func postJSON(t *testing.T, url, token string, payload any) (int, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return doRequest(t, req)
}

func getJSON(t *testing.T, url, token string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return doRequest(t, req)
}

func doRequest(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

// setTestEnv points config at the compose-managed postgres. The
// values must stay in sync with development/docker-compose.yml.
func setTestEnv() {
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "minchat")
	_ = os.Setenv("DB_PASSWORD", "minchat")
	_ = os.Setenv("DB_NAME", "minchat")
	_ = os.Setenv("DB_USE_SSL", "false")
}

func startServer() (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
