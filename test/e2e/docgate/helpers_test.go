package docgate_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/docsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and shared assertions for the docgate end-to-end tests.
 * Every test gets its own container so lockouts never leak between tests.
 */

const (
	testImageName = "docgate-test:latest"

	adminKey = "e2e-admin-key-0123456789abcdef"

	// Failed downloads allowed per client IP before the lockout engages.
	downloadMaxAttempts = 5
)

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building docgate Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up docgate Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/docgate/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// setupDocgateContainer starts docgate in a container and returns an admin
// client and a keyless client pointed at it.
func setupDocgateContainer(t *testing.T) (admin, public *docsdk.Client, cleanup func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env: map[string]string{
			"ENV":                                 "test",
			"LOG_LEVEL":                           "info",
			"LOG_FORMAT":                          "json",
			"DOCGATE_DATABASE_FILE":               "/data/docgate.db",
			"DOCGATE_PUBLIC_BASE_URL":             "https://docs.example.com",
			"DOCGATE_MASTER_KEY":                  "e2e-master-key-0123456789abcdefghij",
			"DOCGATE_TOKEN_SECRET":                "e2e-token-secret-0123456789abcdefgh",
			"DOCGATE_PASSWORD_PEPPER":             "e2e-pepper-01234567",
			"DOCGATE_ADMIN_API_KEY":               adminKey,
			"DOCGATE_RATELIMIT_STORE":             "memory",
			"DOCGATE_BLOB_DRIVER":                 "memory",
			"DOCGATE_ALLOWED_CONTENT_TYPES":       "application/pdf,text/plain",
			"DOCGATE_RATELIMIT_MAX_ATTEMPTS":      fmt.Sprint(downloadMaxAttempts),
			"DOCGATE_RATELIMIT_PROGRESSIVE_DELAY": "none",
			// Request throttles are relaxed so bursts of test calls are not
			// mistaken for abuse
			"RATELIMIT_ADMIN_REQUESTS":    "1000",
			"RATELIMIT_ADMIN_BURST":       "1000",
			"RATELIMIT_DOWNLOAD_REQUESTS": "1000",
			"RATELIMIT_DOWNLOAD_BURST":    "1000",
			"RATELIMIT_HEALTH_REQUESTS":   "1000",
			"RATELIMIT_HEALTH_BURST":      "1000",
		},
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup = func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return docsdk.NewClient(baseURL, docsdk.WithAdminKey(adminKey)), docsdk.NewClient(baseURL), cleanup
}

// uploadPDF stores a small PDF as id and returns its content.
func uploadPDF(t *testing.T, client *docsdk.Client, id string) []byte {
	t.Helper()

	content := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("docgate "), 512)...)
	doc, err := client.Upload(t.Context(), id, id+".pdf", "application/pdf", bytes.NewReader(content))
	require.NoError(t, err, "upload should succeed")
	require.Equal(t, id, doc.ID)
	require.Equal(t, docsdk.StatusUploaded, doc.Status)
	require.Equal(t, int64(len(content)), doc.Size)

	return content
}

// assertAPIError checks that err is an *docsdk.APIError with the given status.
func assertAPIError(t *testing.T, err error, status int, context string) *docsdk.APIError {
	t.Helper()
	require.Error(t, err, context)

	var apiErr *docsdk.APIError
	require.True(t, errors.As(err, &apiErr), "%s - expected an API error, got: %v", context, err)
	require.Equal(t, status, apiErr.StatusCode, "%s - unexpected status: %v", context, err)
	return apiErr
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *docsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
