package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/arena-auth/internal/api"
	"github.com/mcoot/arena-auth/internal/backend/memory"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/dependencies/random"
)

const anonKey = "e2e-anon-key"

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	stateDir   string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "arena-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/arena")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		stateDir:   t.TempDir(),
	}
}

// run executes the CLI with JSON output. Data goes to stdout; notifications,
// redirects and errors go to stderr.
func (r *cliRunner) run(args ...string) (string, string, error) {
	fullArgs := append([]string{
		"--backend-url", r.serverURL,
		"--anon-key", anonKey,
		"--state", "file",
		"--state-dir", r.stateDir,
		"--env-file", "",
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Env = append(os.Environ(), "ARENA_LOG_LEVEL=error", "ARENA_SIGNUP_RETRY_DELAY=50ms")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real development backend for e2e tests
type testServer struct {
	dir      *memory.Directory
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T, opts memory.Options) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.New()
	dir := memory.NewDirectory(opts, clk, random.New(), logger)

	cfg := api.DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	server := api.NewServer(api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Directory: dir,
		AnonKey:   anonKey,
		Clock:     clk,
	}), cfg, logger)
	require.NoError(t, server.Listen())

	// Start server
	go func() {
		if err := server.Serve(); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	waitForServer(t, server.URL()+"/health")

	return &testServer{
		dir:  dir,
		addr: server.URL(),
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type whoAmIResponse struct {
	SignedIn bool `json:"signed_in"`
	Identity *struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Role    string `json:"role"`
		Profile struct {
			Username string `json:"username"`
			FullName string `json:"full_name"`
			Rating   int    `json:"rating"`
		} `json:"profile"`
	} `json:"identity"`
	Route string `json:"route"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// lastJSONLine decodes the final line of stderr, where errors are printed
func lastJSONLine(t *testing.T, stderr string, v any) {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace([]byte(stderr)), []byte("\n"))
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], v), "stderr: %s", stderr)
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t, memory.DefaultOptions())
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	stdout, stderr, err := cli.run("health")
	require.NoError(t, err, "stderr: %s", stderr)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_AccountFlow(t *testing.T) {
	opts := memory.DefaultOptions()
	opts.ProfileLag = 1
	ts := startTestServer(t, opts)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Sign up waits out the profile lag and signs in
	stdout, stderr, err := cli.run("signup",
		"--email", "grace@example.com",
		"--username", "Grace_H",
		"--full-name", "Grace Hopper",
		"--password", "cobol4ever!")
	require.NoError(t, err, "stderr: %s", stderr)

	var who whoAmIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &who))
	require.True(t, who.SignedIn)
	assert.Equal(t, "grace_h", who.Identity.Profile.Username)
	assert.Equal(t, "Grace Hopper", who.Identity.Name)
	assert.Equal(t, "player", who.Identity.Role)
	assert.Equal(t, "/dashboard/player", who.Route)
	assert.Contains(t, stderr, "Account created")

	// The session is restored by the next process
	stdout, stderr, err = cli.run("whoami")
	require.NoError(t, err, "stderr: %s", stderr)
	who = whoAmIResponse{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &who))
	assert.True(t, who.SignedIn)
	assert.Equal(t, "grace@example.com", who.Identity.Email)

	// Log out
	stdout, stderr, err = cli.run("logout")
	require.NoError(t, err, "stderr: %s", stderr)
	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &msg))
	assert.Equal(t, "Signed out", msg.Message)
	assert.Equal(t, 0, ts.dir.SessionCount())

	stdout, _, err = cli.run("whoami")
	require.NoError(t, err)
	who = whoAmIResponse{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &who))
	assert.False(t, who.SignedIn)
	assert.Equal(t, "/", who.Route)

	// Sign back in
	stdout, stderr, err = cli.run("signin", "--email", "grace@example.com", "--password", "cobol4ever!")
	require.NoError(t, err, "stderr: %s", stderr)
	who = whoAmIResponse{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &who))
	assert.True(t, who.SignedIn)
}

func TestCLI_SignUpErrors(t *testing.T) {
	ts := startTestServer(t, memory.DefaultOptions())
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	_, stderr, err := cli.run("signup",
		"--email", "ada@example.com",
		"--username", "ada_l",
		"--full-name", "Ada Lovelace",
		"--password", "analytical1!")
	require.NoError(t, err, "stderr: %s", stderr)

	// Same email, different username
	_, stderr, err = cli.run("signup",
		"--email", "ada@example.com",
		"--username", "ada_two",
		"--full-name", "Ada Again",
		"--password", "analytical1!")
	require.Error(t, err)
	var resp errorResponse
	lastJSONLine(t, stderr, &resp)
	assert.Equal(t, "This email is already registered", resp.Error.Fields["email"])

	// Invalid form
	_, stderr, err = cli.run("signup",
		"--email", "someone@example.com",
		"--username", "x",
		"--full-name", "S",
		"--password", "short")
	require.Error(t, err)
	resp = errorResponse{}
	lastJSONLine(t, stderr, &resp)
	assert.Equal(t, "Username must be at least 3 characters", resp.Error.Fields["username"])
	assert.Equal(t, "Full name must be at least 2 characters", resp.Error.Fields["full_name"])
	assert.Equal(t, "Password must be at least 8 characters", resp.Error.Fields["password"])
	_, lookupErr := ts.dir.UserByEmail("someone@example.com")
	assert.Error(t, lookupErr)
}

func TestCLI_SignInRequiresConfirmation(t *testing.T) {
	opts := memory.DefaultOptions()
	opts.RequireEmailConfirmation = true
	ts := startTestServer(t, opts)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// The account is created but the follow-up sign-in is refused
	_, stderr, err := cli.run("signup",
		"--email", "linus@example.com",
		"--username", "linus",
		"--full-name", "Linus T",
		"--password", "penguins1!")
	require.Error(t, err)
	var resp errorResponse
	lastJSONLine(t, stderr, &resp)
	assert.Equal(t, "Please confirm your email before signing in.", resp.Error.Fields["root"])

	require.NoError(t, ts.dir.ConfirmEmail("linus@example.com"))

	stdout, stderr, err := cli.run("signin", "--email", "linus@example.com", "--password", "penguins1!")
	require.NoError(t, err, "stderr: %s", stderr)
	var who whoAmIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &who))
	assert.True(t, who.SignedIn)
}
