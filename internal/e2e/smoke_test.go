package e2e

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewayHost = "ipfs.localhost"

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	env := startDevServer(t, binaryPath, home)

	_, stderr, err := runSP(t, binaryPath, env, "dev", "register", "ada@example.com")
	require.NoError(t, err, "stderr: %s", stderr)
	_, stderr, err = runSP(t, binaryPath, env, "dev", "create-space", "ada@example.com", "profile")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runSP(t, binaryPath, env, "login", "--quiet", "ada@example.com")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Plan: Starter")

	_, stderr, err = runSP(t, binaryPath, env, "profile", "save", "--name", "Ada Lovelace", "--bio", "Analytical engines.")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runSP(t, binaryPath, env, "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "* ada@example.com")
	assert.Contains(t, stdout, "space: profile")
	assert.Contains(t, stdout, "profile: Ada Lovelace")
	assert.Contains(t, stdout, "uploads: 1")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "sp-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/sp")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build sp binary: %s", string(output))
	return binaryPath
}

// startDevServer runs `sp dev serve` on a free port and returns the
// environment that points other sp invocations at it.
func startDevServer(t *testing.T, binaryPath, home string) []string {
	t.Helper()

	cmd := exec.Command(binaryPath, "dev", "serve", "--listen", "127.0.0.1:0", "--gateway-host", gatewayHost)
	cmd.Env = append(os.Environ(), "HOME="+home)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	addrCh := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if rest, ok := strings.CutPrefix(scanner.Text(), "Serving on http://"); ok {
				addrCh <- strings.TrimSuffix(rest, "/rpc/v0")
			}
		}
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(10 * time.Second):
		t.Fatal("dev server did not start")
	}

	return append(os.Environ(),
		"HOME="+home,
		"SP_NETWORK_ENDPOINT=http://"+addr+"/rpc/v0",
		"SP_GATEWAY_SCHEME=http",
		"SP_GATEWAY_HOST="+gatewayHost,
		"SP_GATEWAY_DIAL="+addr,
		"SP_SECRETS_BACKEND=file",
	)
}

func runSP(t *testing.T, binaryPath string, env []string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = env

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
