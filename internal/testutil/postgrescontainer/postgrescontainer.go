// Package postgrescontainer provides a throwaway PostgreSQL for repository
// tests. Set GALLERY_TEST_POSTGRES_DSN to use an existing server instead of
// starting a docker container.
package postgrescontainer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	envDSN = "GALLERY_TEST_POSTGRES_DSN"

	image     = "postgres:16-alpine"
	container = "gallery-postgres-test"
	hostPort  = "55432"
	user      = "gallery"
	password  = "secret"
	database  = "gallery_test"

	readyTimeout = 30 * time.Second
)

var (
	mu      sync.Mutex
	started bool
	ready   error
	once    sync.Once
)

// DSN returns the connection string tests should use.
func DSN() string {
	if dsn := os.Getenv(envDSN); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@127.0.0.1:%s/%s?sslmode=disable", user, password, hostPort, database)
}

// Setup makes a database reachable at DSN, starting a container when no
// external server is configured. The result is cached for the process.
func Setup() error {
	once.Do(func() {
		if os.Getenv(envDSN) == "" {
			if ready = startContainer(); ready != nil {
				return
			}
		}
		ready = waitReady(DSN(), readyTimeout)
	})
	return ready
}

// Teardown stops the container started by Setup, if any.
func Teardown() error {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return nil
	}
	started = false
	return docker("stop", container)
}

func startContainer() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker executable not found: %w", err)
	}
	// A container left over from an interrupted run would hold the port.
	_ = docker("rm", "-f", container)

	err := docker("run", "-d", "--rm",
		"--name", container,
		"-p", hostPort+":5432",
		"-e", "POSTGRES_USER="+user,
		"-e", "POSTGRES_PASSWORD="+password,
		"-e", "POSTGRES_DB="+database,
		image,
	)
	if err != nil {
		return err
	}
	mu.Lock()
	started = true
	mu.Unlock()
	return nil
}

func docker(args ...string) error {
	out, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "No such container") {
			return nil
		}
		return fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func waitReady(dsn string, timeout time.Duration) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	var lastErr error
	for {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres at %s not ready after %s: %w", dsn, timeout, lastErr)
		case <-tick.C:
		}
	}
}
