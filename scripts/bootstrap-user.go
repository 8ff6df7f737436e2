// Bootstrap-user creates the first operator account.
//
//	KEGSTOCK_BOOTSTRAP_PASSWORD=... go run ./scripts/bootstrap-user.go -username admin
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kegstock/kegstock/internal/logging"
	"github.com/kegstock/kegstock/internal/model"
	"github.com/kegstock/kegstock/internal/repository"
)

const passwordEnv = "KEGSTOCK_BOOTSTRAP_PASSWORD"

const minPasswordLength = 12

type output struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Created  bool   `json:"created"`
}

func main() {
	var (
		databaseURL   = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		username      = flag.String("username", "admin", "Operator username")
		passwordStdin = flag.Bool("password-stdin", false, "Read the password from the first line of stdin instead of "+passwordEnv)
		format        = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	password, err := readPassword(*passwordStdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", logging.SanitizeError(err, *databaseURL))
		os.Exit(1)
	}
	defer repo.Close()

	user, created, err := ensureUser(ctx, repo, *username, password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{UserID: user.ID, Username: user.Username, Created: created}

	switch strings.ToLower(*format) {
	case "plain":
		if created {
			fmt.Printf("created user %s (id %d)\n", out.Username, out.UserID)
		} else {
			fmt.Printf("user %s (id %d) already exists\n", out.Username, out.UserID)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func readPassword(fromStdin bool) (string, error) {
	password := os.Getenv(passwordEnv)
	if fromStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", fmt.Errorf("password is required: set %s or use -password-stdin", passwordEnv)
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return password, nil
}

// ensureUser is idempotent. An existing user must already have the given
// password so a rerun cannot silently leave a different credential in place.
// Authenticating also upgrades a hash written with older parameters.
func ensureUser(ctx context.Context, repo *repository.Repository, username, password string) (*model.User, bool, error) {
	_, err := repo.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		existing, err := repo.AuthenticateUser(ctx, username, password)
		if errors.Is(err, repository.ErrInvalidCredentials) {
			return nil, false, fmt.Errorf("user %s exists with a different password", username)
		}
		if err != nil {
			return nil, false, fmt.Errorf("verify password: %w", err)
		}
		return existing, false, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, false, fmt.Errorf("look up user: %w", err)
	}

	user, err := repo.CreateUser(ctx, username, password)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}
