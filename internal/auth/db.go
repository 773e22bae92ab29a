package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// DBProvider authenticates against the local accounts table, for servers
// running without an external auth API (offline mode).
type DBProvider struct {
	pool *pgxpool.Pool
}

// NewDBProvider creates a provider over an existing pool.
func NewDBProvider(pool *pgxpool.Pool) *DBProvider {
	return &DBProvider{pool: pool}
}

// Authenticate verifies or creates the account. Database failures map to
// ResultUnreachable so the session closes the same way as with a dead
// external provider.
func (p *DBProvider) Authenticate(ctx context.Context, creds Credentials) (Result, error) {
	if creds.Register {
		return p.register(ctx, creds)
	}
	return p.login(ctx, creds)
}

func (p *DBProvider) login(ctx context.Context, creds Credentials) (Result, error) {
	username := strings.ToLower(creds.Username)

	var hash string
	err := p.pool.QueryRow(ctx,
		`SELECT password FROM accounts WHERE username = $1`, username,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ResultInvalidCredentials, nil
	}
	if err != nil {
		return ResultUnreachable, fmt.Errorf("querying account %q: %w", username, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)) != nil {
		return ResultInvalidCredentials, nil
	}
	return ResultOK, nil
}

func (p *DBProvider) register(ctx context.Context, creds Credentials) (Result, error) {
	username := strings.ToLower(creds.Username)

	var taken bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username,
	).Scan(&taken)
	if err != nil {
		return ResultUnreachable, fmt.Errorf("checking username %q: %w", username, err)
	}
	if taken {
		return ResultUsernameTaken, nil
	}

	if creds.Email != "" {
		err := p.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, creds.Email,
		).Scan(&taken)
		if err != nil {
			return ResultUnreachable, fmt.Errorf("checking email: %w", err)
		}
		if taken {
			return ResultEmailTaken, nil
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return ResultUnreachable, fmt.Errorf("hashing password: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO accounts (username, password, email) VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO NOTHING`,
		username, string(hash), creds.Email,
	)
	if err != nil {
		return ResultUnreachable, fmt.Errorf("creating account %q: %w", username, err)
	}
	return ResultOK, nil
}
