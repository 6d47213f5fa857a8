package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botdeckhq/botdeck/internal/db"
	"github.com/botdeckhq/botdeck/internal/deployment"
)

// ErrCredentialNotFound is returned when no credential matches the lookup.
var ErrCredentialNotFound = errors.New("credential not found")

// Store is the pgx-backed credential store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ TokenLookup = (*Store)(nil)
	_ Saver       = (*Store)(nil)
)

// NewStore creates a credential Store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "credentials")),
	}
}

const credentialColumns = `id::text, owner_id::text, provider, platform_account_id,
	access_token, refresh_token, scope,
	COALESCE(expires_at, 'epoch'::timestamptz), created_at, updated_at`

// GetByOwner returns the owner's credential for a provider.
func (s *Store) GetByOwner(ctx context.Context, ownerID string, provider deployment.PlatformType) (Credential, error) {
	owner, err := db.ParseUUID(ownerID)
	if err != nil {
		return Credential{}, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM platform_credentials
		WHERE owner_id = $1 AND provider = $2
		ORDER BY updated_at DESC
		LIMIT 1`,
		owner, provider.String())
	return scanCredential(row)
}

// GetByAccessToken resolves a credential from its current access token.
func (s *Store) GetByAccessToken(ctx context.Context, accessToken string) (Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM platform_credentials
		WHERE access_token = $1
		LIMIT 1`,
		accessToken)
	return scanCredential(row)
}

// GetByPlatformAccount returns the credential bound to a platform account,
// e.g. a GoHighLevel location or a Slack workspace.
func (s *Store) GetByPlatformAccount(ctx context.Context, provider deployment.PlatformType, platformAccountID string) (Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM platform_credentials
		WHERE provider = $1 AND platform_account_id = $2
		LIMIT 1`,
		provider.String(), platformAccountID)
	return scanCredential(row)
}

// SaveRefreshed upserts the credential on (owner, provider, platform
// account). Last writer wins: a concurrent refresh that lands after this
// one simply overwrites it, and both tokens were valid at the provider.
func (s *Store) SaveRefreshed(ctx context.Context, cred Credential) (Credential, error) {
	owner, err := db.ParseUUID(cred.OwnerID)
	if err != nil {
		return Credential{}, err
	}
	var expiresAt any
	if !cred.ExpiresAt.IsZero() {
		expiresAt = cred.ExpiresAt
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO platform_credentials (owner_id, provider, platform_account_id, access_token, refresh_token, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, provider, platform_account_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			scope = EXCLUDED.scope,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING `+credentialColumns,
		owner, cred.Provider.String(), cred.PlatformAccountID,
		cred.AccessToken, db.ToPgText(cred.RefreshToken), db.ToPgText(cred.Scope), expiresAt)
	return scanCredential(row)
}

// ListExpiring returns refreshable credentials that expire within the
// window. The sweeper renews these ahead of time.
func (s *Store) ListExpiring(ctx context.Context, window time.Duration) ([]Credential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+credentialColumns+`
		FROM platform_credentials
		WHERE expires_at IS NOT NULL
		  AND expires_at < now() + $1::interval
		  AND refresh_token IS NOT NULL AND refresh_token <> ''`,
		fmt.Sprintf("%d seconds", int64(window.Seconds())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var creds []Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// Delete removes a credential by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	credID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM platform_credentials WHERE id = $1`, credID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (Credential, error) {
	var (
		cred         Credential
		provider     string
		refreshToken pgtype.Text
		scope        pgtype.Text
	)
	err := row.Scan(&cred.ID, &cred.OwnerID, &provider, &cred.PlatformAccountID,
		&cred.AccessToken, &refreshToken, &scope,
		&cred.ExpiresAt, &cred.CreatedAt, &cred.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrCredentialNotFound
	}
	if err != nil {
		return Credential{}, err
	}
	cred.Provider = deployment.PlatformType(provider)
	cred.RefreshToken = db.TextToString(refreshToken)
	cred.Scope = db.TextToString(scope)
	if cred.ExpiresAt.Unix() == 0 {
		cred.ExpiresAt = time.Time{}
	}
	return cred, nil
}
