package deployment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botdeckhq/botdeck/internal/db"
)

// ErrDeploymentNotFound indicates no deployment exists for the requested
// bot/platform/account combination.
var ErrDeploymentNotFound = errors.New("deployment not found")

// Store persists deployment configurations.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a deployment Store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "deployments")),
	}
}

const deploymentColumns = `
	d.id::text, d.bot_id::text, b.owner_id::text,
	coalesce(b.organization_id::text, ''),
	d.platform, d.platform_account_id,
	d.channels, d.global_settings, d.opted_out_conversations,
	d.created_at, d.updated_at
`

// GetByPlatformAccount resolves the deployment serving one external platform
// account (e.g. a Slack team or a GoHighLevel location). Webhook handlers
// only know the account, not the bot.
func (s *Store) GetByPlatformAccount(ctx context.Context, platform PlatformType, accountID string) (Deployment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deploymentColumns+`
		FROM deployments d
		JOIN bots b ON b.id = d.bot_id
		WHERE d.platform = $1 AND d.platform_account_id = $2
		ORDER BY d.updated_at DESC
		LIMIT 1`,
		platform.String(), accountID)
	return scanDeployment(row)
}

// GetByBot returns the deployment for one bot+platform+account tuple.
func (s *Store) GetByBot(ctx context.Context, botID string, platform PlatformType, accountID string) (Deployment, error) {
	botUUID, err := db.ParseUUID(botID)
	if err != nil {
		return Deployment{}, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+deploymentColumns+`
		FROM deployments d
		JOIN bots b ON b.id = d.bot_id
		WHERE d.bot_id = $1 AND d.platform = $2 AND d.platform_account_id = $3`,
		botUUID, platform.String(), accountID)
	return scanDeployment(row)
}

// ListByBot returns all deployments configured for a bot.
func (s *Store) ListByBot(ctx context.Context, botID string) ([]Deployment, error) {
	botUUID, err := db.ParseUUID(botID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+deploymentColumns+`
		FROM deployments d
		JOIN bots b ON b.id = d.bot_id
		WHERE d.bot_id = $1
		ORDER BY d.platform, d.platform_account_id`,
		botUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeployments(rows)
}

// ListByPlatform returns every deployment for one platform. Used to start
// long-lived receivers (Discord sessions, Slack socket connections).
func (s *Store) ListByPlatform(ctx context.Context, platform PlatformType) ([]Deployment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deploymentColumns+`
		FROM deployments d
		JOIN bots b ON b.id = d.bot_id
		WHERE d.platform = $1
		ORDER BY d.platform_account_id`,
		platform.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeployments(rows)
}

// Upsert creates or updates the deployment for a bot+platform+account tuple.
func (s *Store) Upsert(ctx context.Context, req UpsertRequest) (Deployment, error) {
	botUUID, err := db.ParseUUID(req.BotID)
	if err != nil {
		return Deployment{}, err
	}
	channels, err := json.Marshal(nonNilChannels(req.Channels))
	if err != nil {
		return Deployment{}, fmt.Errorf("marshal channels: %w", err)
	}
	settings, err := json.Marshal(nonNilMap(req.GlobalSettings))
	if err != nil {
		return Deployment{}, fmt.Errorf("marshal global settings: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO deployments (bot_id, platform, platform_account_id, channels, global_settings)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bot_id, platform, platform_account_id) DO UPDATE SET
			channels = EXCLUDED.channels,
			global_settings = EXCLUDED.global_settings,
			updated_at = now()
		RETURNING id::text`,
		botUUID, req.Platform.String(), req.PlatformAccountID, channels, settings)
	var id string
	if err := row.Scan(&id); err != nil {
		return Deployment{}, err
	}
	return s.GetByBot(ctx, req.BotID, req.Platform, req.PlatformAccountID)
}

// AddOptOut puts a conversation on the deployment's opt-out list.
func (s *Store) AddOptOut(ctx context.Context, deploymentID, conversationID string) error {
	id, err := db.ParseUUID(deploymentID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE deployments SET
			opted_out_conversations = (
				SELECT coalesce(jsonb_agg(DISTINCT v), '[]'::jsonb)
				FROM jsonb_array_elements_text(opted_out_conversations || to_jsonb(ARRAY[$2::text])) AS t(v)
			),
			updated_at = now()
		WHERE id = $1`,
		id, conversationID)
	return err
}

// RemoveOptOut takes a conversation off the deployment's opt-out list.
func (s *Store) RemoveOptOut(ctx context.Context, deploymentID, conversationID string) error {
	id, err := db.ParseUUID(deploymentID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE deployments SET
			opted_out_conversations = coalesce((
				SELECT jsonb_agg(v)
				FROM jsonb_array_elements_text(opted_out_conversations) AS t(v)
				WHERE v <> $2
			), '[]'::jsonb),
			updated_at = now()
		WHERE id = $1`,
		id, conversationID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (Deployment, error) {
	var (
		d              Deployment
		platform       string
		channelsRaw    []byte
		settingsRaw    []byte
		optedOutRaw    []byte
		created, updated time.Time
	)
	err := row.Scan(
		&d.ID, &d.BotID, &d.OwnerID, &d.OrganizationID,
		&platform, &d.PlatformAccountID,
		&channelsRaw, &settingsRaw, &optedOutRaw,
		&created, &updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deployment{}, ErrDeploymentNotFound
		}
		return Deployment{}, err
	}
	d.Platform = PlatformType(platform)
	d.CreatedAt = created
	d.UpdatedAt = updated
	if len(channelsRaw) > 0 {
		if err := json.Unmarshal(channelsRaw, &d.Channels); err != nil {
			return Deployment{}, fmt.Errorf("decode channels: %w", err)
		}
	}
	if len(settingsRaw) > 0 {
		if err := json.Unmarshal(settingsRaw, &d.GlobalSettings); err != nil {
			return Deployment{}, fmt.Errorf("decode global settings: %w", err)
		}
	}
	if len(optedOutRaw) > 0 {
		if err := json.Unmarshal(optedOutRaw, &d.OptedOutConversations); err != nil {
			return Deployment{}, fmt.Errorf("decode opt-out list: %w", err)
		}
	}
	return d, nil
}

func scanDeployments(rows pgx.Rows) ([]Deployment, error) {
	items := make([]Deployment, 0)
	for rows.Next() {
		item, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nonNilChannels(channels []Channel) []Channel {
	if channels == nil {
		return []Channel{}
	}
	return channels
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
