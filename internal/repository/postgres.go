package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/homie43/car-fit-chat-backend/internal/model"
)

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

const vehicleColumns = `
	id, marka, model, variant, description, year_from, year_to,
	power, kpp, body_type, trims, specs, created_at, updated_at
`

// buildWhere assembles filter conditions with positional placeholders.
// Year bounds are interval-overlap checks: a NULL bound on the row side
// means the production run is open on that side.
func buildWhere(filters model.ContextFilters) ([]string, []interface{}, int) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filters.Marka != nil {
		clauses = append(clauses, fmt.Sprintf("marka ILIKE $%d", argIndex))
		args = append(args, *filters.Marka)
		argIndex++
	}
	if filters.Model != nil {
		clauses = append(clauses, fmt.Sprintf("model ILIKE $%d", argIndex))
		args = append(args, "%"+*filters.Model+"%")
		argIndex++
	}
	if filters.KPP != nil {
		clauses = append(clauses, fmt.Sprintf("kpp = $%d", argIndex))
		args = append(args, *filters.KPP)
		argIndex++
	}
	if filters.BodyType != nil {
		clauses = append(clauses, fmt.Sprintf("body_type ILIKE $%d", argIndex))
		args = append(args, *filters.BodyType)
		argIndex++
	}
	if filters.YearFrom != nil {
		clauses = append(clauses, fmt.Sprintf("(year_to IS NULL OR year_to >= $%d)", argIndex))
		args = append(args, *filters.YearFrom)
		argIndex++
	}
	if filters.YearTo != nil {
		clauses = append(clauses, fmt.Sprintf("(year_from IS NULL OR year_from <= $%d)", argIndex))
		args = append(args, *filters.YearTo)
		argIndex++
	}

	return clauses, args, argIndex
}

// SearchForContext performs the keyword pass: structural filters plus free
// text matched against described rows only.
func (r *PostgresRepository) SearchForContext(ctx context.Context, filters model.ContextFilters, keywords []string, limit int) ([]model.ContextItem, error) {
	clauses, args, argIndex := buildWhere(filters)
	clauses = append(clauses, "description IS NOT NULL")

	if len(keywords) > 0 {
		kwClauses := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			kwClauses = append(kwClauses, fmt.Sprintf("description ILIKE $%d", argIndex))
			args = append(args, "%"+kw+"%")
			argIndex++
		}
		clauses = append(clauses, "("+strings.Join(kwClauses, " OR ")+")")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM vehicles
		WHERE %s
		ORDER BY marka, model
		LIMIT $%d
	`, vehicleColumns, strings.Join(clauses, " AND "), argIndex)
	args = append(args, limit)

	return r.selectContextItems(ctx, query, args...)
}

// SearchStructural queries by typed fields only.
func (r *PostgresRepository) SearchStructural(ctx context.Context, filters model.ContextFilters, limit int) ([]model.ContextItem, error) {
	clauses, args, argIndex := buildWhere(filters)

	query := fmt.Sprintf(`
		SELECT %s
		FROM vehicles
		WHERE %s
		ORDER BY marka, model
		LIMIT $%d
	`, vehicleColumns, strings.Join(clauses, " AND "), argIndex)
	args = append(args, limit)

	return r.selectContextItems(ctx, query, args...)
}

// SearchSemantic orders catalog rows by embedding distance to the query
// vector. Rows without an embedding are skipped.
func (r *PostgresRepository) SearchSemantic(ctx context.Context, embedding []float32, filters model.ContextFilters, limit int) ([]model.ContextItem, error) {
	clauses, args, argIndex := buildWhere(filters)
	clauses = append(clauses, "embedding IS NOT NULL")

	query := fmt.Sprintf(`
		SELECT %s
		FROM vehicles
		WHERE %s
		ORDER BY embedding <=> $%d
		LIMIT $%d
	`, vehicleColumns, strings.Join(clauses, " AND "), argIndex, argIndex+1)
	args = append(args, pgvector.NewVector(embedding), limit)

	return r.selectContextItems(ctx, query, args...)
}

func (r *PostgresRepository) selectContextItems(ctx context.Context, query string, args ...interface{}) ([]model.ContextItem, error) {
	var vehicles []model.Vehicle
	if err := r.db.SelectContext(ctx, &vehicles, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch vehicles: %w", err)
	}

	items := make([]model.ContextItem, 0, len(vehicles))
	for _, v := range vehicles {
		items = append(items, v.ContextItem())
	}
	return items, nil
}

// NormalizeBrand maps a user-provided brand name to the catalog spelling.
// Exact case-insensitive match first, then a prefix match; falls back to
// the input unchanged so the caller never loses the filter.
func (r *PostgresRepository) NormalizeBrand(ctx context.Context, name string) (string, error) {
	var canonical string
	err := r.db.GetContext(ctx, &canonical,
		`SELECT marka FROM vehicles WHERE LOWER(marka) = LOWER($1) LIMIT 1`, name)
	if err == nil {
		return canonical, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to normalize brand: %w", err)
	}

	err = r.db.GetContext(ctx, &canonical,
		`SELECT marka FROM vehicles WHERE marka ILIKE $1 LIMIT 1`, name+"%")
	if err == nil {
		return canonical, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to normalize brand: %w", err)
	}

	return name, nil
}

// UpdateEmbedding stores the embedding vector for a catalog row
func (r *PostgresRepository) UpdateEmbedding(ctx context.Context, vehicleID int64, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	query := `UPDATE vehicles SET embedding = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, vec, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	return nil
}

// ListVehiclesWithoutEmbedding returns catalog rows that still need a vector
func (r *PostgresRepository) ListVehiclesWithoutEmbedding(ctx context.Context, limit int) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	query := fmt.Sprintf(`
		SELECT %s
		FROM vehicles
		WHERE embedding IS NULL AND description IS NOT NULL
		ORDER BY id
		LIMIT $1
	`, vehicleColumns)
	if err := r.db.SelectContext(ctx, &vehicles, query, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch vehicles without embedding: %w", err)
	}
	return vehicles, nil
}

// LoadPreferences returns the stored preference set for the user.
// A user with no stored row gets an empty set, not an error.
func (r *PostgresRepository) LoadPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	var raw []byte
	err := r.db.GetContext(ctx, &raw,
		`SELECT preferences FROM user_preferences WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Preferences{}, nil
		}
		return model.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	var prefs model.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("failed to decode stored preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences upserts the full preference set for the user.
// Last writer wins on concurrent turns for the same user.
func (r *PostgresRepository) SavePreferences(ctx context.Context, userID string, prefs model.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		INSERT INTO user_preferences (user_id, preferences, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, raw); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// DeletePreferences removes the stored preference set for the user
func (r *PostgresRepository) DeletePreferences(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}

// SaveMessage appends one side of a conversation turn
func (r *PostgresRepository) SaveMessage(ctx context.Context, msg model.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (user_id, role, content, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, msg.UserID, msg.Role, msg.Content); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// History returns the most recent messages for the user in chronological order
func (r *PostgresRepository) History(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	query := `
		SELECT id, user_id, role, content, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &messages, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	// Query is newest-first for the LIMIT, callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
