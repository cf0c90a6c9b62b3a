package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/memorygame/server/internal/game"
)

var (
	ErrThemeNotFound = errors.New("theme not found")
	ErrInvalidTheme  = errors.New("invalid theme")
)

// Theme is a named list of card definitions.
type Theme struct {
	Name  string                `json:"name" yaml:"name"`
	Cards []game.CardDefinition `json:"cards" yaml:"cards"`
}

// Validate checks the theme can back a game: a name, at least one card, unique faces.
func (t Theme) Validate() error {
	if t.Name == "" || len(t.Name) > 64 {
		return fmt.Errorf("%w: name must be 1–64 chars", ErrInvalidTheme)
	}
	for _, r := range t.Name {
		if !(r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: name: lowercase letters, numbers, '-' and '_' only", ErrInvalidTheme)
		}
	}
	if len(t.Cards) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTheme, game.ErrNoCards)
	}
	seen := make(map[string]struct{}, len(t.Cards))
	for _, c := range t.Cards {
		if c.Content == "" {
			return fmt.Errorf("%w: empty card content", ErrInvalidTheme)
		}
		if _, ok := seen[c.Content]; ok {
			return fmt.Errorf("%w: %w: %q", ErrInvalidTheme, game.ErrDuplicateContent, c.Content)
		}
		seen[c.Content] = struct{}{}
	}
	return nil
}

// Store reads and writes themes in SQLite.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Names lists theme names alphabetically.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM themes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Theme loads one theme with its cards in stored order.
func (s *Store) Theme(ctx context.Context, name string) (Theme, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM themes WHERE name=?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Theme{}, ErrThemeNotFound
	}
	if err != nil {
		return Theme{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM theme_cards WHERE theme=? ORDER BY position`, name)
	if err != nil {
		return Theme{}, err
	}
	defer rows.Close()
	t := Theme{Name: name}
	for rows.Next() {
		var c game.CardDefinition
		if err := rows.Scan(&c.Content); err != nil {
			return Theme{}, err
		}
		t.Cards = append(t.Cards, c)
	}
	return t, rows.Err()
}

// PutTheme creates or replaces a theme.
func (s *Store) PutTheme(ctx context.Context, t Theme) error {
	if err := t.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO themes (name, created_at, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET updated_at=excluded.updated_at`,
		t.Name, now, now); err != nil {
		return fmt.Errorf("upsert theme: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM theme_cards WHERE theme=?`, t.Name); err != nil {
		return fmt.Errorf("clear cards: %w", err)
	}
	for i, c := range t.Cards {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO theme_cards (theme, position, content) VALUES (?, ?, ?)`,
			t.Name, i, c.Content); err != nil {
			return fmt.Errorf("insert card %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Seed stores every theme whose name is not in the catalog yet.
// It returns how many themes were added.
func (s *Store) Seed(ctx context.Context, themes []Theme) (int, error) {
	added := 0
	for _, t := range themes {
		_, err := s.Theme(ctx, t.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrThemeNotFound) {
			return added, err
		}
		if err := s.PutTheme(ctx, t); err != nil {
			return added, fmt.Errorf("seed %s: %w", t.Name, err)
		}
		added++
	}
	return added, nil
}
