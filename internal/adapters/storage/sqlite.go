// Package storage provides sqlite-backed implementations of the
// collaborator interfaces, so the coordinator can run standalone
// against the same database the CRUD service writes. The coordinator
// only ever reads channel and membership records and flips the online
// flag; it owns none of these tables.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/voxhall/voxhall/internal/collab"
	"github.com/voxhall/voxhall/internal/domain"
)

type Store struct {
	db *sql.DB
}

// Open opens the shared database and ensures the tables the
// coordinator reads exist (fresh dev databases start empty).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			avatar_url TEXT,
			online INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY,
			server_id INTEGER,
			type TEXT NOT NULL DEFAULT 'text'
		);`,
		`CREATE TABLE IF NOT EXISTS server_members (
			server_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (server_id, user_id)
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// GetChannel implements collab.MembershipStore.
func (s *Store) GetChannel(ctx context.Context, id domain.ChannelID) (domain.Channel, error) {
	var (
		serverID sql.NullInt64
		chType   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT server_id, type FROM channels WHERE id = ?`, int64(id),
	).Scan(&serverID, &chType)
	if err == sql.ErrNoRows {
		return domain.Channel{}, collab.ErrNotFound
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel %d: %w", id, err)
	}
	ch := domain.Channel{ID: id, Type: domain.ChannelType(chType)}
	if serverID.Valid {
		ch.ServerID = domain.ServerID(serverID.Int64)
	}
	return ch, nil
}

// IsMember implements collab.MembershipStore.
func (s *Store) IsMember(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM server_members WHERE server_id = ? AND user_id = ?`,
		int64(serverID), int64(userID),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return n > 0, nil
}

// SetOnline implements collab.PresenceStore.
func (s *Store) SetOnline(ctx context.Context, userID domain.UserID, online bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET online = ? WHERE id = ?`, online, int64(userID))
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// GetUser implements auth.UserDirectory.
func (s *Store) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	var (
		username  string
		avatarURL sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, avatar_url FROM users WHERE id = ?`, int64(id),
	).Scan(&username, &avatarURL)
	if err == sql.ErrNoRows {
		return domain.User{}, collab.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	user, err := domain.NewUser(id, username, avatarURL.String)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}
