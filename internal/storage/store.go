package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"dotchat/internal/reqid"
)

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotExist    = errors.New("user does not exist")
	ErrChannelExists   = errors.New("channel already exists")
	ErrChannelNotExist = errors.New("channel does not exist")
	ErrSessionNotExist = errors.New("session key does not exist")
	ErrAlreadyMember   = errors.New("user is already a channel member")
)

// Store wraps the sqlite database holding users, sessions, channels,
// memberships and messages. Calls are serialized by a single
// connection, so concurrent handlers never interleave statements.
type Store struct {
	logger *zap.SugaredLogger
	db     *sql.DB
}

// New opens (or creates) the database file from cfg and returns a
// Store. A freshly created file is seeded with the default user and
// channel.
func New(logger *zap.SugaredLogger, cfg Config) (*Store, error) {
	path := cfg.path()

	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{logger: logger, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infof("Database %s opened", path)

	if fresh {
		if err := s.seed(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Errorf("closing database: %v", err)
	}
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		pass TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_keys (
		key INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id),
		valid_until INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_keys_user ON session_keys (user_id);

	CREATE TABLE IF NOT EXISTS channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		owner_id INTEGER NOT NULL REFERENCES users (id),
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS channel_members (
		user_id INTEGER NOT NULL REFERENCES users (id),
		channel_id INTEGER NOT NULL REFERENCES channels (id),
		PRIMARY KEY (user_id, channel_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL REFERENCES users (id),
		channel_id INTEGER NOT NULL REFERENCES channels (id),
		content TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		replies_to INTEGER REFERENCES messages (id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages (channel_id, sent_at);`

	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// dbg logs at debug level with the connection id from ctx, when one is
// present.
func (s *Store) dbg(ctx context.Context, format string, args ...any) {
	if id, ok := reqid.FromContext(ctx); ok {
		s.logger.With("conn", id).Debugf(format, args...)
		return
	}
	s.logger.Debugf(format, args...)
}

// CreateUser creates a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, name, pass string) (int32, error) {
	s.dbg(ctx, "Creating user (%s)", name)

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (name, pass) VALUES (?, ?)", name, pass)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUserExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	s.dbg(ctx, "Created user (%s) with id %d", name, id)

	return int32(id), nil
}

// UserByName returns the user with the given unique name.
func (s *Store) UserByName(ctx context.Context, name string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, pass FROM users WHERE name = ?", name).
		Scan(&u.ID, &u.Name, &u.Pass)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotExist
	}
	return u, err
}

// UserByID returns the user with the given id.
func (s *Store) UserByID(ctx context.Context, id int32) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, pass FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Name, &u.Pass)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotExist
	}
	return u, err
}

// UpdateUserPass replaces the password of the given user.
func (s *Store) UpdateUserPass(ctx context.Context, id int32, pass string) error {
	s.dbg(ctx, "Updating password for user (id: %d)", id)

	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET pass = ? WHERE id = ?", pass, id)
	return err
}

// CreateSession persists a session key for a user. A leftover expired
// row under the same key is replaced.
func (s *Store) CreateSession(ctx context.Context, key, userID int32, validUntil int64) error {
	s.dbg(ctx, "Creating session for user (id: %d)", userID)

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO session_keys (key, user_id, valid_until) VALUES (?, ?, ?)",
		key, userID, validUntil)
	return err
}

// SessionByKey returns the session with the given key.
func (s *Store) SessionByKey(ctx context.Context, key int32) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		"SELECT key, user_id, valid_until FROM session_keys WHERE key = ?", key).
		Scan(&sess.Key, &sess.UserID, &sess.ValidUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotExist
	}
	return sess, err
}

// DeleteSessionsForUser removes every session key belonging to a user.
func (s *Store) DeleteSessionsForUser(ctx context.Context, userID int32) error {
	s.dbg(ctx, "Deleting sessions for user (id: %d)", userID)

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_keys WHERE user_id = ?", userID)
	return err
}

// CreateChannel inserts a channel and enrolls the owner as its first
// member in one transaction, returning the channel id.
func (s *Store) CreateChannel(ctx context.Context, name string, ownerID int32, desc sql.NullString) (int32, error) {
	s.dbg(ctx, "Creating channel (%s) owned by user (id: %d)", name, ownerID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO channels (name, owner_id, description) VALUES (?, ?, ?)",
		name, ownerID, desc)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrChannelExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	// the owner is always a member of their own channel
	_, err = tx.ExecContext(ctx,
		"INSERT INTO channel_members (user_id, channel_id) VALUES (?, ?)",
		ownerID, id)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.dbg(ctx, "Created channel (%s) with id %d", name, id)

	return int32(id), nil
}

// ChannelByID returns the channel with the given id.
func (s *Store) ChannelByID(ctx context.Context, id int32) (Channel, error) {
	var c Channel
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, owner_id, description FROM channels WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.OwnerID, &c.Desc)
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{}, ErrChannelNotExist
	}
	return c, err
}

// ChannelsForUser returns id and name of every channel the user is a
// member of.
func (s *Store) ChannelsForUser(ctx context.Context, userID int32) ([]Channel, error) {
	s.dbg(ctx, "Retrieving channels for user (id: %d)", userID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT channels.id, channels.name
		   FROM channels
		   JOIN channel_members ON channel_members.channel_id = channels.id
		  WHERE channel_members.user_id = ?
		  ORDER BY channels.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// MembersOfChannel returns the user ids enrolled in a channel.
func (s *Store) MembersOfChannel(ctx context.Context, channelID int32) ([]int32, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM channel_members WHERE channel_id = ? ORDER BY user_id",
		channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// IsMember reports whether the user is enrolled in the channel.
func (s *Store) IsMember(ctx context.Context, userID, channelID int32) (bool, error) {
	var one int8
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM channel_members WHERE user_id = ? AND channel_id = ?",
		userID, channelID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddMember enrolls a user into a channel.
func (s *Store) AddMember(ctx context.Context, userID, channelID int32) error {
	s.dbg(ctx, "Adding user (id: %d) to channel (id: %d)", userID, channelID)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO channel_members (user_id, channel_id) VALUES (?, ?)",
		userID, channelID)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyMember
	}
	return err
}

// MutualChannels returns the ids of channels both users are members of.
func (s *Store) MutualChannels(ctx context.Context, userID, otherID int32) ([]int32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id FROM channel_members
		  WHERE user_id = ?
		    AND channel_id IN (
		        SELECT channel_id FROM channel_members WHERE user_id = ?
		    )
		  ORDER BY channel_id`, otherID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		channels = append(channels, id)
	}
	return channels, rows.Err()
}

// CreateMessage appends a message to a channel and returns its id.
func (s *Store) CreateMessage(ctx context.Context, channelID, senderID int32, content string, sentAt int64, repliesTo sql.NullInt32) (int32, error) {
	s.dbg(ctx, "Creating message from user (id: %d) in channel (id: %d)", senderID, channelID)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, channel_id, content, sent_at, replies_to)
		 VALUES (?, ?, ?, ?, ?)`,
		senderID, channelID, content, sentAt, repliesTo)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int32(id), err
}

// MessagesForChannel returns every message of a channel ordered by send
// time ascending.
func (s *Store) MessagesForChannel(ctx context.Context, channelID int32) ([]Message, error) {
	s.dbg(ctx, "Retrieving messages for channel (id: %d)", channelID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, channel_id, content, sent_at, replies_to
		   FROM messages
		  WHERE channel_id = ?
		  ORDER BY sent_at ASC, id ASC`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ChannelID, &m.Content, &m.SentAt, &m.RepliesTo); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
