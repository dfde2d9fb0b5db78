package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"chat-store/internal/storage/zapadapter"
)

var (
	ErrTableExists   = errors.New("table already exists")
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotExist  = errors.New("user does not exist")
	ErrChatExists    = errors.New("chat already exists")
	ErrChatNotExist  = errors.New("chat does not exist")
	ErrOwnerNotExist = errors.New("chat owner does not exist")
	ErrChatBadUsers  = errors.New("bad users list")
	ErrNotChatOwner  = errors.New("user is not the chat owner")
)

// Store is the persistence handle for users, chats and chat memberships.
// All methods are safe for concurrent use; the underlying pool serializes
// nothing beyond what PostgreSQL itself guarantees.
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New connects to PostgreSQL described by cfg and returns a Store.
// Driver-level statement logs are routed through the provided logger.
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	// ConnectConfig establishes an initial connection, so a closed or
	// unreachable store is reported here rather than on first use.
	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.db.Close()
}

// AddUser inserts a new user record. The username primary key makes the
// existence check and the insert a single atomic statement, so concurrent
// duplicates surface as ErrUserExists rather than corrupt rows.
func (s *Store) AddUser(ctx context.Context, username, password string) error {
	s.logger.Debugf("Adding user (%s)", username)

	sql := "insert into userinfo (username, password) values ($1, $2)"
	_, err := s.db.Exec(ctx, sql, username, password)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			s.logger.Debugf("User (%s) already exists", username)
			return ErrUserExists
		}
		return err
	}

	s.logger.Debugf("Added user (%s)", username)

	return nil
}

// UserExists reports whether a user record with the given username exists.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var i int8
	sql := "select 1 from userinfo where username = $1"
	err := s.db.QueryRow(ctx, sql, username).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// CheckCredentials reports whether the stored password for username matches
// password exactly. A missing user is reported as ErrUserNotExist so callers
// can tell it apart from a wrong password.
func (s *Store) CheckCredentials(ctx context.Context, username, password string) (bool, error) {
	exists, err := s.UserExists(ctx, username)
	if err != nil {
		return false, err
	}
	if !exists {
		s.logger.Debugf("Credential check for unknown user (%s)", username)
		return false, ErrUserNotExist
	}

	var i int8
	sql := "select 1 from userinfo where username = $1 and password = $2"
	err = s.db.QueryRow(ctx, sql, username, password).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// CreateChat inserts a chat owned by owner together with one membership row
// per entry of members, in input order, inside a single transaction. Either
// the chat and every membership persist, or nothing does.
func (s *Store) CreateChat(ctx context.Context, chatID int64, owner string, members []string) error {
	s.logger.Debugf("Creating chat (%d) owned by (%s) with members (%v)", chatID, owner, members)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	// error handling can be omitted for rollback according docs
	// see https://pkg.go.dev/github.com/jackc/pgx/v4?tab=doc#hdr-Transactions or any source comment on Rollback
	defer tx.Rollback(context.Background())

	sql := "insert into chats (chatid, owner) values ($1, $2)"
	_, err = tx.Exec(ctx, sql, chatID, owner)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return ErrChatExists
			case pgerrcode.ForeignKeyViolation:
				return ErrOwnerNotExist
			}
		}
		return err
	}

	rows := make([]Membership, 0, len(members))
	for _, member := range members {
		rows = append(rows, Membership{
			ChatID:   chatID,
			Username: member,
		})
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"chatusers"}, []string{"chatid", "username"}, copyFromMemberships(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrChatBadUsers
		}
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}

	s.logger.Debugf("Created chat (%d) with %d members", chatID, len(members))

	return nil
}

// RemoveChat deletes the chat and all its membership rows in a single
// transaction. Only the recorded owner may delete a chat.
func (s *Store) RemoveChat(ctx context.Context, chatID int64, requester string) error {
	s.logger.Debugf("Removing chat (%d) on behalf of (%s)", chatID, requester)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	var owner string
	err = tx.QueryRow(ctx, "select owner from chats where chatid = $1", chatID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrChatNotExist
		}
		return err
	}

	if owner != requester {
		s.logger.Debugf("User (%s) is not the owner of chat (%d) and may not delete it", requester, chatID)
		return ErrNotChatOwner
	}

	// membership rows reference chats.chatid, so they go first
	_, err = tx.Exec(ctx, "delete from chatusers where chatid = $1", chatID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "delete from chats where chatid = $1", chatID)
	if err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}

	s.logger.Debugf("Removed chat (%d)", chatID)

	return nil
}

// ChatExists reports whether a chat with the given id exists.
func (s *Store) ChatExists(ctx context.Context, chatID int64) (bool, error) {
	var i int8
	sql := "select 1 from chats where chatid = $1"
	err := s.db.QueryRow(ctx, sql, chatID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// ChatOwner returns the username recorded as the owner of the chat.
// A missing chat is ErrChatNotExist, distinct from any store failure.
func (s *Store) ChatOwner(ctx context.Context, chatID int64) (string, error) {
	var owner string
	sql := "select owner from chats where chatid = $1"
	err := s.db.QueryRow(ctx, sql, chatID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrChatNotExist
		}
		return "", err
	}

	return owner, nil
}

// ChatMembers returns the usernames holding a membership row for the chat,
// in insertion order. The result is empty when the chat does not exist or
// has no members.
func (s *Store) ChatMembers(ctx context.Context, chatID int64) ([]string, error) {
	s.logger.Debugf("Retrieving members of chat (%d)", chatID)

	sql := "select username from chatusers where chatid = $1 order by id"
	rows, err := s.db.Query(ctx, sql, chatID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var members []string
	for rows.Next() {
		var member string
		err = rows.Scan(&member)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d members", len(members))

	return members, nil
}

// ChatsByUser returns the ids of every chat the user holds a membership row
// in, in insertion order. Duplicate membership rows yield duplicate ids.
// The result is empty when the user does not exist or belongs to no chats.
func (s *Store) ChatsByUser(ctx context.Context, username string) ([]int64, error) {
	s.logger.Debugf("Retrieving chats for user (%s)", username)

	sql := "select coalesce(array_agg(chatid order by id), '{}') from chatusers where username = $1"

	var ids pgtype.Int8Array
	err := s.db.QueryRow(ctx, sql, username).Scan(&ids)
	if err != nil {
		return nil, err
	}

	var chats []int64
	err = ids.AssignTo(&chats)
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("Retrieved %d chats", len(chats))

	return chats, nil
}

// UsersShareChat reports whether the two users hold memberships in at least
// one common chat. The intersection is computed here rather than in SQL.
func (s *Store) UsersShareChat(ctx context.Context, userA, userB string) (bool, error) {
	chatsA, err := s.ChatsByUser(ctx, userA)
	if err != nil {
		return false, err
	}
	if len(chatsA) == 0 {
		return false, nil
	}

	chatsB, err := s.ChatsByUser(ctx, userB)
	if err != nil {
		return false, err
	}

	for _, a := range chatsA {
		for _, b := range chatsB {
			if a == b {
				return true, nil
			}
		}
	}

	return false, nil
}

// UserChatSummary renders every chat the user belongs to together with the
// other members of each chat as a flat comma-separated sequence of
// chatID,username pairs, e.g. "3,Bob,3,Harry,5,Dave". The string is empty
// when the user has no chats.
func (s *Store) UserChatSummary(ctx context.Context, username string) (string, error) {
	chats, err := s.ChatsByUser(ctx, username)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, chatID := range chats {
		members, err := s.ChatMembers(ctx, chatID)
		if err != nil {
			return "", err
		}

		for _, member := range members {
			if member == username {
				continue
			}
			if out.Len() > 0 {
				out.WriteString(",")
			}
			out.WriteString(strconv.FormatInt(chatID, 10))
			out.WriteString(",")
			out.WriteString(member)
		}
	}

	return out.String(), nil
}
