package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// CreateUserTable creates the userinfo table. A table already present is
// reported as ErrTableExists; startup code treats that as acceptable.
func (s *Store) CreateUserTable(ctx context.Context) error {
	sql := `create table userinfo (
				username varchar(20) primary key,
				password varchar(20)
			)`

	_, err := s.db.Exec(ctx, sql)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.DuplicateTable {
			s.logger.Debug("Table userinfo already exists")
			return ErrTableExists
		}
		return err
	}

	s.logger.Debug("Created table userinfo")

	return nil
}

// CreateChatTables creates the chats and chatusers tables as a pair.
// chatusers is not attempted when chats creation fails, since it carries a
// foreign key into chats.
func (s *Store) CreateChatTables(ctx context.Context) error {
	sql := `create table chats (
				chatid bigint primary key,
				owner  varchar(20) not null references userinfo (username)
			)`

	_, err := s.db.Exec(ctx, sql)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.DuplicateTable {
			s.logger.Debug("Table chats already exists")
			return ErrTableExists
		}
		return err
	}

	sql = `create table chatusers (
				id       bigserial primary key,
				chatid   bigint      not null references chats (chatid),
				username varchar(20) not null references userinfo (username)
			)`

	_, err = s.db.Exec(ctx, sql)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.DuplicateTable {
			s.logger.Debug("Table chatusers already exists")
			return ErrTableExists
		}
		return err
	}

	s.logger.Debug("Created tables chats and chatusers")

	return nil
}
