package storage

import "github.com/jackc/pgx/v4"

type membershipBulk struct {
	rows []Membership
	idx  int
}

func copyFromMemberships(rows []Membership) pgx.CopyFromSource {
	return &membershipBulk{
		rows: rows,
		idx:  -1,
	}
}

func (mb *membershipBulk) Next() bool {
	mb.idx++
	return mb.idx < len(mb.rows)
}

func (mb *membershipBulk) Values() ([]interface{}, error) {
	row := mb.rows[mb.idx]
	return []interface{}{row.ChatID, row.Username}, nil
}

func (mb *membershipBulk) Err() error {
	return nil
}
