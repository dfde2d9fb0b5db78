package storage

// Membership associates one chat with one of its participating users.
// ID is a store-assigned surrogate key with no meaning outside the database;
// rows are ordered by it to get insertion order back out.
type Membership struct {
	ID       int64
	ChatID   int64
	Username string
}
