package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mytesting "chat-store/internal/testing"
)

func bootstrap(t *testing.T) *Store {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cfg := Config{}
	require.NoError(t, env.Parse(&cfg))

	s, err := New(context.Background(), logger.Sugar(), cfg)
	require.NoError(t, err)

	if err := s.CreateUserTable(context.Background()); err != nil {
		require.Equal(t, ErrTableExists, err)
	}
	if err := s.CreateChatTables(context.Background()); err != nil {
		require.Equal(t, ErrTableExists, err)
	}

	return s
}

// addUsers registers n users with random names and returns the names
func addUsers(t *testing.T, s *Store, n int) []string {
	usernames := make([]string, 0, n)
	for i := 0; i < n; i++ {
		username := mytesting.RandString()
		require.NoError(t, s.AddUser(context.Background(), username, "secret"))
		usernames = append(usernames, username)
	}
	return usernames
}

func TestAddUser(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	username := mytesting.RandString()
	require.NoError(t, s.AddUser(context.Background(), username, "secret"))

	exists, err := s.UserExists(context.Background(), username)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestAddUserExists(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	username := mytesting.RandString()
	require.NoError(t, s.AddUser(context.Background(), username, "secret"))
	require.Equal(t, ErrUserExists, s.AddUser(context.Background(), username, "another"))

	// the rejected duplicate leaves the original record in place
	exists, err := s.UserExists(context.Background(), username)
	require.NoError(t, err)
	require.True(t, exists)

	ok, err := s.CheckCredentials(context.Background(), username, "secret")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUserExistsUnknown(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	exists, err := s.UserExists(context.Background(), mytesting.RandString())
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCheckCredentials(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	username := mytesting.RandString()
	require.NoError(t, s.AddUser(context.Background(), username, "pa55"))

	ok, err := s.CheckCredentials(context.Background(), username, "pa55")
	require.NoError(t, err)
	require.True(t, ok)

	// exact, case-sensitive match
	ok, err = s.CheckCredentials(context.Background(), username, "Pa55")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckCredentialsUnknownUser(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	ok, err := s.CheckCredentials(context.Background(), mytesting.RandString(), "anything")
	require.Equal(t, ErrUserNotExist, err)
	require.False(t, ok)
}

func TestCreateChat(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 3)
	owner := members[0]
	chatID := mytesting.RandChatID()

	require.NoError(t, s.CreateChat(context.Background(), chatID, owner, members))

	exists, err := s.ChatExists(context.Background(), chatID)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := s.ChatOwner(context.Background(), chatID)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	retrieved, err := s.ChatMembers(context.Background(), chatID)
	require.NoError(t, err)
	require.Equal(t, members, retrieved)
}

func TestCreateChatExists(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 2)
	chatID := mytesting.RandChatID()

	require.NoError(t, s.CreateChat(context.Background(), chatID, members[0], members))
	require.Equal(t, ErrChatExists, s.CreateChat(context.Background(), chatID, members[0], members))
}

func TestCreateChatUnknownOwner(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 2)
	chatID := mytesting.RandChatID()

	err := s.CreateChat(context.Background(), chatID, mytesting.RandString(), members)
	require.Equal(t, ErrOwnerNotExist, err)

	// nothing was written
	exists, err := s.ChatExists(context.Background(), chatID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCreateChatUnknownMember(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 2)
	owner := members[0]
	chatID := mytesting.RandChatID()

	err := s.CreateChat(context.Background(), chatID, owner, append(members, mytesting.RandString()))
	require.Equal(t, ErrChatBadUsers, err)

	// no partial state: the chat row was rolled back with the memberships
	exists, err := s.ChatExists(context.Background(), chatID)
	require.NoError(t, err)
	require.False(t, exists)

	chats, err := s.ChatsByUser(context.Background(), owner)
	require.NoError(t, err)
	require.NotContains(t, chats, chatID)
}

func TestCreateChatDuplicateMembers(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 2)
	chatID := mytesting.RandChatID()

	// duplicate memberships are not deduplicated
	require.NoError(t, s.CreateChat(context.Background(), chatID, members[0], []string{members[0], members[1], members[1]}))

	retrieved, err := s.ChatMembers(context.Background(), chatID)
	require.NoError(t, err)
	require.Equal(t, []string{members[0], members[1], members[1]}, retrieved)
}

func TestRemoveChat(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 3)
	owner := members[0]
	chatID := mytesting.RandChatID()
	require.NoError(t, s.CreateChat(context.Background(), chatID, owner, members))

	require.NoError(t, s.RemoveChat(context.Background(), chatID, owner))

	exists, err := s.ChatExists(context.Background(), chatID)
	require.NoError(t, err)
	require.False(t, exists)

	retrieved, err := s.ChatMembers(context.Background(), chatID)
	require.NoError(t, err)
	require.Empty(t, retrieved)
}

func TestRemoveChatNotOwner(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 2)
	owner, other := members[0], members[1]
	chatID := mytesting.RandChatID()
	require.NoError(t, s.CreateChat(context.Background(), chatID, owner, members))

	require.Equal(t, ErrNotChatOwner, s.RemoveChat(context.Background(), chatID, other))

	// the chat survives the denied request
	exists, err := s.ChatExists(context.Background(), chatID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRemoveChatNotExist(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	require.Equal(t, ErrChatNotExist, s.RemoveChat(context.Background(), mytesting.RandChatID(), mytesting.RandString()))
}

func TestChatOwnerNotExist(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	owner, err := s.ChatOwner(context.Background(), mytesting.RandChatID())
	require.Equal(t, ErrChatNotExist, err)
	require.Equal(t, "", owner)
}

func TestChatsByUserUnknown(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	chats, err := s.ChatsByUser(context.Background(), mytesting.RandString())
	require.NoError(t, err)
	require.Empty(t, chats)
}

func TestUsersShareChat(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 3)
	a, b, c := members[0], members[1], members[2]
	require.NoError(t, s.CreateChat(context.Background(), mytesting.RandChatID(), a, []string{a, b}))

	share, err := s.UsersShareChat(context.Background(), a, b)
	require.NoError(t, err)
	require.True(t, share)

	// symmetric in its arguments
	share, err = s.UsersShareChat(context.Background(), b, a)
	require.NoError(t, err)
	require.True(t, share)

	share, err = s.UsersShareChat(context.Background(), a, c)
	require.NoError(t, err)
	require.False(t, share)

	share, err = s.UsersShareChat(context.Background(), c, a)
	require.NoError(t, err)
	require.False(t, share)
}

func TestUserChatSummary(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 3)
	bob, fred, harry := members[0], members[1], members[2]
	chat1 := mytesting.RandChatID()
	chat2 := mytesting.RandChatID()

	require.NoError(t, s.CreateChat(context.Background(), chat1, bob, []string{bob, fred, harry}))
	require.NoError(t, s.CreateChat(context.Background(), chat2, harry, []string{fred, harry}))

	summary, err := s.UserChatSummary(context.Background(), fred)
	require.NoError(t, err)

	expected := fmt.Sprintf("%d,%s,%d,%s,%d,%s", chat1, bob, chat1, harry, chat2, harry)
	require.Equal(t, expected, summary)
}

func TestUserChatSummaryNoChats(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	users := addUsers(t, s, 1)

	summary, err := s.UserChatSummary(context.Background(), users[0])
	require.NoError(t, err)
	require.Equal(t, "", summary)
}

func TestChatLifecycleEndToEnd(t *testing.T) {
	t.Parallel()
	s := bootstrap(t)

	members := addUsers(t, s, 3)
	bob, harry := members[0], members[2]
	chatID := mytesting.RandChatID()

	require.NoError(t, s.CreateChat(context.Background(), chatID, bob, members))

	share, err := s.UsersShareChat(context.Background(), bob, harry)
	require.NoError(t, err)
	require.True(t, share)

	require.NoError(t, s.RemoveChat(context.Background(), chatID, bob))

	share, err = s.UsersShareChat(context.Background(), bob, harry)
	require.NoError(t, err)
	require.False(t, share)

	chats, err := s.ChatsByUser(context.Background(), bob)
	require.NoError(t, err)
	require.Empty(t, chats)
}
