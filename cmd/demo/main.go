package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"chat-store/internal/storage"
	"chat-store/internal/storage/zapadapter"
)

// Walkthrough of the full store surface: users and credentials, chat
// creation and removal with the ownership gate, and every relationship
// query. Safe to run repeatedly against the same database.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Chat store demo is starting")

	cfg := storage.Config{}
	if err := env.Parse(&cfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}

	store, err := storage.New(context.Background(), sugar, cfg,
		storage.ConnectionTimeout(30*time.Second),
		storage.MaxConnections(4),
	)
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}
	defer store.Close()

	ctx := zapadapter.WithOperationID(context.Background(), xid.New().String())

	// schema bootstrap; tables left over from a previous run are fine
	if err := store.CreateUserTable(ctx); err != nil && !errors.Is(err, storage.ErrTableExists) {
		sugar.Fatalf("Cannot create userinfo table: %v", err)
	}
	if err := store.CreateChatTables(ctx); err != nil && !errors.Is(err, storage.ErrTableExists) {
		sugar.Fatalf("Cannot create chat tables: %v", err)
	}

	for _, u := range []struct{ username, password string }{
		{"Bob", "password1"},
		{"Fred", "password2"},
		{"Harry", "password3"},
		{"Rick", "password4"},
	} {
		if err := store.AddUser(ctx, u.username, u.password); err != nil && !errors.Is(err, storage.ErrUserExists) {
			sugar.Fatalf("Cannot add user %s: %v", u.username, err)
		}
	}

	exists, err := store.UserExists(ctx, "Bob")
	if err != nil {
		sugar.Fatalf("UserExists: %v", err)
	}
	sugar.Infof("Bob exists: %t", exists)

	ok, err := store.CheckCredentials(ctx, "Bob", "password1")
	if err != nil {
		sugar.Fatalf("CheckCredentials: %v", err)
	}
	sugar.Infof("Bob with correct password accepted: %t", ok)

	ok, err = store.CheckCredentials(ctx, "Bob", "wrongpassword")
	if err != nil {
		sugar.Fatalf("CheckCredentials: %v", err)
	}
	sugar.Infof("Bob with wrong password accepted: %t", ok)

	if _, err = store.CheckCredentials(ctx, "Ted", "passwordtest"); errors.Is(err, storage.ErrUserNotExist) {
		sugar.Info("Unknown user Ted correctly rejected")
	}

	// a chat owned by a user that does not exist must be rejected
	err = store.CreateChat(ctx, 1, "Nick", []string{"Bob", "Fred", "Harry"})
	if errors.Is(err, storage.ErrOwnerNotExist) {
		sugar.Info("Chat with unknown owner Nick correctly rejected")
	}

	if err := store.CreateChat(ctx, 1, "Bob", []string{"Bob", "Fred", "Harry"}); err != nil && !errors.Is(err, storage.ErrChatExists) {
		sugar.Fatalf("Cannot create chat 1: %v", err)
	}
	if err := store.CreateChat(ctx, 2, "Harry", []string{"Fred", "Harry"}); err != nil && !errors.Is(err, storage.ErrChatExists) {
		sugar.Fatalf("Cannot create chat 2: %v", err)
	}

	if _, err := store.ChatOwner(ctx, 9); errors.Is(err, storage.ErrChatNotExist) {
		sugar.Info("Chat 9 has no owner: it does not exist")
	}

	for _, chatID := range []int64{1, 2} {
		owner, err := store.ChatOwner(ctx, chatID)
		if err != nil {
			sugar.Fatalf("ChatOwner: %v", err)
		}
		members, err := store.ChatMembers(ctx, chatID)
		if err != nil {
			sugar.Fatalf("ChatMembers: %v", err)
		}
		sugar.Infof("Chat %d is owned by %s and has members %v", chatID, owner, members)
	}

	for _, username := range []string{"Fred", "Harry"} {
		summary, err := store.UserChatSummary(ctx, username)
		if err != nil {
			sugar.Fatalf("UserChatSummary: %v", err)
		}
		sugar.Infof("Chat summary for %s: %q", username, summary)
	}

	share, err := store.UsersShareChat(ctx, "Bob", "Harry")
	if err != nil {
		sugar.Fatalf("UsersShareChat: %v", err)
	}
	sugar.Infof("Bob and Harry share a chat: %t", share)

	share, err = store.UsersShareChat(ctx, "Bob", "Rick")
	if err != nil {
		sugar.Fatalf("UsersShareChat: %v", err)
	}
	sugar.Infof("Bob and Rick share a chat: %t", share)

	chats, err := store.ChatsByUser(ctx, "Bob")
	if err != nil {
		sugar.Fatalf("ChatsByUser: %v", err)
	}
	sugar.Infof("Bob is in chats %v", chats)

	if err := store.RemoveChat(ctx, 1, "Harry"); errors.Is(err, storage.ErrNotChatOwner) {
		sugar.Info("Harry may not delete chat 1: not the owner")
	}

	if err := store.RemoveChat(ctx, 1, "Bob"); err != nil {
		sugar.Fatalf("Cannot remove chat 1: %v", err)
	}

	exists, err = store.ChatExists(ctx, 1)
	if err != nil {
		sugar.Fatalf("ChatExists: %v", err)
	}
	sugar.Infof("Chat 1 still exists after removal: %t", exists)

	share, err = store.UsersShareChat(ctx, "Bob", "Harry")
	if err != nil {
		sugar.Fatalf("UsersShareChat: %v", err)
	}
	sugar.Infof("Bob and Harry share a chat after removal: %t", share)

	// leave chat 2 behind so reruns exercise the already-exists paths
	sugar.Info("Chat store demo is done")
}
