package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mytesting "dotchat/internal/testing"
)

func bootstrap(t *testing.T) *Store {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	s, err := New(logger.Sugar(), Config{Path: filepath.Join(t.TempDir(), "db.dotchat.sqlite")})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func TestSeedOnFreshDatabase(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	master, err := s.UserByName(ctx, SeedUserName)
	require.NoError(t, err)
	require.Equal(t, SeedUserPass, master.Pass)

	channels, err := s.ChannelsForUser(ctx, master.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, SeedChannelName, channels[0].Name)

	general, err := s.ChannelByID(ctx, channels[0].ID)
	require.NoError(t, err)
	require.Equal(t, master.ID, general.OwnerID)
	require.True(t, general.Desc.Valid)
	require.Equal(t, SeedChannelDesc, general.Desc.String)
}

func TestSeedRunsOnlyOnce(t *testing.T) {
	t.Parallel()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "db.dotchat.sqlite")

	s, err := New(logger.Sugar(), Config{Path: path})
	require.NoError(t, err)
	s.Close()

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	// reopening an existing file must not seed again
	s, err = New(logger.Sugar(), Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.UserByName(context.Background(), SeedUserName)
	require.NoError(t, err)
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	name := mytesting.RandName("user")
	id, err := s.CreateUser(ctx, name, "secret")
	require.NoError(t, err)
	require.Greater(t, id, int32(0))

	u, err := s.UserByName(ctx, name)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	byID, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, u, byID)
}

func TestCreateUserExists(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	name := mytesting.RandName("user")
	_, err := s.CreateUser(ctx, name, "secret")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, name, "other")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestUserNotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	_, err := s.UserByName(ctx, "nobody")
	require.ErrorIs(t, err, ErrUserNotExist)
	_, err = s.UserByID(ctx, 9999)
	require.ErrorIs(t, err, ErrUserNotExist)
}

func TestUpdateUserPass(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, mytesting.RandName("user"), "old")
	require.NoError(t, err)

	require.NoError(t, s.UpdateUserPass(ctx, id, "new"))

	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new", u.Pass)
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, mytesting.RandName("user"), "secret")
	require.NoError(t, err)

	until := MonoNow() + int64(1e9)
	require.NoError(t, s.CreateSession(ctx, 12345, uid, until))

	sess, err := s.SessionByKey(ctx, 12345)
	require.NoError(t, err)
	require.Equal(t, uid, sess.UserID)
	require.Equal(t, until, sess.ValidUntil)

	// replacing an existing key keeps a single row
	require.NoError(t, s.CreateSession(ctx, 12345, uid, until+1))
	sess, err = s.SessionByKey(ctx, 12345)
	require.NoError(t, err)
	require.Equal(t, until+1, sess.ValidUntil)

	require.NoError(t, s.DeleteSessionsForUser(ctx, uid))
	_, err = s.SessionByKey(ctx, 12345)
	require.ErrorIs(t, err, ErrSessionNotExist)
}

func TestCreateChannelEnrollsOwner(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, mytesting.RandName("owner"), "secret")
	require.NoError(t, err)

	id, err := s.CreateChannel(ctx, mytesting.RandName("chan"), uid, sql.NullString{})
	require.NoError(t, err)

	member, err := s.IsMember(ctx, uid, id)
	require.NoError(t, err)
	require.True(t, member)

	members, err := s.MembersOfChannel(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []int32{uid}, members)
}

func TestCreateChannelExists(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, mytesting.RandName("owner"), "secret")
	require.NoError(t, err)

	name := mytesting.RandName("chan")
	_, err = s.CreateChannel(ctx, name, uid, sql.NullString{})
	require.NoError(t, err)
	_, err = s.CreateChannel(ctx, name, uid, sql.NullString{})
	require.ErrorIs(t, err, ErrChannelExists)
}

func TestMembership(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, mytesting.RandName("owner"), "secret")
	require.NoError(t, err)
	guest, err := s.CreateUser(ctx, mytesting.RandName("guest"), "secret")
	require.NoError(t, err)

	chanID, err := s.CreateChannel(ctx, mytesting.RandName("chan"), owner, sql.NullString{})
	require.NoError(t, err)

	member, err := s.IsMember(ctx, guest, chanID)
	require.NoError(t, err)
	require.False(t, member)

	require.NoError(t, s.AddMember(ctx, guest, chanID))
	require.ErrorIs(t, s.AddMember(ctx, guest, chanID), ErrAlreadyMember)

	member, err = s.IsMember(ctx, guest, chanID)
	require.NoError(t, err)
	require.True(t, member)
}

func TestMutualChannels(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	a, err := s.CreateUser(ctx, mytesting.RandName("a"), "secret")
	require.NoError(t, err)
	b, err := s.CreateUser(ctx, mytesting.RandName("b"), "secret")
	require.NoError(t, err)

	shared, err := s.CreateChannel(ctx, mytesting.RandName("shared"), a, sql.NullString{})
	require.NoError(t, err)
	require.NoError(t, s.AddMember(ctx, b, shared))

	// a channel only one of them joined must not show up
	_, err = s.CreateChannel(ctx, mytesting.RandName("private"), a, sql.NullString{})
	require.NoError(t, err)

	mutual, err := s.MutualChannels(ctx, a, b)
	require.NoError(t, err)
	require.Equal(t, []int32{shared}, mutual)
}

func TestMessagesOrderedBySendTime(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, mytesting.RandName("user"), "secret")
	require.NoError(t, err)
	chanID, err := s.CreateChannel(ctx, mytesting.RandName("chan"), uid, sql.NullString{})
	require.NoError(t, err)

	// inserted out of order on purpose
	_, err = s.CreateMessage(ctx, chanID, uid, "second", 2000, sql.NullInt32{})
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, chanID, uid, "first", 1000, sql.NullInt32{})
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, chanID, uid, "third", 3000, sql.NullInt32{})
	require.NoError(t, err)

	msgs, err := s.MessagesForChannel(ctx, chanID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)
	require.Equal(t, "third", msgs[2].Content)
	for i := 1; i < len(msgs); i++ {
		require.LessOrEqual(t, msgs[i-1].SentAt, msgs[i].SentAt)
	}
}

func TestChannelNotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.ChannelByID(context.Background(), 9999)
	require.ErrorIs(t, err, ErrChannelNotExist)
}
