package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPairIsOrderIndependent(t *testing.T) {
	u1, u2 := canonicalPair("alice", "bob")
	assert.Equal(t, "alice", u1)
	assert.Equal(t, "bob", u2)

	u1, u2 = canonicalPair("bob", "alice")
	assert.Equal(t, "alice", u1)
	assert.Equal(t, "bob", u2)
}

func TestCreateOrGetRoomRejectsSelfPair(t *testing.T) {
	repo := NewRoomRepo(nil)
	_, err := repo.CreateOrGetRoom(context.Background(), "alice", "alice")
	require.Error(t, err)
}

func TestCreateOrGetRoomRequiresBothIDs(t *testing.T) {
	repo := NewRoomRepo(nil)
	_, err := repo.CreateOrGetRoom(context.Background(), "", "bob")
	require.Error(t, err)
	_, err = repo.CreateOrGetRoom(context.Background(), "alice", "")
	require.Error(t, err)
}

func TestCreateMessageRequiresAllFields(t *testing.T) {
	repo := NewMessageRepo(nil)
	cases := []struct {
		name     string
		roomID   int
		sender   string
		receiver string
		content  string
	}{
		{"missing room", 0, "alice", "bob", "hi"},
		{"missing sender", 5, "", "bob", "hi"},
		{"missing receiver", 5, "alice", "", "hi"},
		{"missing content", 5, "alice", "bob", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.CreateMessage(context.Background(), tc.roomID, tc.sender, tc.receiver, tc.content)
			require.Error(t, err)
		})
	}
}
