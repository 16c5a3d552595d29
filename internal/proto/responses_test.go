package proto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckReply(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckReply(NewMessage(CmdOk)))

	errMsg := (&ErrResponse{Reason: "no such user"}).Message()
	err := CheckReply(errMsg)
	require.Error(t, err)
	var pe *ProtoError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "no such user", pe.Reason)

	err = CheckReply(NewMessage("surprise"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid command 'surprise'")
}

func TestTokenResponseRoundTrip(t *testing.T) {
	t.Parallel()

	resp := &TokenResponse{Token: -123456}
	parsed, err := ParseTokenResponse(resp.Message())
	require.NoError(t, err)
	require.Equal(t, resp, parsed)

	// token is required
	_, err = ParseTokenResponse(NewMessage(CmdOk))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Key 'token' not present.")
}

func TestChannelListResponseRoundTrip(t *testing.T) {
	t.Parallel()

	resp := &ChannelListResponse{Data: []ChannelShort{
		{ID: 1, Name: "general"},
		{ID: 7, Name: "dev"},
	}}
	parsed, err := ParseChannelListResponse(resp.Message())
	require.NoError(t, err)
	require.Equal(t, resp, parsed)

	// an empty listing survives the trip as well
	empty := &ChannelListResponse{}
	parsedEmpty, err := ParseChannelListResponse(empty.Message())
	require.NoError(t, err)
	require.Empty(t, parsedEmpty.Data)
}

func TestChannelMsgResponseRoundTrip(t *testing.T) {
	t.Parallel()

	resp := &ChannelMsgResponse{Msgs: []ChatMessage{
		{Sender: 1, When: 1000, Cnt: "hi"},
		{Sender: 2, When: 4294967295, Cnt: ""},
	}}
	parsed, err := ParseChannelMsgResponse(resp.Message())
	require.NoError(t, err)
	require.Equal(t, resp, parsed)
}

func TestChanDetailResponseRoundTrip(t *testing.T) {
	t.Parallel()

	resp := &ChanDetailResponse{
		ID:      1,
		Name:    "general",
		OwnerID: 1,
		Desc:    "general main room",
		Members: []int32{1, 2, 3},
	}
	parsed, err := ParseChanDetailResponse(resp.Message())
	require.NoError(t, err)
	require.Equal(t, resp, parsed)
}

func TestChanDetailResponseAbsentDesc(t *testing.T) {
	t.Parallel()

	// an absent description crosses the wire as an empty string
	resp := &ChanDetailResponse{ID: 2, Name: "dev", OwnerID: 1, Members: []int32{1}}
	m := resp.Message()
	v, ok := m.Args.Get("desc")
	require.True(t, ok)
	require.Equal(t, String(""), v)

	parsed, err := ParseChanDetailResponse(m)
	require.NoError(t, err)
	require.Equal(t, "", parsed.Desc)
}

func TestUsrDetailResponseRoundTrip(t *testing.T) {
	t.Parallel()

	resp := &UsrDetailResponse{ID: 2, Name: "alice", MutualChannels: []int32{1}}
	parsed, err := ParseUsrDetailResponse(resp.Message())
	require.NoError(t, err)
	require.Equal(t, resp, parsed)
}

func TestNewChanResponseRoundTrip(t *testing.T) {
	t.Parallel()

	resp := &NewChanResponse{ID: 17}
	parsed, err := ParseNewChanResponse(resp.Message())
	require.NoError(t, err)
	require.Equal(t, resp, parsed)
}
