package server

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"dotchat/internal/proto"
	"dotchat/internal/storage"
)

// handlerFunc maps an incoming message to the response message. A
// returned *proto.ProtoError is converted into an err response; any
// other error terminates the connection.
type handlerFunc func(ctx context.Context, m *proto.Message) (*proto.Message, error)

type handler struct {
	logger *zap.SugaredLogger
	store  *storage.Store
	routes map[string]handlerFunc
}

func newHandler(logger *zap.SugaredLogger, store *storage.Store) *handler {
	h := &handler{logger: logger, store: store}
	h.routes = map[string]handlerFunc{
		proto.CmdLogin:      h.login,
		proto.CmdLogout:     h.logout,
		proto.CmdChannelLst: h.channelList,
		proto.CmdChannelMsg: h.channelMsg,
		proto.CmdMsgSend:    h.msgSend,
		proto.CmdChanDetail: h.chanDetail,
		proto.CmdNewChan:    h.newChan,
		proto.CmdNewUsr:     h.newUsr,
		proto.CmdChPass:     h.chPass,
		proto.CmdUsrDetail:  h.usrDetail,
		proto.CmdInvite:     h.invite,
	}
	return h
}

// dispatch routes one message to its handler. Protocol errors become
// err responses; unknown commands are rejected without reaching a
// handler. A non-nil error means the connection must be torn down.
func (h *handler) dispatch(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	fn, ok := h.routes[m.Cmd]
	if !ok {
		reason := proto.Errorf("Command '%s' is invalid.", m.Cmd)
		return proto.ErrResponseOf(reason).Message(), nil
	}

	resp, err := fn(ctx, m)
	if err != nil {
		var pe *proto.ProtoError
		if errors.As(err, &pe) {
			return proto.ErrResponseOf(pe).Message(), nil
		}
		return nil, err
	}
	return resp, nil
}

func (h *handler) login(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseLoginRequest(m)
	if err != nil {
		return nil, err
	}

	user, err := h.store.UserByName(ctx, req.User)
	if errors.Is(err, storage.ErrUserNotExist) {
		return nil, proto.Errorf("User '%s' doesn't exist.", req.User)
	}
	if err != nil {
		return nil, err
	}
	if user.Pass != req.Pass {
		return nil, proto.Errorf("Password for '%s' incorrect.", req.User)
	}

	key, err := h.newSessionKey(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return (&proto.TokenResponse{Token: key}).Message(), nil
}

func (h *handler) logout(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseLogoutRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteSessionsForUser(ctx, user.ID); err != nil {
		return nil, err
	}
	return proto.OkResponse{}.Message(), nil
}

func (h *handler) channelList(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseChannelListRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	channels, err := h.store.ChannelsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	resp := &proto.ChannelListResponse{}
	for _, c := range channels {
		resp.Data = append(resp.Data, proto.ChannelShort{ID: c.ID, Name: c.Name})
	}
	return resp.Message(), nil
}

func (h *handler) channelMsg(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseChannelMsgRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	member, err := h.store.IsMember(ctx, user.ID, req.ChanID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, proto.Errorf("You can't access that channel, or that channel doesn't exist.")
	}

	msgs, err := h.store.MessagesForChannel(ctx, req.ChanID)
	if err != nil {
		return nil, err
	}

	resp := &proto.ChannelMsgResponse{}
	for _, msg := range msgs {
		resp.Msgs = append(resp.Msgs, proto.ChatMessage{
			Sender: msg.SenderID,
			When:   uint32(msg.SentAt),
			Cnt:    msg.Content,
		})
	}
	return resp.Message(), nil
}

func (h *handler) msgSend(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseMsgSendRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	member, err := h.store.IsMember(ctx, user.ID, req.ChanID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, proto.Errorf("You are not permitted to send messages in that channel.")
	}

	_, err = h.store.CreateMessage(ctx, req.ChanID, user.ID, req.MsgCnt,
		storage.WallNowMillis(), sql.NullInt32{})
	if err != nil {
		return nil, err
	}
	return proto.OkResponse{}.Message(), nil
}

func (h *handler) chanDetail(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseChanDetailRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	members, err := h.store.MembersOfChannel(ctx, req.ChanID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, id := range members {
		if id == user.ID {
			found = true
			break
		}
	}
	if !found {
		return nil, proto.Errorf("You can't access that channel.")
	}

	channel, err := h.store.ChannelByID(ctx, req.ChanID)
	if errors.Is(err, storage.ErrChannelNotExist) {
		return nil, proto.Errorf("That channel doesn't exist.")
	}
	if err != nil {
		return nil, err
	}

	resp := &proto.ChanDetailResponse{
		ID:      channel.ID,
		Name:    channel.Name,
		OwnerID: channel.OwnerID,
		Desc:    channel.Desc.String, // "" when the description is absent
		Members: members,
	}
	return resp.Message(), nil
}

func (h *handler) newChan(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseNewChanRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	desc := sql.NullString{String: req.Desc, Valid: req.Desc != ""}
	id, err := h.store.CreateChannel(ctx, req.Name, user.ID, desc)
	if errors.Is(err, storage.ErrChannelExists) {
		return nil, proto.Errorf("A channel named '%s' already exists.", req.Name)
	}
	if err != nil {
		return nil, err
	}

	return (&proto.NewChanResponse{ID: id}).Message(), nil
}

func (h *handler) newUsr(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseNewUsrRequest(m)
	if err != nil {
		return nil, err
	}

	_, err = h.store.CreateUser(ctx, req.Name, req.Pass)
	if errors.Is(err, storage.ErrUserExists) {
		return nil, proto.Errorf("User '%s' already exists.", req.Name)
	}
	if err != nil {
		return nil, err
	}
	return proto.OkResponse{}.Message(), nil
}

func (h *handler) chPass(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseChPassRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if err := h.store.UpdateUserPass(ctx, user.ID, req.NewPass); err != nil {
		return nil, err
	}
	// a password change revokes every open session of the user
	if err := h.store.DeleteSessionsForUser(ctx, user.ID); err != nil {
		return nil, err
	}
	return proto.OkResponse{}.Message(), nil
}

func (h *handler) usrDetail(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseUsrDetailRequest(m)
	if err != nil {
		return nil, err
	}
	caller, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	target, err := h.store.UserByID(ctx, req.UID)
	if errors.Is(err, storage.ErrUserNotExist) {
		return nil, proto.Errorf("User with ID '%d' doesn't exist.", req.UID)
	}
	if err != nil {
		return nil, err
	}

	mutual, err := h.store.MutualChannels(ctx, caller.ID, target.ID)
	if err != nil {
		return nil, err
	}

	resp := &proto.UsrDetailResponse{
		ID:             target.ID,
		Name:           target.Name,
		MutualChannels: mutual,
	}
	return resp.Message(), nil
}

func (h *handler) invite(ctx context.Context, m *proto.Message) (*proto.Message, error) {
	req, err := proto.ParseInviteRequest(m)
	if err != nil {
		return nil, err
	}
	user, err := h.checkSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	channel, err := h.store.ChannelByID(ctx, req.ChanID)
	if errors.Is(err, storage.ErrChannelNotExist) {
		return nil, proto.Errorf("There is no channel with ID '%d'.", req.ChanID)
	}
	if err != nil {
		return nil, err
	}
	if channel.OwnerID != user.ID {
		return nil, proto.Errorf("Only the creator of a channel can add users to that channel.")
	}

	other, err := h.store.UserByID(ctx, req.UID)
	if errors.Is(err, storage.ErrUserNotExist) {
		return nil, proto.Errorf("There is no user with ID '%d'.", req.UID)
	}
	if err != nil {
		return nil, err
	}

	err = h.store.AddMember(ctx, other.ID, channel.ID)
	if errors.Is(err, storage.ErrAlreadyMember) {
		return nil, proto.Errorf("That user has already joined that channel.")
	}
	if err != nil {
		return nil, err
	}
	return proto.OkResponse{}.Message(), nil
}
