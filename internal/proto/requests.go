package proto

// Command strings of the closed request set. Any other root command is
// rejected by the dispatcher.
const (
	CmdLogin      = "login"
	CmdLogout     = "logout"
	CmdChannelLst = "channel_lst"
	CmdChannelMsg = "channel_msg"
	CmdMsgSend    = "msg_send"
	CmdChanDetail = "chan_detail"
	CmdNewChan    = "new_chan"
	CmdNewUsr     = "new_usr"
	CmdChPass     = "ch_pass"
	CmdUsrDetail  = "usr_detail"
	CmdInvite     = "invite"
)

// RequestCommands lists every valid request command.
var RequestCommands = []string{
	CmdLogin, CmdLogout, CmdChannelLst, CmdChannelMsg, CmdMsgSend,
	CmdChanDetail, CmdNewChan, CmdNewUsr, CmdChPass, CmdUsrDetail, CmdInvite,
}

func expectCmd(m *Message, want string) error {
	if m.Cmd != want {
		return Errorf("Expected command '%s', got '%s'.", want, m.Cmd)
	}
	return nil
}

func requireString(o *Obj, key string) (string, error) {
	v, ok := o.Get(key)
	if !ok {
		return "", Errorf("Key '%s' not present.", key)
	}
	s, ok := v.(String)
	if !ok {
		return "", Errorf("Key '%s' doesn't have the correct type.", key)
	}
	return string(s), nil
}

func requireInt32(o *Obj, key string) (int32, error) {
	v, ok := o.Get(key)
	if !ok {
		return 0, Errorf("Key '%s' not present.", key)
	}
	n, ok := v.(Int32)
	if !ok {
		return 0, Errorf("Key '%s' doesn't have the correct type.", key)
	}
	return int32(n), nil
}

func requireList(o *Obj, key string, elem Tag) (*List, error) {
	v, ok := o.Get(key)
	if !ok {
		return nil, Errorf("Key '%s' not present.", key)
	}
	l, ok := v.(*List)
	if !ok || (l.Len() > 0 && l.Elem() != elem) {
		return nil, Errorf("Key '%s' doesn't have the correct type.", key)
	}
	return l, nil
}

// TokenRequest carries the bearer token shared by every authenticated
// request.
type TokenRequest struct {
	Token int32
}

func parseTokenRequest(m *Message, cmd string) (TokenRequest, error) {
	if err := expectCmd(m, cmd); err != nil {
		return TokenRequest{}, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return TokenRequest{}, err
	}
	return TokenRequest{Token: token}, nil
}

func (r TokenRequest) message(cmd string) *Message {
	m := NewMessage(cmd)
	m.Args.Set("token", Int32(r.Token))
	return m
}

// LoginRequest authenticates by name and password.
type LoginRequest struct {
	User string
	Pass string
}

func ParseLoginRequest(m *Message) (*LoginRequest, error) {
	if err := expectCmd(m, CmdLogin); err != nil {
		return nil, err
	}
	user, err := requireString(m.Args, "user")
	if err != nil {
		return nil, err
	}
	pass, err := requireString(m.Args, "pass")
	if err != nil {
		return nil, err
	}
	return &LoginRequest{User: user, Pass: pass}, nil
}

func (r *LoginRequest) Message() *Message {
	m := NewMessage(CmdLogin)
	m.Args.Set("user", String(r.User))
	m.Args.Set("pass", String(r.Pass))
	return m
}

// LogoutRequest invalidates every session key of the caller.
type LogoutRequest struct {
	TokenRequest
}

func ParseLogoutRequest(m *Message) (*LogoutRequest, error) {
	t, err := parseTokenRequest(m, CmdLogout)
	if err != nil {
		return nil, err
	}
	return &LogoutRequest{t}, nil
}

func (r *LogoutRequest) Message() *Message {
	return r.message(CmdLogout)
}

// ChannelListRequest asks for the channels the caller is a member of.
type ChannelListRequest struct {
	TokenRequest
}

func ParseChannelListRequest(m *Message) (*ChannelListRequest, error) {
	t, err := parseTokenRequest(m, CmdChannelLst)
	if err != nil {
		return nil, err
	}
	return &ChannelListRequest{t}, nil
}

func (r *ChannelListRequest) Message() *Message {
	return r.message(CmdChannelLst)
}

// ChannelMsgRequest asks for the messages of one channel.
type ChannelMsgRequest struct {
	Token  int32
	ChanID int32
}

func ParseChannelMsgRequest(m *Message) (*ChannelMsgRequest, error) {
	if err := expectCmd(m, CmdChannelMsg); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	chanID, err := requireInt32(m.Args, "chan_id")
	if err != nil {
		return nil, err
	}
	return &ChannelMsgRequest{Token: token, ChanID: chanID}, nil
}

func (r *ChannelMsgRequest) Message() *Message {
	m := NewMessage(CmdChannelMsg)
	m.Args.Set("token", Int32(r.Token))
	m.Args.Set("chan_id", Int32(r.ChanID))
	return m
}

// MsgSendRequest appends a message to a channel.
type MsgSendRequest struct {
	Token  int32
	ChanID int32
	MsgCnt string
}

func ParseMsgSendRequest(m *Message) (*MsgSendRequest, error) {
	if err := expectCmd(m, CmdMsgSend); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	chanID, err := requireInt32(m.Args, "chan_id")
	if err != nil {
		return nil, err
	}
	cnt, err := requireString(m.Args, "msg_cnt")
	if err != nil {
		return nil, err
	}
	return &MsgSendRequest{Token: token, ChanID: chanID, MsgCnt: cnt}, nil
}

func (r *MsgSendRequest) Message() *Message {
	m := NewMessage(CmdMsgSend)
	m.Args.Set("token", Int32(r.Token))
	m.Args.Set("chan_id", Int32(r.ChanID))
	m.Args.Set("msg_cnt", String(r.MsgCnt))
	return m
}

// ChanDetailRequest asks for channel metadata and its member list.
type ChanDetailRequest struct {
	Token  int32
	ChanID int32
}

func ParseChanDetailRequest(m *Message) (*ChanDetailRequest, error) {
	if err := expectCmd(m, CmdChanDetail); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	chanID, err := requireInt32(m.Args, "chan_id")
	if err != nil {
		return nil, err
	}
	return &ChanDetailRequest{Token: token, ChanID: chanID}, nil
}

func (r *ChanDetailRequest) Message() *Message {
	m := NewMessage(CmdChanDetail)
	m.Args.Set("token", Int32(r.Token))
	m.Args.Set("chan_id", Int32(r.ChanID))
	return m
}

// NewChanRequest creates a channel owned by the caller. An empty Desc
// means no description; the wire format has no presence marker for it.
type NewChanRequest struct {
	Token int32
	Name  string
	Desc  string
}

func ParseNewChanRequest(m *Message) (*NewChanRequest, error) {
	if err := expectCmd(m, CmdNewChan); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	name, err := requireString(m.Args, "name")
	if err != nil {
		return nil, err
	}
	desc, err := requireString(m.Args, "desc")
	if err != nil {
		return nil, err
	}
	return &NewChanRequest{Token: token, Name: name, Desc: desc}, nil
}

func (r *NewChanRequest) Message() *Message {
	m := NewMessage(CmdNewChan)
	m.Args.Set("token", Int32(r.Token))
	m.Args.Set("name", String(r.Name))
	m.Args.Set("desc", String(r.Desc))
	return m
}

// NewUsrRequest signs up a new user. No token required.
type NewUsrRequest struct {
	Name string
	Pass string
}

func ParseNewUsrRequest(m *Message) (*NewUsrRequest, error) {
	if err := expectCmd(m, CmdNewUsr); err != nil {
		return nil, err
	}
	name, err := requireString(m.Args, "name")
	if err != nil {
		return nil, err
	}
	pass, err := requireString(m.Args, "pass")
	if err != nil {
		return nil, err
	}
	return &NewUsrRequest{Name: name, Pass: pass}, nil
}

func (r *NewUsrRequest) Message() *Message {
	m := NewMessage(CmdNewUsr)
	m.Args.Set("name", String(r.Name))
	m.Args.Set("pass", String(r.Pass))
	return m
}

// ChPassRequest changes the caller's password.
type ChPassRequest struct {
	Token   int32
	NewPass string
}

func ParseChPassRequest(m *Message) (*ChPassRequest, error) {
	if err := expectCmd(m, CmdChPass); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	newPass, err := requireString(m.Args, "new_pass")
	if err != nil {
		return nil, err
	}
	return &ChPassRequest{Token: token, NewPass: newPass}, nil
}

func (r *ChPassRequest) Message() *Message {
	m := NewMessage(CmdChPass)
	m.Args.Set("token", Int32(r.Token))
	m.Args.Set("new_pass", String(r.NewPass))
	return m
}

// UsrDetailRequest looks up another user and the channels shared with
// the caller.
type UsrDetailRequest struct {
	Token int32
	UID   int32
}

func ParseUsrDetailRequest(m *Message) (*UsrDetailRequest, error) {
	if err := expectCmd(m, CmdUsrDetail); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	uid, err := requireInt32(m.Args, "uid")
	if err != nil {
		return nil, err
	}
	return &UsrDetailRequest{Token: token, UID: uid}, nil
}

func (r *UsrDetailRequest) Message() *Message {
	m := NewMessage(CmdUsrDetail)
	m.Args.Set("token", Int32(r.Token))
	m.Args.Set("uid", Int32(r.UID))
	return m
}

// InviteRequest adds a user to a channel owned by the caller.
type InviteRequest struct {
	Token  int32
	UID    int32
	ChanID int32
}

func ParseInviteRequest(m *Message) (*InviteRequest, error) {
	if err := expectCmd(m, CmdInvite); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	uid, err := requireInt32(m.Args, "uid")
	if err != nil {
		return nil, err
	}
	chanID, err := requireInt32(m.Args, "chan_id")
	if err != nil {
		return nil, err
	}
	return &InviteRequest{Token: token, UID: uid, ChanID: chanID}, nil
}

func (r *InviteRequest) Message() *Message {
	m := NewMessage(CmdInvite)
	m.Args.Set("token", Int32(r.Token))
	m.Args.Set("uid", Int32(r.UID))
	m.Args.Set("chan_id", Int32(r.ChanID))
	return m
}
