package proto

// Response command strings.
const (
	CmdOk  = "ok"
	CmdErr = "err"
)

// OkResponse is the bare success reply.
type OkResponse struct{}

func ParseOkResponse(m *Message) (*OkResponse, error) {
	if err := expectCmd(m, CmdOk); err != nil {
		return nil, err
	}
	return &OkResponse{}, nil
}

func (OkResponse) Message() *Message {
	return NewMessage(CmdOk)
}

// ErrResponse carries a client-visible failure reason.
type ErrResponse struct {
	Reason string
}

// ErrResponseOf wraps any error's message into an err envelope.
func ErrResponseOf(err error) *ErrResponse {
	return &ErrResponse{Reason: err.Error()}
}

func ParseErrResponse(m *Message) (*ErrResponse, error) {
	if err := expectCmd(m, CmdErr); err != nil {
		return nil, err
	}
	reason, err := requireString(m.Args, "reason")
	if err != nil {
		return nil, err
	}
	return &ErrResponse{Reason: reason}, nil
}

func (r *ErrResponse) Message() *Message {
	m := NewMessage(CmdErr)
	m.Args.Set("reason", String(r.Reason))
	return m
}

// CheckReply classifies a server reply before parsing a typed response.
// An err reply surfaces the server's reason as a ProtoError; anything
// but ok or err is rejected.
func CheckReply(m *Message) error {
	switch m.Cmd {
	case CmdOk:
		return nil
	case CmdErr:
		r, err := ParseErrResponse(m)
		if err != nil {
			return err
		}
		return &ProtoError{Reason: r.Reason}
	}
	return Errorf("Message with invalid command '%s'. Expected 'ok' or 'err'.", m.Cmd)
}

// TokenResponse is the login success reply.
type TokenResponse struct {
	Token int32
}

func ParseTokenResponse(m *Message) (*TokenResponse, error) {
	if err := expectCmd(m, CmdOk); err != nil {
		return nil, err
	}
	token, err := requireInt32(m.Args, "token")
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token}, nil
}

func (r *TokenResponse) Message() *Message {
	m := NewMessage(CmdOk)
	m.Args.Set("token", Int32(r.Token))
	return m
}

// NewChanResponse carries the id of a freshly created channel.
type NewChanResponse struct {
	ID int32
}

func ParseNewChanResponse(m *Message) (*NewChanResponse, error) {
	if err := expectCmd(m, CmdOk); err != nil {
		return nil, err
	}
	id, err := requireInt32(m.Args, "id")
	if err != nil {
		return nil, err
	}
	return &NewChanResponse{ID: id}, nil
}

func (r *NewChanResponse) Message() *Message {
	m := NewMessage(CmdOk)
	m.Args.Set("id", Int32(r.ID))
	return m
}

// ChannelShort is one entry of a channel listing.
type ChannelShort struct {
	ID   int32
	Name string
}

// ChannelListResponse is the channel_lst success reply.
type ChannelListResponse struct {
	Data []ChannelShort
}

func ParseChannelListResponse(m *Message) (*ChannelListResponse, error) {
	if err := expectCmd(m, CmdOk); err != nil {
		return nil, err
	}
	data, err := requireList(m.Args, "data", TagObject)
	if err != nil {
		return nil, err
	}
	resp := &ChannelListResponse{}
	for _, item := range data.Items() {
		obj, ok := item.(*Obj)
		if !ok {
			return nil, Errorf("Invalid contained type in key 'data'.")
		}
		id, err := requireInt32(obj, "id")
		if err != nil {
			return nil, err
		}
		name, err := requireString(obj, "name")
		if err != nil {
			return nil, err
		}
		resp.Data = append(resp.Data, ChannelShort{ID: id, Name: name})
	}
	return resp, nil
}

func (r *ChannelListResponse) Message() *Message {
	l := NewList(TagObject)
	for _, chn := range r.Data {
		obj := NewObj()
		obj.Set("id", Int32(chn.ID))
		obj.Set("name", String(chn.Name))
		l.Append(obj)
	}
	m := NewMessage(CmdOk)
	m.Args.Set("data", l)
	return m
}

// ChatMessage is one entry of a channel's message history. When is a
// wall-clock timestamp in milliseconds, truncated to 32 bits on the
// wire.
type ChatMessage struct {
	Sender int32
	When   uint32
	Cnt    string
}

// ChannelMsgResponse is the channel_msg success reply, ordered by send
// time ascending.
type ChannelMsgResponse struct {
	Msgs []ChatMessage
}

func ParseChannelMsgResponse(m *Message) (*ChannelMsgResponse, error) {
	if err := expectCmd(m, CmdOk); err != nil {
		return nil, err
	}
	msgs, err := requireList(m.Args, "msgs", TagObject)
	if err != nil {
		return nil, err
	}
	resp := &ChannelMsgResponse{}
	for _, item := range msgs.Items() {
		obj, ok := item.(*Obj)
		if !ok {
			return nil, Errorf("Invalid contained type in key 'msgs'.")
		}
		sender, err := requireInt32(obj, "sender")
		if err != nil {
			return nil, err
		}
		when, err := requireUint32(obj, "when")
		if err != nil {
			return nil, err
		}
		cnt, err := requireString(obj, "cnt")
		if err != nil {
			return nil, err
		}
		resp.Msgs = append(resp.Msgs, ChatMessage{Sender: sender, When: when, Cnt: cnt})
	}
	return resp, nil
}

func (r *ChannelMsgResponse) Message() *Message {
	l := NewList(TagObject)
	for _, msg := range r.Msgs {
		obj := NewObj()
		obj.Set("sender", Int32(msg.Sender))
		obj.Set("when", Uint32(msg.When))
		obj.Set("cnt", String(msg.Cnt))
		l.Append(obj)
	}
	m := NewMessage(CmdOk)
	m.Args.Set("msgs", l)
	return m
}

func requireUint32(o *Obj, key string) (uint32, error) {
	v, ok := o.Get(key)
	if !ok {
		return 0, Errorf("Key '%s' not present.", key)
	}
	n, ok := v.(Uint32)
	if !ok {
		return 0, Errorf("Key '%s' doesn't have the correct type.", key)
	}
	return uint32(n), nil
}

// ChanDetailResponse is the chan_detail success reply. An empty Desc
// means the channel has no description.
type ChanDetailResponse struct {
	ID      int32
	Name    string
	OwnerID int32
	Desc    string
	Members []int32
}

func ParseChanDetailResponse(m *Message) (*ChanDetailResponse, error) {
	if err := expectCmd(m, CmdOk); err != nil {
		return nil, err
	}
	id, err := requireInt32(m.Args, "id")
	if err != nil {
		return nil, err
	}
	name, err := requireString(m.Args, "name")
	if err != nil {
		return nil, err
	}
	ownerID, err := requireInt32(m.Args, "owner_id")
	if err != nil {
		return nil, err
	}
	desc, err := requireString(m.Args, "desc")
	if err != nil {
		return nil, err
	}
	members, err := requireInt32List(m.Args, "members")
	if err != nil {
		return nil, err
	}
	return &ChanDetailResponse{ID: id, Name: name, OwnerID: ownerID, Desc: desc, Members: members}, nil
}

func (r *ChanDetailResponse) Message() *Message {
	m := NewMessage(CmdOk)
	m.Args.Set("id", Int32(r.ID))
	m.Args.Set("name", String(r.Name))
	m.Args.Set("owner_id", Int32(r.OwnerID))
	m.Args.Set("desc", String(r.Desc))
	m.Args.Set("members", int32List(r.Members))
	return m
}

// UsrDetailResponse is the usr_detail success reply.
type UsrDetailResponse struct {
	ID             int32
	Name           string
	MutualChannels []int32
}

func ParseUsrDetailResponse(m *Message) (*UsrDetailResponse, error) {
	if err := expectCmd(m, CmdOk); err != nil {
		return nil, err
	}
	id, err := requireInt32(m.Args, "id")
	if err != nil {
		return nil, err
	}
	name, err := requireString(m.Args, "name")
	if err != nil {
		return nil, err
	}
	mutual, err := requireInt32List(m.Args, "mutual_channels")
	if err != nil {
		return nil, err
	}
	return &UsrDetailResponse{ID: id, Name: name, MutualChannels: mutual}, nil
}

func (r *UsrDetailResponse) Message() *Message {
	m := NewMessage(CmdOk)
	m.Args.Set("id", Int32(r.ID))
	m.Args.Set("name", String(r.Name))
	m.Args.Set("mutual_channels", int32List(r.MutualChannels))
	return m
}

func requireInt32List(o *Obj, key string) ([]int32, error) {
	l, err := requireList(o, key, TagInt32)
	if err != nil {
		return nil, err
	}
	out := make([]int32, 0, l.Len())
	for _, item := range l.Items() {
		n, ok := item.(Int32)
		if !ok {
			return nil, Errorf("Invalid contained type in key '%s'.", key)
		}
		out = append(out, int32(n))
	}
	return out, nil
}

func int32List(vals []int32) *List {
	l := NewList(TagInt32)
	for _, v := range vals {
		l.Append(Int32(v))
	}
	return l
}
