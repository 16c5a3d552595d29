// Package client implements the dotchat client side: one TLS
// connection carrying strictly serialized request/response pairs.
package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"dotchat/internal/proto"
)

// Conn is a client connection to a dotchat server.
type Conn struct {
	logger  *zap.SugaredLogger
	conn    *tls.Conn
	pending []byte
	buf     []byte
}

// Dial connects to addr over TLS, verifying the server against the
// certificate in the given PEM file.
func Dial(logger *zap.SugaredLogger, certFile, addr string) (*Conn, error) {
	pem, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificate found in %s", certFile)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{RootCAs: pool})
	if err != nil {
		return nil, err
	}

	logger.Infof("Connected to %s", addr)

	return &Conn{
		logger: logger,
		conn:   conn,
		buf:    make([]byte, 4096),
	}, nil
}

// Close closes the underlying TLS session.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// roundTrip writes one request and blocks until the server's response
// decodes completely, re-framing partial transport reads.
func (c *Conn) roundTrip(m *proto.Message) (*proto.Message, error) {
	out, err := m.Encode()
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(out); err != nil {
		return nil, err
	}

	for {
		s := proto.NewBytestream(c.pending)
		resp, err := proto.Decode(s)
		if err == nil {
			c.pending = append(c.pending[:0], s.Bytes()...)
			return resp, nil
		}
		if !proto.IsWireKind(err, proto.Truncated) {
			return nil, err
		}

		n, err := c.conn.Read(c.buf)
		if n > 0 {
			c.pending = append(c.pending, c.buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("server closed the connection")
			}
			return nil, err
		}
	}
}

// checked runs a round-trip and classifies the reply, surfacing an err
// response's reason as the returned error.
func (c *Conn) checked(m *proto.Message) (*proto.Message, error) {
	resp, err := c.roundTrip(m)
	if err != nil {
		return nil, err
	}
	if err := proto.CheckReply(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Login authenticates and returns the session token.
func (c *Conn) Login(user, pass string) (int32, error) {
	req := proto.LoginRequest{User: user, Pass: pass}
	resp, err := c.checked(req.Message())
	if err != nil {
		return 0, err
	}
	tr, err := proto.ParseTokenResponse(resp)
	if err != nil {
		return 0, err
	}
	return tr.Token, nil
}

// Logout invalidates every session of the logged-in user.
func (c *Conn) Logout(token int32) error {
	req := proto.LogoutRequest{TokenRequest: proto.TokenRequest{Token: token}}
	_, err := c.checked(req.Message())
	return err
}

// Channels lists the channels the user is a member of.
func (c *Conn) Channels(token int32) ([]proto.ChannelShort, error) {
	req := proto.ChannelListRequest{TokenRequest: proto.TokenRequest{Token: token}}
	resp, err := c.checked(req.Message())
	if err != nil {
		return nil, err
	}
	list, err := proto.ParseChannelListResponse(resp)
	if err != nil {
		return nil, err
	}
	return list.Data, nil
}

// Messages returns the history of one channel, oldest first.
func (c *Conn) Messages(token, chanID int32) ([]proto.ChatMessage, error) {
	req := proto.ChannelMsgRequest{Token: token, ChanID: chanID}
	resp, err := c.checked(req.Message())
	if err != nil {
		return nil, err
	}
	msgs, err := proto.ParseChannelMsgResponse(resp)
	if err != nil {
		return nil, err
	}
	return msgs.Msgs, nil
}

// Send appends a message to a channel.
func (c *Conn) Send(token, chanID int32, content string) error {
	req := proto.MsgSendRequest{Token: token, ChanID: chanID, MsgCnt: content}
	_, err := c.checked(req.Message())
	return err
}

// ChannelDetail returns channel metadata and its member list.
func (c *Conn) ChannelDetail(token, chanID int32) (*proto.ChanDetailResponse, error) {
	req := proto.ChanDetailRequest{Token: token, ChanID: chanID}
	resp, err := c.checked(req.Message())
	if err != nil {
		return nil, err
	}
	return proto.ParseChanDetailResponse(resp)
}

// NewChannel creates a channel owned by the user; desc may be empty.
func (c *Conn) NewChannel(token int32, name, desc string) (int32, error) {
	req := proto.NewChanRequest{Token: token, Name: name, Desc: desc}
	resp, err := c.checked(req.Message())
	if err != nil {
		return 0, err
	}
	nc, err := proto.ParseNewChanResponse(resp)
	if err != nil {
		return 0, err
	}
	return nc.ID, nil
}

// SignUp registers a new account.
func (c *Conn) SignUp(name, pass string) error {
	req := proto.NewUsrRequest{Name: name, Pass: pass}
	_, err := c.checked(req.Message())
	return err
}

// ChangePass replaces the user's password. Existing sessions are
// revoked by the server.
func (c *Conn) ChangePass(token int32, newPass string) error {
	req := proto.ChPassRequest{Token: token, NewPass: newPass}
	_, err := c.checked(req.Message())
	return err
}

// UserDetail looks up a user and the channels shared with the caller.
func (c *Conn) UserDetail(token, uid int32) (*proto.UsrDetailResponse, error) {
	req := proto.UsrDetailRequest{Token: token, UID: uid}
	resp, err := c.checked(req.Message())
	if err != nil {
		return nil, err
	}
	return proto.ParseUsrDetailResponse(resp)
}

// Invite adds a user to a channel the caller owns.
func (c *Conn) Invite(token, uid, chanID int32) error {
	req := proto.InviteRequest{Token: token, UID: uid, ChanID: chanID}
	_, err := c.checked(req.Message())
	return err
}
