package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"dotchat/internal/client"
	"dotchat/internal/proto"
)

func usage() {
	fmt.Printf("Usage: %s <certificate PEM file> <IP address> <port number>\n", os.Args[0])
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "-h" {
		usage()
		return
	}
	if len(os.Args) != 4 {
		usage()
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	conn, err := client.Dial(sugar, os.Args[1], net.JoinHostPort(os.Args[2], os.Args[3]))
	if err != nil {
		sugar.Fatalf("Cannot connect: %v", err)
	}
	defer conn.Close()

	c := &cli{
		in:   bufio.NewScanner(os.Stdin),
		conn: conn,
	}
	c.loginMenu()
}

type cli struct {
	in   *bufio.Scanner
	conn *client.Conn
}

func (c *cli) prompt(msg string) string {
	fmt.Print(msg)
	if !c.in.Scan() {
		fmt.Println()
		os.Exit(0)
	}
	return strings.TrimSpace(c.in.Text())
}

func (c *cli) promptPass(msg string) string {
	fmt.Print(msg)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err == nil {
			return string(pass)
		}
	}
	if !c.in.Scan() {
		fmt.Println()
		os.Exit(0)
	}
	return strings.TrimSpace(c.in.Text())
}

func (c *cli) yesNo(msg string) bool {
	for {
		switch c.prompt(msg + " (y/n)? ") {
		case "y":
			return true
		case "n":
			return false
		}
		fmt.Println("Please answer with y (yes) or n (no).")
	}
}

// failed prints a request failure. A protocol error keeps the session
// usable; anything else (codec, transport) ends the interaction.
func failed(err error) (fatal bool) {
	var pe *proto.ProtoError
	if errors.As(err, &pe) {
		fmt.Println("Action failed!")
		fmt.Printf("  Reason: %s\n", pe.Reason)
		return false
	}
	fmt.Printf("Cannot parse the server response: %v\n", err)
	return true
}

func (c *cli) loginMenu() {
	fmt.Println("You are currently not logged in.")
	fmt.Println("  -> Use .l to log into an existing account,")
	fmt.Println("  -> Use .s to create a new account, or")
	fmt.Println("  -> Use .q to quit.")

	for {
		switch c.prompt("Your choice? ") {
		case ".l":
			if token, ok := c.login(); ok {
				if !c.mainMenu(token) {
					return
				}
			}
		case ".s":
			c.signUp()
		case ".q":
			return
		default:
			fmt.Println("Unrecognized command.")
		}
	}
}

func (c *cli) login() (int32, bool) {
	user := c.prompt("Username: ")
	pass := c.promptPass("Password: ")

	token, err := c.conn.Login(user, pass)
	if err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return 0, false
	}
	return token, true
}

func (c *cli) signUp() {
	name := c.prompt("Username: ")
	pass := c.promptPass("Password: ")

	if err := c.conn.SignUp(name, pass); err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return
	}
	fmt.Println("You're signed up now. Use .l to log in.")
}

// mainMenu returns false when the user quit the program.
func (c *cli) mainMenu(token int32) bool {
	fmt.Println("This is the main menu.")
	fmt.Println("  -> Use .cs to get a channel list,")
	fmt.Println("  -> Use .cc to create a new channel,")
	fmt.Println("  -> Use .cp to change your password,")
	fmt.Println("  -> Use .l to log out, or")
	fmt.Println("  -> Use .q to quit.")

	for {
		switch c.prompt("What do you want to do? ") {
		case ".cs":
			if !c.channelList(token) {
				return false
			}
		case ".cc":
			c.newChannel(token)
		case ".cp":
			if c.changePass(token) {
				// sessions are revoked after a password change
				fmt.Println("Password changed; please log in again.")
				return true
			}
		case ".l":
			if err := c.conn.Logout(token); err != nil && failed(err) {
				os.Exit(1)
			}
			return true
		case ".q":
			if c.yesNo("Log out before quitting") {
				if err := c.conn.Logout(token); err != nil && failed(err) {
					os.Exit(1)
				}
			}
			return false
		default:
			fmt.Println("Unrecognized command. Please try again.")
		}
	}
}

func (c *cli) channelList(token int32) bool {
	channels, err := c.conn.Channels(token)
	if err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return true
	}
	if len(channels) == 0 {
		fmt.Println("You are not a member of any channel.")
		return true
	}
	for _, chn := range channels {
		fmt.Printf("  -> Channel #%d: %s\n", chn.ID, chn.Name)
	}

	choice := c.prompt("Enter a channel ID to open it, or press enter to go back: ")
	if choice == "" {
		return true
	}
	id, err := strconv.ParseInt(choice, 10, 32)
	if err != nil {
		fmt.Println("Not a valid channel ID.")
		return true
	}
	return c.channelMenu(token, int32(id))
}

func (c *cli) newChannel(token int32) {
	name := c.prompt("Channel name: ")
	desc := c.prompt("Description (empty for none): ")

	id, err := c.conn.NewChannel(token, name, desc)
	if err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return
	}
	fmt.Printf("Created channel #%d.\n", id)
}

func (c *cli) changePass(token int32) bool {
	newPass := c.promptPass("New password: ")
	if err := c.conn.ChangePass(token, newPass); err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return false
	}
	return true
}

// channelMenu returns false when the user quit the program.
func (c *cli) channelMenu(token, chanID int32) bool {
	fmt.Println("Actions for this channel:")
	fmt.Println("  -> Use .m to get all messages in this channel,")
	fmt.Println("  -> Use .s to send a message,")
	fmt.Println("  -> Use .u to view the members of this channel,")
	fmt.Println("  -> Use .i to invite another user here, or")
	fmt.Println("  -> Use .b to go back.")

	for {
		switch c.prompt("What do you want to do? ") {
		case ".m":
			c.showMessages(token, chanID)
		case ".s":
			content := c.prompt("Message: ")
			if err := c.conn.Send(token, chanID, content); err != nil && failed(err) {
				os.Exit(1)
			}
		case ".u":
			c.showDetail(token, chanID)
		case ".i":
			c.inviteUser(token, chanID)
		case ".b":
			return true
		case ".q":
			return false
		default:
			fmt.Println("Unrecognized command. Please try again.")
		}
	}
}

func (c *cli) showMessages(token, chanID int32) {
	msgs, err := c.conn.Messages(token, chanID)
	if err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return
	}
	if len(msgs) == 0 {
		fmt.Println("No messages in this channel yet.")
		return
	}
	for _, msg := range msgs {
		when := time.UnixMilli(int64(msg.When)).Format("15:04:05")
		fmt.Printf("  [%s] user #%d: %s\n", when, msg.Sender, msg.Cnt)
	}
}

func (c *cli) showDetail(token, chanID int32) {
	detail, err := c.conn.ChannelDetail(token, chanID)
	if err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return
	}
	fmt.Printf("Channel #%d: %s (owner: user #%d)\n", detail.ID, detail.Name, detail.OwnerID)
	if detail.Desc != "" {
		fmt.Printf("  %s\n", detail.Desc)
	}
	fmt.Println("Members:")
	for _, uid := range detail.Members {
		if user, err := c.conn.UserDetail(token, uid); err == nil {
			fmt.Printf("  -> user #%d: %s\n", uid, user.Name)
		} else {
			fmt.Printf("  -> user #%d\n", uid)
		}
	}
}

func (c *cli) inviteUser(token, chanID int32) {
	choice := c.prompt("Enter user ID: ")
	uid64, err := strconv.ParseInt(choice, 10, 32)
	if err != nil {
		fmt.Println("Not a valid user ID.")
		return
	}
	uid := int32(uid64)

	detail, err := c.conn.UserDetail(token, uid)
	if err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return
	}
	if !c.yesNo(fmt.Sprintf("Confirm adding user #%d (%s)", detail.ID, detail.Name)) {
		return
	}
	if err := c.conn.Invite(token, uid, chanID); err != nil {
		if failed(err) {
			os.Exit(1)
		}
		return
	}
	fmt.Println("User invited.")
}
