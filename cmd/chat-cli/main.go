// Command chat-cli is a terminal client for the chat server.
//
//	chat-cli -server http://localhost:5001 -email ann@example.com -password ...
//
// Commands read from stdin:
//
//	/users          list contacts with their online state
//	/open <email>   open the conversation with a contact
//	/older          load older messages of the open conversation
//	/close          close the conversation
//	/quit           exit
//
// Any other line is sent to the open conversation.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/weiawesome/wes-io-chat/pkg/chatclient"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

func main() {
	serverURL := flag.String("server", "http://localhost:5001", "chat server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", os.Getenv("CHAT_PASSWORD"), "account password (or CHAT_PASSWORD)")
	signupName := flag.String("signup", "", "create the account with this full name before logging in")
	logLevel := flag.String("log-level", "warn", "client log level")
	flag.Parse()

	pkglog.Init(pkglog.Config{Level: *logLevel, Pretty: true, Output: os.Stderr, ServiceName: "chat-cli"})

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "-email and -password are required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *serverURL, *email, *password, *signupName, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, serverURL, email, password, signupName string, in io.Reader, out io.Writer) error {
	api, err := chatclient.New(serverURL)
	if err != nil {
		return err
	}

	if signupName != "" {
		_, err = api.Signup(ctx, signupName, email, password)
	} else {
		_, err = api.Login(ctx, email, password)
	}
	if err != nil {
		return err
	}
	self := api.Self()
	fmt.Fprintf(out, "signed in as %s <%s>\n", self.FullName, self.Email)

	sock := chatclient.NewSocket(api.SocketURL(), api.Token(), chatclient.SocketConfig{})
	presence := chatclient.NewPresenceController(sock, self.ID)
	defer presence.Close()
	contacts := chatclient.NewContactsController(api, sock)
	defer contacts.Close()
	conv := chatclient.NewConversationController(api, sock, 20)
	defer conv.Close()

	if err := contacts.Load(ctx); err != nil {
		return err
	}

	name := func(id string) string {
		if id == self.ID {
			return "me"
		}
		if u, ok := contacts.Get(id); ok {
			return u.FullName
		}
		return id
	}

	presence.OnChange(func(others []string) {
		names := make([]string, len(others))
		for i, id := range others {
			names[i] = name(id)
		}
		fmt.Fprintf(out, "* online: %s\n", strings.Join(names, ", "))
	})
	contacts.OnChange(func(u chatclient.User) {
		fmt.Fprintf(out, "* %s updated their profile\n", u.FullName)
	})
	sock.Subscribe(wire.EventNewMessage, func(p wire.Payload) {
		m := p.(wire.Message)
		if m.SenderID != conv.Partner() {
			fmt.Fprintf(out, "* new message from %s\n", name(m.SenderID))
			return
		}
		fmt.Fprintf(out, "%s: %s\n", name(m.SenderID), describe(m))
	})

	sockErr := make(chan error, 1)
	go func() { sockErr <- sock.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sockErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, strings.TrimSpace(line), out, presence, contacts, conv, name); quit {
				return api.Logout(ctx)
			}
		}
	}
}

func handleLine(
	ctx context.Context,
	line string,
	out io.Writer,
	presence *chatclient.PresenceController,
	contacts *chatclient.ContactsController,
	conv *chatclient.ConversationController,
	name func(string) string,
) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
	case "/quit":
		return true
	case "/users":
		for _, u := range contacts.Contacts() {
			state := "offline"
			if presence.IsOnline(u.ID) {
				state = "online"
			}
			fmt.Fprintf(out, "  %-24s %-32s %s\n", u.FullName, u.Email, state)
		}
	case "/open":
		var partner string
		for _, u := range contacts.Contacts() {
			if strings.EqualFold(u.Email, strings.TrimSpace(arg)) {
				partner = u.ID
			}
		}
		if partner == "" {
			fmt.Fprintf(out, "! no contact %q\n", arg)
			return false
		}
		if err := conv.Select(ctx, partner); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			return false
		}
		fmt.Fprintf(out, "--- conversation with %s ---\n", name(partner))
		for _, m := range conv.Messages() {
			fmt.Fprintf(out, "%s: %s\n", name(m.SenderID), describe(m))
		}
	case "/older":
		before := len(conv.Messages())
		if _, err := conv.LoadOlder(ctx); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			return false
		}
		msgs := conv.Messages()
		for _, m := range msgs[:len(msgs)-before] {
			fmt.Fprintf(out, "%s: %s\n", name(m.SenderID), describe(m))
		}
	case "/close":
		conv.Close()
	default:
		if _, err := conv.Send(ctx, line, ""); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
	return false
}

func describe(m wire.Message) string {
	switch {
	case m.Text != "" && m.ImageURL != "":
		return m.Text + " [image " + m.ImageURL + "]"
	case m.ImageURL != "":
		return "[image " + m.ImageURL + "]"
	default:
		return m.Text
	}
}
