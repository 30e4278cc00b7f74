package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// InteractiveCLI is the line-oriented prompt over the command handler.
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the prompt loop and blocks until quit, EOF, or ctx
// cancellation.
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.handler.Bind(ctx)
	cli.printWelcome()

	if err := cli.handler.ResumeSync(); err != nil {
		cli.printf("Starting chat sync failed: %s\n", err)
	}

	if !cli.handler.cmdStatus().SignedIn && cli.handler.HasSavedCredentials() {
		cli.println("Signing in with saved credentials...")
		user, err := cli.handler.SignInSaved(ctx)
		if err != nil {
			cli.printf("Auto sign-in failed: %s\n", err)
		} else {
			cli.printf("Signed in as %s\n", user.Label())
		}
	}

	go cli.handleEvents(cli.handler.Events())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := cli.processCommand(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  Chat Bridge CLI")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")

	status := cli.handler.cmdStatus()
	cli.printf("Status: %s\n", status.Status)
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(SessionStatus); ok {
			cli.printf("Session: %s\n", s.Status)
			if s.SignedIn {
				cli.printf("  User:  %s\n", s.UserID)
				cli.printf("  Email: %s\n", s.Email)
			}
		}

	case "chats", "ls":
		if m, ok := result.(map[string]interface{}); ok {
			chats, _ := m["chats"].([]ChatInfo)
			cli.printf("%d chat(s):\n\n", len(chats))
			for i, chat := range chats {
				marks := ""
				if chat.Online {
					marks += " *online*"
				}
				if chat.UnreadCount > 0 {
					marks += fmt.Sprintf(" [%d unread]", chat.UnreadCount)
				}
				cli.printf("%d. %s%s\n", i+1, chat.Name, marks)
				if chat.LastMessageText != "" {
					preview := chat.LastMessageText
					if len(preview) > 50 {
						preview = preview[:50] + "..."
					}
					who := ""
					if chat.LastFromMe {
						who = "me: "
					}
					cli.printf("   %s%s\n", who, preview)
				}
				if !chat.LastMessageTime.IsZero() {
					cli.printf("   %s\n", chat.LastMessageTime.Format("2006-01-02 15:04"))
				}
			}
		}

	case "open", "msg":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("%d message(s):\n\n", len(messages))
			for _, msg := range messages {
				sender := msg.SenderID
				if msg.IsFromMe {
					sender = "Me"
				}
				cli.printf("[%s] %s:\n", msg.Timestamp.Format("2006-01-02 15:04"), sender)
				cli.printf("  %s\n", msg.Text)
			}
		}

	case "send":
		if msg, ok := result.(MessageInfo); ok {
			cli.printf("Message sent!\n")
			cli.printf("  ID: %s\n", msg.ID)
			cli.printf("  Time: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			users, _ := m["users"].([]UserInfo)
			cli.printf("%d user(s) found:\n\n", len(users))
			for i, u := range users {
				name := u.DisplayName
				if name == "" {
					name = u.Email
				}
				cli.printf("%d. %s <%s>\n", i+1, name, u.Email)
				cli.printf("   ID: %s\n", u.ID)
			}
		}

	case "profile":
		if u, ok := result.(UserInfo); ok {
			cli.printf("Profile:\n")
			cli.printf("  Name:  %s\n", u.DisplayName)
			cli.printf("  Email: %s\n", u.Email)
			if u.PhotoURL != "" {
				cli.printf("  Photo: %s\n", u.PhotoURL)
			}
			cli.printf("  ID:    %s\n", u.ID)
			return
		}
		if m, ok := result.(map[string]string); ok {
			cli.println(m["message"])
		}

	default:
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				if id, exists := m["chat_id"]; exists {
					cli.printf("  Chat ID: %s\n", id)
				}
				return
			}
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "chats_updated":
			if count, ok := event.Data.(int); ok {
				cli.printf("\n[Chat list updated: %d chat(s)]\n", count)
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
