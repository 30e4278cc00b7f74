package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/simplify-chat/chat-bridge/internal/auth"
	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/logger"
	"github.com/simplify-chat/chat-bridge/internal/service"
)

// CommandHandler executes CLI commands against the services and holds
// the session-scoped view state: the latest chat list snapshot and the
// last search results, so commands can address entries by number.
type CommandHandler struct {
	authSvc *service.AuthService
	chatSvc *service.ChatService
	userSvc *service.UserService
	session *auth.Session
	log     zerolog.Logger

	runCtx context.Context
	events chan Event

	mu         gosync.Mutex
	chats      []domain.ChatWithUser
	lastSearch []*domain.User
	syncCancel context.CancelFunc
}

func NewCommandHandler(authSvc *service.AuthService, chatSvc *service.ChatService, userSvc *service.UserService, session *auth.Session) *CommandHandler {
	return &CommandHandler{
		authSvc: authSvc,
		chatSvc: chatSvc,
		userSvc: userSvc,
		session: session,
		log:     logger.Module("cli"),
		runCtx:  context.Background(),
		events:  make(chan Event, 16),
	}
}

// Bind sets the context that outlives individual commands. Live
// subscriptions started by commands are tied to it.
func (h *CommandHandler) Bind(ctx context.Context) { h.runCtx = ctx }

// Events delivers notifications for display while the prompt is idle.
func (h *CommandHandler) Events() <-chan Event { return h.events }

// Command is a parsed CLI command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses an input line (e.g. "/send 2 hello there").
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}
	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}
	parts := strings.Fields(input)
	return &Command{Name: strings.TrimPrefix(parts[0], "/"), Args: parts[1:]}, nil
}

// Execute runs a command and returns the result for display.
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus(), nil
	case "login":
		return h.cmdLogin(ctx, cmd.Args)
	case "signup":
		return h.cmdSignUp(ctx, cmd.Args)
	case "logout":
		return h.cmdLogout(ctx)
	case "reset":
		return h.cmdReset(ctx, cmd.Args)
	case "chats", "ls":
		return h.cmdChats(ctx)
	case "open", "msg":
		return h.cmdOpen(ctx, cmd.Args)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "read":
		return h.cmdRead(ctx, cmd.Args)
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "start":
		return h.cmdStart(ctx, cmd.Args)
	case "profile":
		return h.cmdProfile(ctx, cmd.Args)
	case "online":
		return h.cmdOnline(ctx, true)
	case "offline":
		return h.cmdOnline(ctx, false)
	case "presence":
		return h.cmdPresence(cmd.Args)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Account:
  /login <email> <password> [save]     Sign in (append "save" to remember)
  /signup <email> <password> [name]    Create an account
  /logout                              Sign out and wipe the local cache
  /reset <email>                       Send a password reset email
  /status, /s                          Show session status
  /profile [name [photo_url]]          Show or update your profile

Chats:
  /chats, /ls                          List chats (newest activity first)
  /open, /msg <n|chat_id>              Show a chat's messages (marks them read)
  /send <n|chat_id> <text>             Send a message
  /read <n|chat_id>                    Mark a chat's messages as read
  /search <email_prefix>               Find users by email
  /start <n|user_id>                   Start a chat (n from last /search)

Presence:
  /online                              Publish yourself as online
  /offline                             Publish yourself as offline
  /presence <user_id>                  Show a user's presence

Other:
  /help, /h                            Show this help
  /quit, /exit, /q                     Exit`
	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() SessionStatus {
	if !h.session.Authenticated() {
		return SessionStatus{Status: "not signed in"}
	}
	chats, _ := h.snapshot()
	return SessionStatus{
		SignedIn: true,
		UserID:   h.session.UserID(),
		Email:    h.session.Email(),
		Status:   fmt.Sprintf("signed in, %d chat(s) synced", len(chats)),
	}
}

func (h *CommandHandler) cmdLogin(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /login <email> <password> [save]")
	}
	remember := len(args) > 2 && args[2] == "save"
	user, err := h.authSvc.SignIn(ctx, args[0], args[1], remember)
	if err != nil {
		return nil, err
	}
	if err := h.startSync(); err != nil {
		return nil, err
	}
	if err := h.chatSvc.SetOnline(ctx, true); err != nil {
		h.log.Warn().Err(err).Msg("publishing online presence failed")
	}
	return map[string]string{"message": fmt.Sprintf("Signed in as %s", user.Label())}, nil
}

// SignInSaved signs in with remembered credentials and starts syncing.
func (h *CommandHandler) SignInSaved(ctx context.Context) (*domain.User, error) {
	user, err := h.authSvc.SignInSaved(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.startSync(); err != nil {
		return nil, err
	}
	if err := h.chatSvc.SetOnline(ctx, true); err != nil {
		h.log.Warn().Err(err).Msg("publishing online presence failed")
	}
	return user, nil
}

// ResumeSync starts the chat subscription for a session established
// before the prompt came up, such as the demo backend's account.
func (h *CommandHandler) ResumeSync() error {
	if !h.session.Authenticated() {
		return nil
	}
	return h.startSync()
}

// HasSavedCredentials reports whether auto sign-in is possible.
func (h *CommandHandler) HasSavedCredentials() bool {
	return h.authSvc.HasSavedCredentials()
}

func (h *CommandHandler) cmdSignUp(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /signup <email> <password> [display_name]")
	}
	displayName := ""
	if len(args) > 2 {
		displayName = strings.Join(args[2:], " ")
	}
	user, err := h.authSvc.SignUp(ctx, args[0], args[1], displayName, false)
	if err != nil {
		return nil, err
	}
	if err := h.startSync(); err != nil {
		return nil, err
	}
	if err := h.chatSvc.SetOnline(ctx, true); err != nil {
		h.log.Warn().Err(err).Msg("publishing online presence failed")
	}
	return map[string]string{"message": fmt.Sprintf("Account created for %s", user.Label())}, nil
}

func (h *CommandHandler) cmdLogout(ctx context.Context) (interface{}, error) {
	if err := h.chatSvc.SetOnline(ctx, false); err != nil {
		h.log.Warn().Err(err).Msg("publishing offline presence failed")
	}
	h.stopSync()
	if err := h.authSvc.SignOut(ctx); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Signed out"}, nil
}

func (h *CommandHandler) cmdReset(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /reset <email>")
	}
	if err := h.authSvc.SendPasswordReset(ctx, args[0]); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Password reset email sent"}, nil
}

func (h *CommandHandler) cmdChats(ctx context.Context) (interface{}, error) {
	chats, ok := h.snapshot()
	if !ok {
		return nil, fmt.Errorf("not signed in. Use /login first")
	}
	result := make([]ChatInfo, len(chats))
	for i := range chats {
		result[i] = chatInfoFrom(&chats[i])
	}
	return map[string]interface{}{"chats": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdOpen(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /open <n|chat_id>")
	}
	chatID, err := h.resolveChat(args[0])
	if err != nil {
		return nil, err
	}
	msgs, err := h.chatSvc.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	// Opening a chat counts as reading it.
	if err := h.chatSvc.MarkChatRead(ctx, chatID); err != nil {
		h.log.Warn().Err(err).Str("chat", chatID).Msg("marking chat read failed")
	}
	me := h.currentUserID()
	result := make([]MessageInfo, len(msgs))
	for i := range msgs {
		result[i] = messageInfoFrom(&msgs[i], me)
	}
	return map[string]interface{}{"chat_id": chatID, "messages": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /send <n|chat_id> <text>")
	}
	chatID, err := h.resolveChat(args[0])
	if err != nil {
		return nil, err
	}
	msg, err := h.chatSvc.SendMessage(ctx, chatID, strings.Join(args[1:], " "))
	if err != nil {
		if msg != nil {
			// Delivered but the chat pointer lagged; the next snapshot
			// repairs the list ordering.
			h.log.Warn().Err(err).Str("message", msg.ID).Msg("chat pointer update failed")
			return messageInfoFrom(msg, h.currentUserID()), nil
		}
		return nil, err
	}
	return messageInfoFrom(msg, h.currentUserID()), nil
}

func (h *CommandHandler) cmdRead(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /read <n|chat_id>")
	}
	chatID, err := h.resolveChat(args[0])
	if err != nil {
		return nil, err
	}
	if err := h.chatSvc.MarkChatRead(ctx, chatID); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Chat marked as read"}, nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <email_prefix>")
	}
	users, err := h.userSvc.Search(ctx, args[0])
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.lastSearch = users
	h.mu.Unlock()

	result := make([]UserInfo, len(users))
	for i, u := range users {
		result[i] = UserInfo{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
	}
	return map[string]interface{}{"users": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdStart(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /start <n|user_id>")
	}
	userID, err := h.resolveUser(args[0])
	if err != nil {
		return nil, err
	}
	chat, err := h.chatSvc.StartChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"message": "Chat ready", "chat_id": chat.ID}, nil
}

func (h *CommandHandler) cmdProfile(ctx context.Context, args []string) (interface{}, error) {
	if len(args) == 0 {
		user, err := h.userSvc.GetUser(ctx, h.currentUserID())
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("profile not available yet")
		}
		return UserInfo{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName, PhotoURL: user.PhotoURL}, nil
	}

	photoURL := ""
	if len(args) > 1 {
		photoURL = args[len(args)-1]
		args = args[:len(args)-1]
	}
	if err := h.userSvc.UpdateProfile(ctx, strings.Join(args, " "), photoURL); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Profile updated"}, nil
}

func (h *CommandHandler) cmdOnline(ctx context.Context, online bool) (interface{}, error) {
	if err := h.chatSvc.SetOnline(ctx, online); err != nil {
		return nil, err
	}
	state := "offline"
	if online {
		state = "online"
	}
	return map[string]string{"message": "You are now " + state}, nil
}

func (h *CommandHandler) cmdPresence(args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /presence <user_id>")
	}
	ctx, cancel := context.WithTimeout(h.runCtx, 5*time.Second)
	defer cancel()

	statuses, err := h.chatSvc.LiveUserStatus(ctx, args[0])
	if err != nil {
		return nil, err
	}
	select {
	case status, ok := <-statuses:
		if !ok {
			return nil, fmt.Errorf("presence stream closed")
		}
		return status, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("presence lookup timed out")
	}
}

// startSync subscribes to the signed-in user's live chat list and keeps
// the handler's snapshot current.
func (h *CommandHandler) startSync() error {
	h.stopSync()

	ctx, cancel := context.WithCancel(h.runCtx)
	rows, err := h.chatSvc.LiveChats(ctx)
	if err != nil {
		cancel()
		return err
	}

	h.mu.Lock()
	h.syncCancel = cancel
	h.mu.Unlock()

	go func() {
		for snapshot := range rows {
			h.mu.Lock()
			h.chats = snapshot
			h.mu.Unlock()
			h.emit(Event{Type: "chats_updated", Timestamp: time.Now(), Data: len(snapshot)})
		}
	}()
	return nil
}

func (h *CommandHandler) stopSync() {
	h.mu.Lock()
	cancel := h.syncCancel
	h.syncCancel = nil
	h.chats = nil
	h.lastSearch = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *CommandHandler) snapshot() ([]domain.ChatWithUser, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.chats, h.syncCancel != nil
}

func (h *CommandHandler) emit(event Event) {
	select {
	case h.events <- event:
	default:
	}
}

func (h *CommandHandler) currentUserID() string {
	return h.session.UserID()
}

// resolveChat accepts either a 1-based index into the current chat list
// or a literal chat id.
func (h *CommandHandler) resolveChat(arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		chats, ok := h.snapshot()
		if !ok {
			return "", fmt.Errorf("not signed in. Use /login first")
		}
		if n < 1 || n > len(chats) {
			return "", fmt.Errorf("chat %d out of range, have %d", n, len(chats))
		}
		return chats[n-1].Chat.ID, nil
	}
	return arg, nil
}

// resolveUser accepts a 1-based index into the last search results or a
// literal user id.
func (h *CommandHandler) resolveUser(arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		h.mu.Lock()
		users := h.lastSearch
		h.mu.Unlock()
		if n < 1 || n > len(users) {
			return "", fmt.Errorf("user %d out of range, have %d", n, len(users))
		}
		return users[n-1].ID, nil
	}
	return arg, nil
}

func chatInfoFrom(row *domain.ChatWithUser) ChatInfo {
	return ChatInfo{
		ChatID:          row.Chat.ID,
		Name:            row.User.Label(),
		Email:           row.User.Email,
		Online:          row.IsOnline,
		UnreadCount:     row.UnreadCount,
		LastMessageText: row.LastMessageText,
		LastFromMe:      row.LastMessageSentByMe,
		LastMessageTime: row.LastMessageTime,
	}
}

func messageInfoFrom(msg *domain.Message, currentUserID string) MessageInfo {
	return MessageInfo{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		IsFromMe:  currentUserID != "" && msg.SenderID == currentUserID,
		IsRead:    msg.IsRead,
	}
}
