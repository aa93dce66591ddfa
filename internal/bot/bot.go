package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/classifier"
	"github.com/xaenox/unimind/internal/conversation"
	"github.com/xaenox/unimind/internal/models"
	"github.com/xaenox/unimind/internal/tools"
)

type conversationService interface {
	SendMessage(ctx context.Context, tenantID, message, threadID string) (*conversation.Reply, error)
}

type toolService interface {
	Call(ctx context.Context, tenantID, name string, args json.RawMessage) (any, error)
}

// sender is the part of tgbotapi.BotAPI the handlers need.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var errBadNote = errors.New("usage: /note <title> | <content> #tags")

type Bot struct {
	api           *tgbotapi.BotAPI
	sender        sender
	conversations conversationService
	tools         toolService
	classifier    classifier.Classifier
	logger        *zap.Logger

	mu      sync.Mutex
	threads map[int64]string // telegram user id -> current thread id
}

func New(token string, conversations conversationService, toolsSvc toolService, clf classifier.Classifier, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, conversations, toolsSvc, clf, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, conversations conversationService, toolsSvc toolService, clf classifier.Classifier, logger *zap.Logger) *Bot {
	return &Bot{
		sender:        s,
		conversations: conversations,
		tools:         toolsSvc,
		classifier:    clf,
		logger:        logger,
		threads:       make(map[int64]string),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// tenantID scopes every Telegram user to their own notes and threads.
func tenantID(userID int64) string {
	return "telegram:" + strconv.FormatInt(userID, 10)
}

func (b *Bot) currentThread(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	threadID, ok := b.threads[userID]
	if !ok {
		threadID = uuid.NewString()
		b.threads[userID] = threadID
	}
	return threadID
}

func (b *Bot) resetThread(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	threadID := uuid.NewString()
	b.threads[userID] = threadID
	return threadID
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		b.sendMessage(message.Chat.ID, "I can only read text for now.")
		return
	}

	tenant := tenantID(message.From.ID)
	reply, err := b.conversations.SendMessage(ctx, tenant, content, b.currentThread(message.From.ID))
	if err != nil {
		b.logger.Error("Failed to answer message",
			zap.Error(err),
			zap.String("tenant_id", tenant))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't answer right now. Please try again.")
		return
	}
	if !reply.Persisted {
		b.logger.Warn("Reply was not saved to history",
			zap.String("tenant_id", tenant),
			zap.String("thread_id", reply.ThreadID))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, reply.Text)
	msg.ReplyToMessageID = message.MessageID
	b.send(msg)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "new":
		b.resetThread(message.From.ID)
		b.sendMessage(message.Chat.ID, "Started a new conversation.")
	case "note":
		b.handleNote(ctx, message)
	case "search":
		b.handleSearch(ctx, message)
	case "notes":
		b.handleNotes(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Unimind! 🧠
Talk to me like you would to an assistant, and keep your notes here too.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/new - Start a new conversation
/note <title> | <content> #tags - Save a note
/search <text> - Find notes containing text
/notes - Show your latest notes

Any other message continues the current conversation.`

	b.sendMessage(message.Chat.ID, help)
}

// parseNote splits "/note" arguments into save_note input. Hashtags in the
// content become tags alongside the classifier's suggestions.
func parseNote(args string, clf classifier.Classifier) (tools.SaveNoteInput, error) {
	title, content, ok := strings.Cut(args, "|")
	title = strings.TrimSpace(title)
	if !ok || title == "" {
		return tools.SaveNoteInput{}, errBadNote
	}

	tags := clf.ClassifyContent(title + " " + content)
	content = classifier.StripHashtags(content)
	if content == "" {
		return tools.SaveNoteInput{}, errBadNote
	}

	return tools.SaveNoteInput{Title: title, Content: content, Tags: tags}, nil
}

func (b *Bot) handleNote(ctx context.Context, message *tgbotapi.Message) {
	in, err := parseNote(message.CommandArguments(), b.classifier)
	if err != nil {
		b.sendMessage(message.Chat.ID, err.Error())
		return
	}

	result, err := b.callTool(ctx, message.From.ID, tools.SaveNote, in)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your note. Please try again.")
		return
	}

	saved, _ := result.(tools.SaveNoteResult)
	b.logger.Info("Note saved from Telegram",
		zap.String("tenant_id", tenantID(message.From.ID)),
		zap.String("note_id", saved.NoteID))

	text := fmt.Sprintf("*Saved:* %s\n", escapeMarkdown(in.Title))
	if len(in.Tags) > 0 {
		text += fmt.Sprintf("*Tags:* %s\n", formatTags(in.Tags))
	}
	b.sendMarkdown(message.Chat.ID, text)
}

func (b *Bot) handleSearch(ctx context.Context, message *tgbotapi.Message) {
	query := strings.TrimSpace(message.CommandArguments())
	if query == "" {
		b.sendMessage(message.Chat.ID, "usage: /search <text>")
		return
	}

	result, err := b.callTool(ctx, message.From.ID, tools.SearchNotes, tools.SearchNotesInput{Query: query})
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, the search failed. Please try again.")
		return
	}

	found, _ := result.(tools.SearchNotesResult)
	if found.Count == 0 {
		b.sendMessage(message.Chat.ID, "No notes match.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatNotes("Found", found.Notes))
}

func (b *Bot) handleNotes(ctx context.Context, message *tgbotapi.Message) {
	result, err := b.callTool(ctx, message.From.ID, tools.ListNotes, tools.ListNotesInput{Limit: 5})
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your notes.")
		return
	}

	listed, _ := result.(tools.ListNotesResult)
	if len(listed.Notes) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any notes yet.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatNotes("Your notes", listed.Notes))
}

// callTool runs a tool through the dispatcher so the bot gets the same
// validation as HTTP callers.
func (b *Bot) callTool(ctx context.Context, userID int64, name tools.Name, args any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	tenant := tenantID(userID)
	result, err := b.tools.Call(ctx, tenant, string(name), raw)
	if err != nil {
		b.logger.Error("Tool call failed",
			zap.Error(err),
			zap.String("tool", string(name)),
			zap.String("tenant_id", tenant))
		return nil, err
	}
	return result, nil
}

func formatTags(tags []string) string {
	formatted := make([]string, len(tags))
	for i, tag := range tags {
		formatted[i] = escapeMarkdown("#" + strings.ReplaceAll(tag, " ", "_"))
	}
	return strings.Join(formatted, " ")
}

func formatNotes(heading string, notes []models.Note) string {
	var sb strings.Builder
	sb.WriteString("*" + escapeMarkdown(heading) + ":*\n\n")
	for _, note := range notes {
		sb.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(note.Title)))
		sb.WriteString(fmt.Sprintf("_%s_\n", escapeMarkdown(note.Content)))
		if len(note.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("Tags: %s\n", formatTags(note.Tags)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", msg.ChatID))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	b.send(msg)
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, "⚠️ "+text))
}
