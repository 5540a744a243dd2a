package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adavila/ada/internal/agent"
	"github.com/adavila/ada/internal/llm"
	"github.com/adavila/ada/internal/tools"
)

const conversationPrefix = "tg:"

// Bot runs the long-poll loop and bridges Telegram chats to the agent.
// It implements tools.Messenger so side-effecting tools can push
// images back into the chat mid-turn.
type Bot struct {
	api         *API
	loop        *agent.Loop
	ownerChatID int64
	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewBot creates the Telegram transport. Only ownerChatID may talk to
// the assistant; everyone else gets a brush-off.
func NewBot(api *API, loop *agent.Loop, ownerChatID int64, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:         api,
		loop:        loop,
		ownerChatID: ownerChatID,
		pollTimeout: 30 * time.Second,
		logger:      logger,
	}
}

// Run polls for updates until the context is cancelled. Each message
// is handled in its own goroutine; per-conversation ordering is
// enforced downstream by the conversation store's turn lock.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	b.logger.Info("telegram transport started", "bot", me.Username, "owner_chat", b.ownerChatID)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, next, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("telegram getUpdates failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		offset = next

		for _, u := range updates {
			msg := u.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			if strings.TrimSpace(msg.Text) == "" && len(msg.Photo) == 0 {
				continue
			}
			go b.handleMessage(ctx, msg)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if chatID != b.ownerChatID {
		b.logger.Warn("ignoring message from unauthorized chat", "chat_id", chatID)
		_ = b.api.SendMessage(ctx, chatID, "Este bot es privado.")
		return
	}

	switch command(text) {
	case "/start", "/help":
		_ = b.api.SendMessage(ctx, chatID, "Hola, soy Ada. Escríbeme lo que necesites: recordatorios, agenda, correo, contactos...")
		return
	case "/id":
		_ = b.api.SendMessage(ctx, chatID, fmt.Sprintf("chat_id=%d", chatID))
		return
	}

	userMsg, err := b.userMessage(ctx, msg)
	if err != nil {
		b.logger.Error("telegram attachment download failed", "chat_id", chatID, "error", err)
		_ = b.api.SendMessage(ctx, chatID, "No he podido descargar la imagen, inténtalo otra vez.")
		return
	}

	conversationID := conversationPrefix + strconv.FormatInt(chatID, 10)
	turnCtx := tools.WithMessenger(ctx, b)

	reply := b.loop.Respond(turnCtx, conversationID, userMsg)
	if err := b.api.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.Error("telegram send failed", "chat_id", chatID, "error", err)
	}
}

// userMessage converts an inbound Telegram message into a model
// message. Photos become inline image blocks (largest size wins, the
// API sends them smallest first) with the caption as trailing text.
func (b *Bot) userMessage(ctx context.Context, msg *Message) (llm.Message, error) {
	if len(msg.Photo) == 0 {
		return llm.UserText(strings.TrimSpace(msg.Text)), nil
	}

	largest := msg.Photo[len(msg.Photo)-1]
	file, err := b.api.GetFile(ctx, largest.FileID)
	if err != nil {
		return llm.Message{}, err
	}
	data, err := b.api.DownloadFile(ctx, file.FilePath)
	if err != nil {
		return llm.Message{}, err
	}

	blocks := []llm.Block{
		llm.ImageBlock("image/jpeg", base64.StdEncoding.EncodeToString(data)),
	}
	caption := strings.TrimSpace(msg.Caption)
	if caption == "" {
		caption = strings.TrimSpace(msg.Text)
	}
	if caption != "" {
		blocks = append(blocks, llm.TextBlock(caption))
	}
	return llm.Message{Role: llm.RoleUser, Content: blocks}, nil
}

// command extracts a leading slash command, tolerating the
// "/cmd@BotName" form.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := text
	if i := strings.IndexAny(cmd, " \n\t"); i >= 0 {
		cmd = cmd[:i]
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// chatIDFromConversation reverses the conversation id mapping.
func chatIDFromConversation(conversationID string) (int64, error) {
	raw := strings.TrimPrefix(conversationID, conversationPrefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("conversation id %q is not a telegram chat", conversationID)
	}
	return id, nil
}

// SendText implements tools.Messenger.
func (b *Bot) SendText(ctx context.Context, conversationID, text string) error {
	chatID, err := chatIDFromConversation(conversationID)
	if err != nil {
		return err
	}
	return b.api.SendMessage(ctx, chatID, text)
}

// SendImage implements tools.Messenger.
func (b *Bot) SendImage(ctx context.Context, conversationID string, img tools.Image, caption string) error {
	chatID, err := chatIDFromConversation(conversationID)
	if err != nil {
		return err
	}
	return b.api.SendPhoto(ctx, chatID, img.Name, img.Data, caption)
}

// SendTyping implements tools.Messenger.
func (b *Bot) SendTyping(ctx context.Context, conversationID string) error {
	chatID, err := chatIDFromConversation(conversationID)
	if err != nil {
		return err
	}
	return b.api.SendChatAction(ctx, chatID, "typing")
}
