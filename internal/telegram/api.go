// Package telegram is the primary transport: a long-polling Bot API
// client restricted to the owner's chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// API is a minimal Telegram Bot API client covering what the
// assistant needs: getMe, getUpdates, sendMessage, sendChatAction and
// sendPhoto.
type API struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewAPI creates a Bot API client.
func NewAPI(httpClient *http.Client, baseURL, token string) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &API{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Update is one getUpdates entry.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64       `json:"message_id"`
	Chat      *Chat       `json:"chat,omitempty"`
	From      *User       `json:"from,omitempty"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// PhotoSize is one resolution of an inbound photo. Telegram sends them
// smallest first.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// File is the getFile result used to download attachments.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// User is a Telegram account.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot,omitempty"`
	Username string `json:"username,omitempty"`
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

func (api *API) call(ctx context.Context, method string, body []byte, contentType string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", api.baseURL, api.token, method)

	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	}
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := api.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram %s: ok=false", method)
	}
	return out.Result, nil
}

// GetMe returns the bot account, used to verify the token at startup.
func (api *API) GetMe(ctx context.Context) (*User, error) {
	result, err := api.call(ctx, "getMe", nil, "")
	if err != nil {
		return nil, err
	}
	var me User
	if err := json.Unmarshal(result, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates past offset and returns them with
// the next offset to use.
func (api *API) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	method := fmt.Sprintf("getUpdates?timeout=%d", secs)
	if offset > 0 {
		method += fmt.Sprintf("&offset=%d", offset)
	}

	// The HTTP round trip must outlive the server-side long poll.
	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	result, err := api.call(reqCtx, method, nil, "")
	if err != nil {
		return nil, offset, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

// maxDownloadSize caps attachment downloads at 10 MB.
const maxDownloadSize = 10 << 20

// GetFile resolves a file id to its download path.
func (api *API) GetFile(ctx context.Context, fileID string) (*File, error) {
	result, err := api.call(ctx, "getFile?file_id="+url.QueryEscape(fileID), nil, "")
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(result, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadFile fetches the raw bytes behind a getFile path.
func (api *API) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	fileURL := fmt.Sprintf("%s/file/bot%s/%s", api.baseURL, api.token, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := api.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("telegram file exceeds %d bytes", maxDownloadSize)
	}
	return data, nil
}

// maxMessageLen keeps chunks under Telegram's 4096-character limit
// with headroom for UTF-8 boundaries.
const maxMessageLen = 3500

// SendMessage delivers text to a chat, split into chunks when it
// exceeds the API limit. Chunks always end on a rune boundary; a cut
// mid-rune would produce invalid UTF-8 and a Bot API 400.
func (api *API) SendMessage(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(vacío)"
	}
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxMessageLen {
			cut := maxMessageLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxMessageLen
			}
			chunk = chunk[:cut]
		}
		if err := api.sendMessageChunk(ctx, chatID, chunk); err != nil {
			return err
		}
		text = strings.TrimSpace(text[len(chunk):])
	}
	return nil
}

func (api *API) sendMessageChunk(ctx context.Context, chatID int64, text string) error {
	body, _ := json.Marshal(map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	_, err := api.call(ctx, "sendMessage", body, "application/json")
	return err
}

// SendChatAction shows the "typing..." indicator.
func (api *API) SendChatAction(ctx context.Context, chatID int64, action string) error {
	if action == "" {
		action = "typing"
	}
	body, _ := json.Marshal(map[string]any{
		"chat_id": chatID,
		"action":  action,
	})
	_, err := api.call(ctx, "sendChatAction", body, "application/json")
	return err
}

// SendPhoto uploads an image with an optional caption.
func (api *API) SendPhoto(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("photo", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	_, err = api.call(ctx, "sendPhoto", buf.Bytes(), mw.FormDataContentType())
	return err
}
