package tgapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Method names the dispatcher calls on the upstream platform.
const (
	MethodGetMe                  = "getMe"
	MethodGetChat                = "getChat"
	MethodGetChatAdministrators  = "getChatAdministrators"
	MethodSendMessage            = "sendMessage"
	MethodDeleteMessage          = "deleteMessage"
	MethodBanChatMember          = "banChatMember"
)

// Client calls the upstream platform's Bot API over HTTPS. It never
// blocks its caller beyond the single request. The dispatcher calls it
// inline for deletes and from a delayed goroutine for notices and bans.
type Client struct {
	botID      string
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a Client for the given bot id (the numeric-and-token
// credential the platform assigns a bot, embedded verbatim in the request
// path as the upstream API requires).
func NewClient(botID string) *Client {
	return &Client{
		botID:      botID,
		httpClient: newHTTPClient(),
		baseURL:    "https://api.telegram.org",
	}
}

// NewClientWithBaseURL builds a Client pointed at a non-default base URL,
// for tests that stand up an httptest.Server in place of the platform.
func NewClientWithBaseURL(botID, baseURL string) *Client {
	c := NewClient(botID)
	c.baseURL = baseURL
	return c
}

// newHTTPClient builds a bounded-timeout transport, the same shape the
// pack's outgoing-webhook delivery client uses, minus the SSRF dialer
// checks: the dispatcher only ever calls one fixed, trusted host.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          20,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

// Call invokes method with the given query parameters and decodes the
// generic {ok, result, error_code, description} envelope. The response
// body is passed through UnescapeUnicode before JSON decoding, matching
// the wire encoding used on ingress.
func (c *Client) Call(ctx context.Context, method string, params url.Values) (*Response, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botID, method)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}
	body = UnescapeUnicode(body)

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	return &out, nil
}

// SendMessageParams builds the query parameters for sendMessage.
func SendMessageParams(chatID int64, text string) url.Values {
	v := url.Values{}
	v.Set("chat_id", strconv.FormatInt(chatID, 10))
	v.Set("text", text)
	v.Set("parse_mode", "HTML")
	return v
}

// DeleteMessageParams builds the query parameters for deleteMessage.
func DeleteMessageParams(chatID, messageID int64) url.Values {
	v := url.Values{}
	v.Set("chat_id", strconv.FormatInt(chatID, 10))
	v.Set("message_id", strconv.FormatInt(messageID, 10))
	return v
}

// BanChatMemberParams builds the query parameters for banChatMember.
func BanChatMemberParams(chatID, userID int64, untilDate int64) url.Values {
	v := url.Values{}
	v.Set("chat_id", strconv.FormatInt(chatID, 10))
	v.Set("user_id", strconv.FormatInt(userID, 10))
	v.Set("until_date", strconv.FormatInt(untilDate, 10))
	v.Set("revoke_messages", "false")
	return v
}

// GetChatParams builds the query parameters for getChat.
func GetChatParams(chatID int64) url.Values {
	v := url.Values{}
	v.Set("chat_id", strconv.FormatInt(chatID, 10))
	return v
}

// GetChatAdministratorsParams builds the query parameters for getChatAdministrators.
func GetChatAdministratorsParams(chatID int64) url.Values {
	v := url.Values{}
	v.Set("chat_id", strconv.FormatInt(chatID, 10))
	return v
}
