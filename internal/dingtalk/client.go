// Package dingtalk delivers rendered messages to a DingTalk custom-robot
// webhook.
package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dingtask/internal/render"
	"dingtask/internal/sign"
	logx "dingtask/pkg/logx"
)

// Mentions is the at-block of one message.
type Mentions struct {
	AtAll   bool
	Mobiles []string
	UserIDs []string
}

// Wire format of the robot API.
type payload struct {
	MsgType  string       `json:"msgtype"`
	Markdown markdownBody `json:"markdown"`
	At       atBlock      `json:"at"`
}

type markdownBody struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type atBlock struct {
	IsAtAll   bool     `json:"isAtAll"`
	AtUserIDs []string `json:"atUserIds"`
	AtMobiles []string `json:"atMobiles"`
}

// The endpoint answers HTTP 200 even for rejected messages; the real
// verdict is in this envelope.
type response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type Options struct {
	WebhookURL string
	Secret     string

	// Timeout bounds one POST including body read.
	Timeout time.Duration

	// RatePerMin caps outbound sends; DingTalk server-side throttling
	// kicks in at 20 msg/min per robot.
	RatePerMin int

	Log logx.Logger
}

// Client is a thin HTTP client for the robot webhook. It signs the URL
// fresh for every attempt (tokens are time-bound and must never be
// reused) and paces sends with a local rate limiter.
type Client struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logx.Logger

	// now is swappable for tests; signatures depend on the instant.
	now func() time.Time
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.WebhookURL) == "" {
		return nil, fmt.Errorf("dingtalk: webhook url required")
	}
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, fmt.Errorf("dingtalk: secret required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMin := opts.RatePerMin
	if perMin <= 0 {
		perMin = 20
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		webhookURL: opts.WebhookURL,
		secret:     opts.Secret,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
		log:        log,
		now:        time.Now,
	}, nil
}

// Send signs and posts one message. A non-nil error means this message
// did not (verifiably) reach the channel; the caller decides whether
// siblings still go out.
func (c *Client) Send(ctx context.Context, msg render.Message, at Mentions) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	url, err := sign.SignedURL(c.webhookURL, c.secret, c.now())
	if err != nil {
		return err
	}

	body := payload{
		MsgType:  "markdown",
		Markdown: markdownBody{Title: msg.Title, Text: msg.Text},
		At: atBlock{
			IsAtAll:   at.AtAll,
			AtUserIDs: emptyNotNil(at.UserIDs),
			AtMobiles: emptyNotNil(at.Mobiles),
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if r.ErrCode != 0 {
		return fmt.Errorf("webhook rejected message: errcode %d: %s", r.ErrCode, r.ErrMsg)
	}

	c.log.Debug("message delivered", logx.String("title", msg.Title))
	return nil
}

// emptyNotNil keeps the at lists as [] in JSON rather than null, matching
// what the robot API documents.
func emptyNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
