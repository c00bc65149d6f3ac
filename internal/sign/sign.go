// Package sign builds the freshness-bound signature DingTalk robots
// verify: an HMAC-SHA256 over "<ms-timestamp>\n<secret>" keyed with the
// secret, Base64-encoded and URL-escaped, appended to the webhook URL as
// query parameters. The endpoint rejects signatures older than its
// acceptance window, so a signed URL is computed fresh for every delivery
// attempt and never cached.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrNoSecret = errors.New("sign: secret is empty")

// Sign returns the millisecond timestamp and URL-escaped token for one
// delivery attempt. Deterministic for a fixed (secret, instant) pair.
func Sign(secret string, now time.Time) (timestamp, token string, err error) {
	if strings.TrimSpace(secret) == "" {
		return "", "", ErrNoSecret
	}

	timestamp = strconv.FormatInt(now.UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + secret))
	token = url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return timestamp, token, nil
}

// SignedURL appends timestamp and sign to the base webhook URL, joining
// with & when the base already carries a query string.
func SignedURL(base, secret string, now time.Time) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", errors.New("sign: base url is empty")
	}
	ts, token, err := Sign(secret, now)
	if err != nil {
		return "", err
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "timestamp=" + ts + "&sign=" + token, nil
}
