package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/longregen/alicia-edge/internal/domain"
)

// GatewayURL appends the biz identity to base. The secret never leaves the
// device: the query carries an HMAC-SHA256 signature over type, group and
// timestamp instead. A default Biz leaves base untouched.
func GatewayURL(base string, biz Biz, now time.Time) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("%w: scheme %q", domain.ErrInvalidURL, u.Scheme)
	}
	if biz.IsDefault() {
		return u.String(), nil
	}

	ts := strconv.FormatInt(now.Unix(), 10)
	q := u.Query()
	q.Set("bizType", biz.Type)
	q.Set("bizGroup", biz.Group)
	q.Set("timestamp", ts)
	q.Set("sign", Sign(biz.Secret, biz.Type, biz.Group, ts))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Sign returns the hex HMAC-SHA256 of the parts joined by '&'.
func Sign(secret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for i, p := range parts {
		if i > 0 {
			mac.Write([]byte{'&'})
		}
		mac.Write([]byte(p))
	}
	return hex.EncodeToString(mac.Sum(nil))
}
