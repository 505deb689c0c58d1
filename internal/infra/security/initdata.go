package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataMissing = errors.New("init data missing")
	ErrInitDataInvalid = errors.New("init data signature mismatch")
	ErrInitDataExpired = errors.New("init data expired")
	ErrInitDataNoUser  = errors.New("init data carries no user")
)

// WebAppUser is the user object Telegram embeds in mini-app init data.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Language  string `json:"language_code"`
}

// InitDataVerifier checks the X-Telegram-Init-Data signature of mini-app requests.
type InitDataVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewInitDataVerifier derives the WebApp secret from the bot token. A zero
// maxAge disables the auth_date freshness check.
func NewInitDataVerifier(botToken string, maxAge time.Duration) *InitDataVerifier {
	var secret []byte
	if botToken != "" {
		mac := hmac.New(sha256.New, []byte("WebAppData"))
		mac.Write([]byte(botToken))
		secret = mac.Sum(nil)
	}
	return &InitDataVerifier{secret: secret, maxAge: maxAge, now: time.Now}
}

// Verify validates raw init data and returns the embedded user.
func (v *InitDataVerifier) Verify(raw string) (*WebAppUser, error) {
	if raw == "" || v.secret == nil {
		return nil, ErrInitDataMissing
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataInvalid
	}
	values.Del("hash")

	want, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(want, v.sign(values)) {
		return nil, ErrInitDataInvalid
	}

	if v.maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return nil, ErrInitDataInvalid
		}
		if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
			return nil, ErrInitDataExpired
		}
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID <= 0 {
		return nil, ErrInitDataNoUser
	}
	return &user, nil
}

// sign computes HMAC-SHA256 over the sorted key=value lines.
func (v *InitDataVerifier) sign(values url.Values) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return mac.Sum(nil)
}
