package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
)

// DefaultInitDataMaxAge is how long a signed initData payload stays valid.
const DefaultInitDataMaxAge = 24 * time.Hour

// TelegramUser is the "user" object embedded in Mini App initData.
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// TelegramIDString returns the numeric id as the string stored on users.
func (u TelegramUser) TelegramIDString() string {
	return strconv.FormatInt(u.ID, 10)
}

// Profile converts the Telegram payload into the fields kept on the user row.
func (u TelegramUser) Profile() user.Profile {
	return user.Profile{
		TelegramID:   u.TelegramIDString(),
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     optional(u.LastName),
		PhotoURL:     optional(u.PhotoURL),
		LanguageCode: optional(u.LanguageCode),
	}
}

// InitData is a parsed and verified initData payload.
type InitData struct {
	User       *TelegramUser
	AuthDate   time.Time
	QueryID    string
	StartParam string
}

// Verifier checks Telegram WebApp initData signatures.
type Verifier struct {
	botToken string
	maxAge   time.Duration
	skip     bool
	now      func() time.Time
}

// NewVerifier builds a verifier for botToken. When skip is true signatures
// and freshness are not checked; config refuses that in production.
func NewVerifier(botToken string, maxAge time.Duration, skip bool) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultInitDataMaxAge
	}
	return &Verifier{
		botToken: strings.TrimSpace(botToken),
		maxAge:   maxAge,
		skip:     skip,
		now:      time.Now,
	}
}

// Skipping reports whether signature checks are disabled.
func (v *Verifier) Skipping() bool {
	return v.skip
}

// Verify parses raw and validates its hash and auth_date.
func (v *Verifier) Verify(raw string) (*InitData, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if v.skip {
			return &InitData{}, nil
		}
		return nil, ErrInitDataMissing
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrInitDataMalformed
	}

	data, err := parseInitData(values)
	if err != nil {
		return nil, err
	}

	if v.skip {
		return data, nil
	}

	if v.botToken == "" {
		return nil, ErrBotTokenMissing
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataHashMissing
	}

	expected := signValues(values, v.botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return nil, ErrInitDataHashMismatch
	}

	if data.AuthDate.IsZero() || v.now().Sub(data.AuthDate) > v.maxAge {
		return nil, ErrInitDataExpired
	}

	return data, nil
}

// DataCheckString renders values (minus hash) as sorted key=value lines.
func DataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}
	return strings.Join(lines, "\n")
}

// signValues returns hex(HMAC-SHA256(SHA256(botToken), checkString)).
func signValues(values url.Values, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(DataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseInitData(values url.Values) (*InitData, error) {
	data := &InitData{
		QueryID:    values.Get("query_id"),
		StartParam: values.Get("start_param"),
	}

	if rawDate := values.Get("auth_date"); rawDate != "" {
		seconds, err := strconv.ParseInt(rawDate, 10, 64)
		if err != nil {
			return nil, ErrInitDataMalformed
		}
		data.AuthDate = time.Unix(seconds, 0)
	}

	if rawUser := values.Get("user"); rawUser != "" {
		var tgUser TelegramUser
		if err := json.Unmarshal([]byte(rawUser), &tgUser); err != nil {
			return nil, ErrInitDataMalformed
		}
		data.User = &tgUser
	}

	return data, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
