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

	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
)

// TelegramUser is the user block embedded in WebApp init data.
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// TelegramInitData is the validated identity extracted from init data.
type TelegramInitData struct {
	User     TelegramUser
	AuthDate time.Time
}

// FullName joins first and last name the way the profile displays it.
func (u TelegramUser) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// InitDataValidator checks Telegram WebApp init data signatures.
type InitDataValidator struct {
	secretKey []byte
	maxAge    time.Duration
	now       func() time.Time
}

// NewInitDataValidator derives the validation key from the bot token per
// the Telegram WebApp scheme: HMAC-SHA256 keyed with "WebAppData".
func NewInitDataValidator(botToken string, maxAge time.Duration) *InitDataValidator {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))

	return &InitDataValidator{
		secretKey: mac.Sum(nil),
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// Validate verifies the init data signature and freshness, and returns
// the embedded identity.
func (v *InitDataValidator) Validate(initData string) (*TelegramInitData, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, apperrors.ErrInvalidInitData
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, apperrors.ErrInvalidInitData
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, apperrors.ErrInvalidInitData
	}

	if !hmac.Equal([]byte(providedHash), []byte(v.computeHash(values))) {
		return nil, apperrors.ErrInvalidInitData
	}

	authUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, apperrors.ErrInvalidInitData
	}
	authDate := time.Unix(authUnix, 0)

	if v.maxAge > 0 && v.now().Sub(authDate) > v.maxAge {
		return nil, apperrors.ErrInitDataExpired
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, apperrors.ErrInvalidInitData
	}
	if user.ID == 0 {
		return nil, apperrors.ErrInvalidInitData
	}

	return &TelegramInitData{User: user, AuthDate: authDate}, nil
}

// computeHash builds the data-check-string (all pairs except hash,
// sorted by key, joined with newlines) and signs it with the secret key.
func (v *InitDataValidator) computeHash(values url.Values) string {
	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)

	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
