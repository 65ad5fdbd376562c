package video

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL bounds how long a secure video URL stays usable.
const DefaultTokenTTL = 15 * time.Minute

// blockedAgents are matched case-insensitively as substrings of User-Agent.
var blockedAgents = []string{
	"wget",
	"curl",
	"python-requests",
	"scrapy",
	"phantomjs",
	"headless",
	"selenium",
	"puppeteer",
}

// Claims are embedded in a video access token.
type Claims struct {
	VideoID     string `json:"videoId"`
	UserID      string `json:"userId"`
	Expires     int64  `json:"expires"`
	SessionID   string `json:"sessionId"`
	Fingerprint string `json:"fingerprint"`
	jwt.RegisteredClaims
}

// SignedURL is the result of Sign.
type SignedURL struct {
	SecureURL string    `json:"secureUrl"`
	Token     string    `json:"-"`
	SessionID string    `json:"-"`
	Expires   int64     `json:"expires"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyInput carries the values presented on a stream request.
type VerifyInput struct {
	VideoID   string
	UserID    string
	Token     string
	Expires   int64
	SessionID string
	Referer   string
	UserAgent string
}

// SignerConfig configures a Signer.
type SignerConfig struct {
	Secret          string
	TTL             time.Duration
	PublicBaseURL   string
	AllowedReferers []string
}

// Signer issues and checks fingerprinted, short-lived video URLs.
type Signer struct {
	secret   []byte
	ttl      time.Duration
	baseURL  string
	referers []string
	logger   *slog.Logger
	now      func() time.Time
}

// NewSigner creates a signer from cfg.
func NewSigner(cfg SignerConfig, logger *slog.Logger) *Signer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	referers := make([]string, 0, len(cfg.AllowedReferers))
	for _, host := range cfg.AllowedReferers {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			referers = append(referers, host)
		}
	}

	return &Signer{
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		referers: referers,
		logger:   logger,
		now:      time.Now,
	}
}

// Sign issues a URL for videoID bound to userID and a fresh random session.
func (s *Signer) Sign(videoID, userID string) (SignedURL, error) {
	if strings.TrimSpace(videoID) == "" {
		return SignedURL{}, ErrVideoIDRequired
	}

	sessionID, err := newSessionID()
	if err != nil {
		return SignedURL{}, err
	}

	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	expires := expiresAt.Unix()

	claims := Claims{
		VideoID:     videoID,
		UserID:      userID,
		Expires:     expires,
		SessionID:   sessionID,
		Fingerprint: s.fingerprint(videoID, userID, sessionID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SignedURL{}, fmt.Errorf("sign video token: %w", err)
	}

	query := url.Values{}
	query.Set("token", token)
	query.Set("userId", userID)
	query.Set("expires", strconv.FormatInt(expires, 10))
	query.Set("sid", sessionID)

	return SignedURL{
		SecureURL: fmt.Sprintf("%s/api/videos/stream/%s?%s", s.baseURL, url.PathEscape(videoID), query.Encode()),
		Token:     token,
		SessionID: sessionID,
		Expires:   expires,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks, in order: expiry, referer, user agent, signature,
// fingerprint, and that every presented field matches the token.
func (s *Signer) Verify(in VerifyInput) (*Claims, error) {
	claims, err := s.verify(in)
	if err != nil {
		s.logger.Warn("video token rejected",
			slog.String("videoId", in.VideoID),
			slog.String("userId", in.UserID),
			slog.String("reason", err.Error()))
		return nil, err
	}
	return claims, nil
}

func (s *Signer) verify(in VerifyInput) (*Claims, error) {
	now := s.now()
	if in.Expires <= 0 || now.Unix() > in.Expires {
		return nil, ErrVideoTokenExpired
	}

	if !s.refererAllowed(in.Referer) {
		return nil, ErrRefererNotAllowed
	}

	if agentBlocked(in.UserAgent) {
		return nil, ErrUserAgentBlocked
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(in.Token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidVideoToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrVideoTokenExpired
		}
		return nil, ErrInvalidVideoToken
	}

	expected := s.fingerprint(in.VideoID, in.UserID, claims.SessionID)
	if !hmac.Equal([]byte(expected), []byte(claims.Fingerprint)) {
		return nil, ErrFingerprintMismatch
	}

	if claims.VideoID != in.VideoID ||
		claims.UserID != in.UserID ||
		claims.Expires != in.Expires ||
		(in.SessionID != "" && claims.SessionID != in.SessionID) {
		return nil, ErrTokenMismatch
	}

	return claims, nil
}

// fingerprint is hex(SHA256("videoId:userId:sessionId:secret")).
func (s *Signer) fingerprint(videoID, userID, sessionID string) string {
	sum := sha256.Sum256([]byte(videoID + ":" + userID + ":" + sessionID + ":" + string(s.secret)))
	return hex.EncodeToString(sum[:])
}

// refererAllowed accepts an absent referer, or one whose host is an allowed
// host or a subdomain of one.
func (s *Signer) refererAllowed(referer string) bool {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return true
	}

	parsed, err := url.Parse(referer)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	for _, allowed := range s.referers {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func agentBlocked(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, blocked := range blockedAgents {
		if strings.Contains(ua, blocked) {
			return true
		}
	}
	return false
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
