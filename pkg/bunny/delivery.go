// Package bunny signs Bunny CDN token-authenticated playback URLs.
package bunny

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("bunny delivery signing configuration is missing")
	ErrVideoRequired = errors.New("videoID is required")
)

// DeliverySigner builds expiring playlist URLs for a pull zone protected by
// token authentication.
type DeliverySigner struct {
	deliveryURL string
	securityKey string
	ttl         time.Duration
	now         func() time.Time
}

// NewDeliverySigner creates a signer. ttl defaults to one hour.
func NewDeliverySigner(deliveryURL, securityKey string, ttl time.Duration) *DeliverySigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DeliverySigner{
		deliveryURL: strings.TrimSpace(deliveryURL),
		securityKey: strings.TrimSpace(securityKey),
		ttl:         ttl,
		now:         time.Now,
	}
}

// Configured reports whether both the delivery host and key are set.
func (s *DeliverySigner) Configured() bool {
	return s != nil && s.deliveryURL != "" && s.securityKey != ""
}

// SignedPlaylistURL returns the HLS playlist URL for videoID with a
// token=base64url(SHA256(key + path + expires)) query.
func (s *DeliverySigner) SignedPlaylistURL(videoID string) (string, error) {
	videoID = strings.Trim(strings.TrimSpace(videoID), "/")
	if videoID == "" {
		return "", ErrVideoRequired
	}
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	delivery := s.deliveryURL
	if !strings.HasPrefix(delivery, "http://") && !strings.HasPrefix(delivery, "https://") {
		delivery = "https://" + delivery
	}
	delivery = strings.TrimRight(delivery, "/")

	expiration := s.now().Add(s.ttl).Unix()
	urlPath := fmt.Sprintf("/%s/playlist.m3u8", videoID)

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", s.securityKey, urlPath, expiration)))
	token := base64.StdEncoding.EncodeToString(hash[:])
	token = strings.NewReplacer("+", "-", "/", "_", "=", "").Replace(token)

	return fmt.Sprintf("%s%s?token=%s&expires=%d", delivery, urlPath, token, expiration), nil
}
