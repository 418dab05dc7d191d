package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type PlatformID string

const DefaultPlatformID PlatformID = "douyin"

// Platform describes one content-platform account and where its login
// surface, browser container and credential artifact live.
type Platform struct {
	ID           PlatformID
	Name         string
	LoginURL     string
	ProtectedURL string
	// LogoutPatterns are URL substrings that identify a login or
	// authentication-gateway page.
	LogoutPatterns []string
	// HomePatterns are URL substrings of pages only reachable when logged in.
	HomePatterns []string
	QRSelectors  []string
	Container    string
	CDPURL       string

	CredentialArtifact string
	MinArtifactBytes   int64
	MaxArtifactAge     time.Duration
}

var defaultLogoutPatterns = []string{"login", "passport"}

func DefaultPlatform() Platform {
	return Platform{
		ID:             DefaultPlatformID,
		Name:           "Douyin Creator",
		LoginURL:       "https://creator.douyin.com/",
		ProtectedURL:   "https://creator.douyin.com/creator-micro/home",
		LogoutPatterns: []string{"login", "passport", "sso"},
		HomePatterns:   []string{"creator.douyin.com"},
		QRSelectors: []string{
			"#animate_qrcode_container > div.qrcode-vz0gH7 > img",
			"img.qrcode_img-NPVTJs",
			`img[class*="qrcode_img"]`,
			`img[aria-label="二维码"]`,
		},
		Container:          "douyin-chrome",
		CDPURL:             "http://127.0.0.1:19222",
		CredentialArtifact: "/home/chrome/.config/chromium/Default/Cookies",
		MinArtifactBytes:   20 * 1024,
		MaxArtifactAge:     24 * time.Hour,
	}
}

func (p Platform) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.ContainsAny(string(p.ID), `/\ `) {
		return fmt.Errorf("id %q must not contain path separators or spaces", p.ID)
	}
	if err := validateHTTPURL("login_url", p.LoginURL); err != nil {
		return err
	}
	if err := validateHTTPURL("protected_url", p.ProtectedURL); err != nil {
		return err
	}
	if p.MinArtifactBytes < 0 {
		return fmt.Errorf("min_artifact_bytes must not be negative")
	}

	return nil
}

// Normalize fills optional fields with defaults.
func (p *Platform) Normalize() {
	if p == nil {
		return
	}

	p.ID = PlatformID(strings.TrimSpace(string(p.ID)))
	if p.Name == "" {
		p.Name = string(p.ID)
	}
	if len(p.LogoutPatterns) == 0 {
		p.LogoutPatterns = append([]string(nil), defaultLogoutPatterns...)
	}
	if len(p.HomePatterns) == 0 && p.ProtectedURL != "" {
		if parsed, err := url.Parse(p.ProtectedURL); err == nil && parsed.Host != "" {
			p.HomePatterns = []string{parsed.Host}
		}
	}
}

func validateHTTPURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", field)
	}

	return nil
}
