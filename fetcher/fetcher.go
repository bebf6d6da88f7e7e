package fetcher

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/otterwire/nimbusupdate/internal/config"
	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/manifest"
	"github.com/otterwire/nimbusupdate/signedstream"
)

// channelSegment matches a recognized release-type name sitting as its own
// path segment, so the requested channel can be spliced in verbatim.
var channelSegment = regexp.MustCompile(`(?i)/(debug|stable|beta|experimental|canary|nightly)(/|$)`)

// Fetcher downloads and verifies manifests and applies channel/version policy.
type Fetcher struct {
	cfg             *config.Config
	publicKey       *rsa.PublicKey
	httpClient      *http.Client
	installID       string
	selfVersion     manifest.Version
	selfReleaseType manifest.ReleaseType
	onError         func(error)

	lastResult *manifest.UpdateInfo
}

// New builds a Fetcher for the given configuration.
func New(
	cfg *config.Config,
	installID string,
	selfVersion manifest.Version,
	selfReleaseType manifest.ReleaseType,
	onError func(error),
) (*Fetcher, error) {
	publicKey, err := config.ParsePublicKey(cfg.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	if onError == nil {
		onError = func(error) {}
	}

	return &Fetcher{
		cfg:             cfg,
		publicKey:       publicKey,
		httpClient:      &http.Client{Timeout: timeout},
		installID:       installID,
		selfVersion:     selfVersion,
		selfReleaseType: selfReleaseType,
		onError:         onError,
	}, nil
}

// LastResult returns the manifest from the most recent successful check, or
// nil if none has occurred yet or the last check found no update.
func (f *Fetcher) LastResult() *manifest.UpdateInfo {
	return f.lastResult
}

// CheckForUpdate downloads a signed manifest from one of the configured
// candidate URLs, verifies it, and applies channel/version policy.
//
// Returns (nil, nil) when no eligible update is available — that is the
// normal "no update" result, not an error.
func (f *Fetcher) CheckForUpdate(ctx context.Context, channel manifest.ReleaseType) (*manifest.UpdateInfo, error) {
	if channel == manifest.Unknown {
		channel = manifest.ParseReleaseType(f.cfg.DefaultChannel)
	}

	for _, candidateURL := range f.cfg.ManifestURLs {
		url := substituteChannel(candidateURL, channel)

		info, err := f.fetchOne(ctx, url)
		if err != nil {
			logger.WarnKV(ctx, "Manifest candidate failed", "url", url, "error", err)
			f.onError(err)

			continue
		}

		accepted := f.applyPolicy(ctx, info, channel)
		if accepted {
			f.lastResult = info
		} else {
			f.lastResult = nil
		}

		return f.lastResult, nil
	}

	return nil, nil
}

// substituteChannel splices channel (lowercased) into a recognized
// "…/<channel>/…" path segment of rawURL, leaving rawURL unchanged if no such
// segment is present.
func substituteChannel(rawURL string, channel manifest.ReleaseType) string {
	if !channelSegment.MatchString(rawURL) {
		return rawURL
	}

	return channelSegment.ReplaceAllString(rawURL, "/"+strings.ToLower(channel.String())+"$2")
}

// fetchOne downloads and verifies a single manifest candidate.
func (f *Fetcher) fetchOne(ctx context.Context, url string) (*manifest.UpdateInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("X-Install-ID", f.installID)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	verifying, err := signedstream.OpenVerifying(resp.Body, f.publicKey)
	if err != nil {
		return nil, fmt.Errorf("open signed stream: %w", err)
	}

	data, err := io.ReadAll(verifying)
	if err != nil {
		return nil, fmt.Errorf("verify manifest: %w", err)
	}

	info, err := manifest.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return info, nil
}

// applyPolicy decides whether info represents an eligible update for channel.
func (f *Fetcher) applyPolicy(ctx context.Context, info *manifest.UpdateInfo, channel manifest.ReleaseType) bool {
	if !info.Version.GreaterThan(f.selfVersion) {
		logger.InfoKV(ctx, "Manifest version is not newer than self", "version", info.Version.String())
		return false
	}

	if f.selfReleaseType == manifest.Debug && !strings.EqualFold(info.ReleaseType.String(), f.selfReleaseType.String()) {
		logger.Info(ctx, "Rejecting manifest: self is debug and release types differ")
		return false
	}

	if info.ReleaseType > channel {
		logger.InfoKV(ctx, "Rejecting manifest stricter than requested channel",
			"release_type", info.ReleaseType.String(), "channel", channel.String())

		return false
	}

	return true
}

func (f *Fetcher) userAgent() string {
	ua := fmt.Sprintf("%s v%s", f.cfg.AppName, f.selfVersion.String())
	if f.installID != "" {
		ua += " -" + f.installID
	}

	return ua
}
