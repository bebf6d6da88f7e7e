package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"go.uber.org/multierr"

	"github.com/otterwire/nimbusupdate/internal/config"
	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/manifest"
	"github.com/otterwire/nimbusupdate/verify"
)

// CurrentPointerFilename names the text file in install_root holding the
// current best version's folder name.
const CurrentPointerFilename = "current"

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// Installer downloads, verifies, and promotes package archives into
// install_root.
type Installer struct {
	cfg         *config.Config
	installRoot string
	publicKey   *rsa.PublicKey
	httpClient  *http.Client
}

// New builds an Installer rooted at installRoot.
func New(cfg *config.Config, installRoot string) (*Installer, error) {
	publicKey, err := config.ParsePublicKey(cfg.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	return &Installer{
		cfg:         cfg,
		installRoot: installRoot,
		publicKey:   publicKey,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// DownloadAndUnpack downloads update's archive, verifies it, stages it, and
// promotes it into install_root. It returns true on a successful promote,
// false after exhausting every candidate URL without success.
func (in *Installer) DownloadAndUnpack(ctx context.Context, update *manifest.UpdateInfo) (bool, error) {
	candidates := in.candidateURLs(update)
	if len(candidates) == 0 {
		return false, ErrNoCandidateSucceeded
	}

	for _, candidateURL := range candidates {
		ok, err := in.tryCandidate(ctx, candidateURL, update)
		if err != nil {
			logger.WarnKV(ctx, "Download candidate failed", "url", candidateURL, "error", err)
			continue
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// candidateURLs composes the ordered download URL list: alternate mirrors
// first (with the primary package filename spliced in), then the manifest's
// own remote URLs.
func (in *Installer) candidateURLs(update *manifest.UpdateInfo) []string {
	if len(update.RemoteURLs) == 0 {
		return nil
	}

	filename := path.Base(update.RemoteURLs[0])

	var result []string

	for _, mirror := range in.cfg.AlternateMirrors {
		if spliced := spliceFilename(mirror, filename); spliced != "" {
			result = append(result, spliced)
		}
	}

	result = append(result, update.RemoteURLs...)

	return result
}

func spliceFilename(rawURL, filename string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	parsed.Path = path.Join(path.Dir(parsed.Path), filename)

	return parsed.String()
}

// tryCandidate downloads, verifies, stages, and promotes a single candidate.
func (in *Installer) tryCandidate(ctx context.Context, candidateURL string, update *manifest.UpdateInfo) (bool, error) {
	downloadPath, err := in.download(ctx, candidateURL, update.CompressedSize)
	if err != nil {
		return false, err
	}

	defer func() {
		_ = os.Remove(downloadPath)
	}()

	if err = verifyArchiveIntegrity(downloadPath, update); err != nil {
		return false, err
	}

	stagingDir, err := os.MkdirTemp("", "nimbusupdate-staging-")
	if err != nil {
		return false, fmt.Errorf("create staging dir: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	if err = extractZip(downloadPath, stagingDir); err != nil {
		return false, err
	}

	if !verify.VerifyUnpacked(ctx, stagingDir, update, in.publicKey, in.cfg.IgnoreWebroot) {
		return false, fmt.Errorf("staged tree failed verification")
	}

	if err = in.promote(ctx, stagingDir, update); err != nil {
		return false, fmt.Errorf("promote: %w", err)
	}

	if err = in.garbageCollect(ctx); err != nil {
		logger.WarnKV(ctx, "Garbage collection had errors", "error", err)
	}

	return true, nil
}

// download streams candidateURL into a fresh temp file.
func (in *Installer) download(ctx context.Context, candidateURL string, expectedSize int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidateURL, http.NoBody)
	if err != nil {
		return "", err
	}

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.CreateTemp("", "nimbusupdate-download-")
	if err != nil {
		return "", err
	}

	defer func() {
		_ = out.Close()
	}()

	downloaded, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}

	if expectedSize > 0 {
		logger.InfoKV(ctx, "Download complete", "bytes", downloaded, "expected", expectedSize)
	}

	return out.Name(), nil
}

// verifyArchiveIntegrity checks the downloaded file's size and hashes
// against update.
func verifyArchiveIntegrity(path string, update *manifest.UpdateInfo) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if update.CompressedSize != 0 && info.Size() != update.CompressedSize {
		return fmt.Errorf("%w: size %d, want %d", ErrIntegrityMismatch, info.Size(), update.CompressedSize)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	sha256Digest, md5Digest := digestsOf(data)

	if update.SHA256 != "" && sha256Digest != update.SHA256 {
		return fmt.Errorf("%w: sha256 mismatch", ErrIntegrityMismatch)
	}

	if update.MD5 != "" && md5Digest != update.MD5 {
		return fmt.Errorf("%w: md5 mismatch", ErrIntegrityMismatch)
	}

	return nil
}

func digestsOf(data []byte) (sha256Base64, md5Base64 string) {
	sha := sha256.Sum256(data)

	return base64.StdEncoding.EncodeToString(sha[:]), md5Base64OfBytes(data)
}

// extractZip extracts every member of the archive at archivePath into
// destDir, rejecting any member whose path would escape destDir.
func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, member := range reader.File {
		if err = extractMember(member, destDir); err != nil {
			return err
		}
	}

	return nil
}

func extractMember(member *zip.File, destDir string) error {
	if !safeArchivePath(member.Name) {
		return fmt.Errorf("%w: %s", ErrPathUnsafe, member.Name)
	}

	targetPath := filepath.Join(destDir, filepath.FromSlash(member.Name))

	if member.FileInfo().IsDir() {
		return os.MkdirAll(targetPath, defaultDirMode)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), defaultDirMode); err != nil {
		return err
	}

	src, err := member.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFileMode) //nolint:gosec // destDir is a fresh staging directory, path already validated.
	if err != nil {
		return err
	}

	defer func() {
		_ = dst.Close()
	}()

	_, err = io.Copy(dst, src) //nolint:gosec // member count/size bounded by caller's archive size check.

	return err
}

// safeArchivePath rejects absolute paths and any path containing a ".."
// segment (case-insensitive), treating both "/" and "\" as separators.
func safeArchivePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}

	segments := strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
	for _, segment := range segments {
		if strings.EqualFold(segment, "..") {
			return false
		}
	}

	return true
}

// promote copies the verified staging tree into its versioned install_root
// subdirectory and atomically updates the current pointer.
func (in *Installer) promote(ctx context.Context, stagingDir string, update *manifest.UpdateInfo) error {
	versionString := update.Version.String()
	target := filepath.Join(in.installRoot, versionString)

	if _, err := os.Stat(target); err == nil {
		if err = os.RemoveAll(target); err != nil {
			return fmt.Errorf("remove existing target: %w", err)
		}
	}

	if err := os.MkdirAll(target, defaultDirMode); err != nil {
		return err
	}

	if err := filepath.WalkDir(stagingDir, func(srcPath string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(stagingDir, srcPath)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		destPath := filepath.Join(target, rel)

		if d.IsDir() {
			return os.MkdirAll(destPath, defaultDirMode)
		}

		return applyFile(srcPath, destPath)
	}); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Promoted version", "version", versionString)

	return writeCurrentPointer(in.installRoot, versionString)
}

// applyFile places the content of srcPath at destPath using the atomic,
// checksum-verified replace primitive.
func applyFile(srcPath, destPath string) error {
	data, err := os.ReadFile(filepath.Clean(srcPath))
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)

	// goupdate.Apply moves an existing target aside before writing the new
	// content and fails when there is none, so a file new to this version
	// gets an empty placeholder first.
	if _, err = os.Stat(destPath); os.IsNotExist(err) {
		if err = os.WriteFile(destPath, nil, defaultFileMode); err != nil {
			return err
		}
	}

	return goupdate.Apply(bytes.NewReader(data), goupdate.Options{ //nolint:exhaustruct // other Options fields intentionally left at defaults.
		TargetPath: destPath,
		TargetMode: defaultFileMode,
		Checksum:   sum[:],
		Hash:       crypto.SHA256,
	})
}

// writeCurrentPointer atomically replaces the current pointer file via
// write-to-temp-then-rename.
func writeCurrentPointer(installRoot, versionString string) error {
	tempFile, err := os.CreateTemp(installRoot, "current-*")
	if err != nil {
		return err
	}

	tempPath := tempFile.Name()

	if _, err = tempFile.WriteString(versionString); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)

		return err
	}

	if err = tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return err
	}

	return os.Rename(tempPath, filepath.Join(installRoot, CurrentPointerFilename))
}

// garbageCollect keeps the newest installed version, the current pointer's
// target, and the second-newest version, deleting the rest. Failures are
// aggregated and returned but never abort the sweep.
func (in *Installer) garbageCollect(ctx context.Context) error {
	versions, err := in.listInstalledVersionDirs()
	if err != nil {
		return err
	}

	if len(versions) <= 2 {
		return nil
	}

	current := readCurrentPointer(in.installRoot)

	keep := map[string]bool{
		versions[0].name: true,
		versions[1].name: true,
	}

	if current != "" {
		keep[current] = true
	}

	var errs error

	for _, v := range versions[2:] {
		if keep[v.name] {
			continue
		}

		if err = os.RemoveAll(v.path); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", v.name, err))
			continue
		}

		logger.InfoKV(ctx, "Garbage-collected obsolete version", "version", v.name)
	}

	return errs
}

type installedVersionDir struct {
	name    string
	path    string
	version manifest.Version
}

// listInstalledVersionDirs returns installed version subdirectories of
// install_root, sorted newest first.
func (in *Installer) listInstalledVersionDirs() ([]installedVersionDir, error) {
	entries, err := os.ReadDir(in.installRoot)
	if err != nil {
		return nil, err
	}

	var versions []installedVersionDir

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		v := manifest.ParseVersion(entry.Name())
		if v.IsZero() {
			continue
		}

		versions = append(versions, installedVersionDir{
			name:    entry.Name(),
			path:    filepath.Join(in.installRoot, entry.Name()),
			version: v,
		})
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].version.GreaterThan(versions[j].version)
	})

	return versions, nil
}

func readCurrentPointer(installRoot string) string {
	data, err := os.ReadFile(filepath.Join(installRoot, CurrentPointerFilename))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
