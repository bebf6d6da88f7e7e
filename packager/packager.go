package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/manifest"
	"github.com/otterwire/nimbusupdate/signedstream"
)

const (
	packageFilename = "package.zip"
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// Builder produces a package.zip plus embedded and remote signed manifests
// from a BuildConfig.
type Builder struct {
	cfg        *BuildConfig
	privateKey *rsa.PrivateKey
}

// New validates cfg and loads its signing key.
func New(cfg *BuildConfig) (*Builder, error) {
	if err := ValidateBuildConfig(cfg); err != nil {
		return nil, err
	}

	key, err := loadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	return &Builder{cfg: cfg, privateKey: key}, nil
}

// Build walks the input folder into a new package.zip containing a signed
// embedded manifest, then writes package.zip and a signed remote manifest
// describing it into the output folder.
func (b *Builder) Build(ctx context.Context) error {
	releaseTime, err := parseReleaseTime(b.cfg.ReleaseTime)
	if err != nil {
		return err
	}

	local := &manifest.UpdateInfo{
		DisplayName: b.cfg.DisplayName,
		Version:     manifest.ParseVersion(b.cfg.Version),
		ReleaseTime: releaseTime,
		ReleaseType: manifest.ParseReleaseType(b.cfg.ReleaseType),
		RemoteURLs:  append([]string(nil), b.cfg.RemoteURLs...),
	}

	if !local.ReleaseTimeKnown() {
		local.ReleaseTime = time.Now().UTC()
	}

	if err := os.MkdirAll(b.cfg.OutputFolder, defaultDirMode); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}

	zipBytes, err := b.buildZip(ctx, local)
	if err != nil {
		return fmt.Errorf("build package archive: %w", err)
	}

	if err = os.WriteFile(filepath.Join(b.cfg.OutputFolder, packageFilename), zipBytes, defaultFileMode); err != nil {
		return fmt.Errorf("write package archive: %w", err)
	}

	remote := *local
	remote.Files = nil
	remote.UncompressedSize = 0
	remote.CompressedSize = int64(len(zipBytes))
	remote.SHA256, remote.MD5 = digestsOf(zipBytes)

	remoteData, err := manifest.Encode(&remote)
	if err != nil {
		return fmt.Errorf("encode remote manifest: %w", err)
	}

	manifestPath := filepath.Join(b.cfg.OutputFolder, manifest.FileName)

	manifestFile, err := os.Create(filepath.Clean(manifestPath))
	if err != nil {
		return fmt.Errorf("create remote manifest: %w", err)
	}
	defer func() { _ = manifestFile.Close() }()

	if err = signedstream.CreateSigned(bytes.NewReader(remoteData), manifestFile, b.privateKey); err != nil {
		return fmt.Errorf("sign remote manifest: %w", err)
	}

	logger.InfoKV(ctx, "package built",
		"version", local.Version.String(),
		"files", len(local.Files),
		"compressed_size", remote.CompressedSize,
		"output_folder", b.cfg.OutputFolder)

	return nil
}

// buildZip walks the input folder into a new ZIP, populating local.Files
// and local.UncompressedSize, and embeds a signed copy of local (with
// RemoteURLs cleared) as the archive's own manifest member.
func (b *Builder) buildZip(ctx context.Context, local *manifest.UpdateInfo) ([]byte, error) {
	var zipBuf bytes.Buffer

	zw := zip.NewWriter(&zipBuf)

	files, uncompressedSize, err := b.addInputFiles(ctx, zw)
	if err != nil {
		_ = zw.Close()
		return nil, err
	}

	files = append(files, buildIgnoreEntries(b.cfg.IgnorePaths)...)

	local.Files = files
	local.UncompressedSize = uncompressedSize

	embedded := *local
	embedded.RemoteURLs = nil

	embeddedData, err := manifest.Encode(&embedded)
	if err != nil {
		return nil, fmt.Errorf("encode embedded manifest: %w", err)
	}

	memberWriter, err := zw.Create(manifest.FileName)
	if err != nil {
		return nil, fmt.Errorf("create embedded manifest member: %w", err)
	}

	if err = signedstream.CreateSigned(bytes.NewReader(embeddedData), memberWriter, b.privateKey); err != nil {
		return nil, fmt.Errorf("sign embedded manifest: %w", err)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return zipBuf.Bytes(), nil
}

// addInputFiles walks the input folder, adding each non-ignored file to zw
// and returning its FileEntry table and total uncompressed size.
func (b *Builder) addInputFiles(ctx context.Context, zw *zip.Writer) ([]manifest.FileEntry, int64, error) {
	var (
		files            []manifest.FileEntry
		uncompressedSize int64
	)

	walkErr := filepath.WalkDir(b.cfg.InputFolder, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(b.cfg.InputFolder, absPath)
		if relErr != nil {
			return relErr
		}

		rel = toForwardSlash(rel)

		if rel == manifest.FileName || underAnyPrefix(rel, b.cfg.IgnorePaths) {
			return nil
		}

		data, readErr := os.ReadFile(absPath) //nolint:gosec // absPath comes from walking a trusted input folder.
		if readErr != nil {
			return fmt.Errorf("read %s: %w", rel, readErr)
		}

		sha, md := digestsOf(data)
		files = append(files, manifest.FileEntry{Path: rel, SHA256: sha, MD5: md})
		uncompressedSize += int64(len(data))

		logger.DebugKV(ctx, "adding file to package", "path", rel, "size", len(data))

		memberWriter, createErr := zw.Create(rel)
		if createErr != nil {
			return fmt.Errorf("create archive member %s: %w", rel, createErr)
		}

		if _, writeErr := io.Copy(memberWriter, bytes.NewReader(data)); writeErr != nil {
			return fmt.Errorf("write archive member %s: %w", rel, writeErr)
		}

		return nil
	})
	if walkErr != nil {
		return nil, 0, walkErr
	}

	return files, uncompressedSize, nil
}

// buildIgnoreEntries turns the configured ignore paths into unchanged
// ignore-marked FileEntry records, carried through to the manifest's file
// list verbatim.
func buildIgnoreEntries(ignorePaths []string) []manifest.FileEntry {
	entries := make([]manifest.FileEntry, 0, len(ignorePaths))

	for _, p := range ignorePaths {
		entries = append(entries, manifest.FileEntry{Path: toForwardSlash(p), Ignore: true})
	}

	return entries
}
