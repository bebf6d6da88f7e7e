package supervisor

import (
	"github.com/otterwire/nimbusupdate/catalog"
	"github.com/otterwire/nimbusupdate/fetcher"
	"github.com/otterwire/nimbusupdate/installer"
	"github.com/otterwire/nimbusupdate/manifest"
)

// Context is the small process-wide service the supervisor threads into
// every operation: install_root/installed_base_dir, the catalog, fetcher
// and installer collaborators, the channel to check against, and the
// single error listener. One Context is constructed at startup and lives
// for the process's lifetime.
type Context struct {
	AppName          string
	InstallRoot      string
	InstalledBaseDir string
	Channel          manifest.ReleaseType

	Catalog   *catalog.Catalog
	Fetcher   *fetcher.Fetcher
	Installer *installer.Installer

	// Lock is the held install_root single-instance guard, acquired by the
	// process that constructed this Context. It may be nil when the host
	// is known to be single-instance by other means.
	Lock *installer.Lock

	// OnError receives every recoverable error event raised while checking
	// for or installing an update. It may be nil.
	OnError func(err error)
}

// NewContext checks that installedBaseDir is set and returns a ready-to-use
// Context. The collaborators are stored as given; they are not checked for
// nil.
func NewContext(
	appName, installRoot, installedBaseDir string,
	channel manifest.ReleaseType,
	cat *catalog.Catalog,
	f *fetcher.Fetcher,
	in *installer.Installer,
	lock *installer.Lock,
	onError func(error),
) (*Context, error) {
	if installedBaseDir == "" {
		return nil, errInstalledBaseDirRequired
	}

	return &Context{
		AppName:          appName,
		InstallRoot:      installRoot,
		InstalledBaseDir: installedBaseDir,
		Channel:          channel,
		Catalog:          cat,
		Fetcher:          f,
		Installer:        in,
		Lock:             lock,
		OnError:          onError,
	}, nil
}

func (c *Context) reportError(err error) {
	if c == nil || err == nil || c.OnError == nil {
		return
	}

	c.OnError(err)
}
