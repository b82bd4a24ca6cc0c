package pkistore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/turtacn/certgate/pkg/logger"
)

// BootstrapOptions describes the start-up preparation of the easy-rsa directory.
type BootstrapOptions struct {
	PendingDir    string
	EasyRSASource string
	TemplateDir   string
}

// templateFiles are copied from TemplateDir into the root when absent.
var templateFiles = []string{"vars", "openssl-easyrsa.cnf"}

// Bootstrap prepares the easy-rsa directory: required directories, the easyrsa
// symlink and the template files. Each step is skipped when its target already
// exists; failures are logged and the remaining steps still run.
func Bootstrap(ctx context.Context, l Layout, opts BootstrapOptions, log logger.Logger) error {
	var errs []error

	for _, dir := range []string{l.Root, opts.PendingDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			errs = append(errs, err)
			log.Warn(ctx, "Failed to create directory", logger.String("path", dir), logger.Error(err))
		}
	}

	link := filepath.Join(l.Root, "easyrsa")
	if opts.EasyRSASource != "" && !exists(link) && exists(opts.EasyRSASource) {
		if err := os.Symlink(opts.EasyRSASource, link); err != nil {
			errs = append(errs, err)
			log.Warn(ctx, "Failed to create easyrsa symlink", logger.Error(err))
		} else {
			log.Info(ctx, "Easy-RSA symlink created", logger.String("target", opts.EasyRSASource))
		}
	}

	if opts.TemplateDir != "" {
		for _, name := range templateFiles {
			src := filepath.Join(opts.TemplateDir, name)
			dst := filepath.Join(l.Root, name)
			if exists(dst) || !exists(src) {
				continue
			}
			if err := copyFile(src, dst, 0o644); err != nil {
				errs = append(errs, err)
				log.Warn(ctx, "Failed to copy template", logger.String("file", name), logger.Error(err))
				continue
			}
			log.Info(ctx, "Template copied", logger.String("file", name))
		}
	}

	return errors.Join(errs...)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// copyFile copies src to dst, replacing dst.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
