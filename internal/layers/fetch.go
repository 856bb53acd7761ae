package layers

import (
	"archive/zip"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/retry"
)

// Fetcher resolves a layer source to a local .shp path, downloading and
// extracting archives as needed. Downloads are cached under CacheDir.
type Fetcher struct {
	CacheDir string
	Timeout  time.Duration
}

func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{CacheDir: cacheDir, Timeout: 30 * time.Second}
}

// Resolve returns the path to the .shp file for a source. Local .shp paths
// pass through; local .zip and remote archives are extracted first.
func (f *Fetcher) Resolve(ctx context.Context, source string) (string, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "ftp") {
		zipPath, err := f.download(ctx, u)
		if err != nil {
			return "", err
		}
		return extractShapefile(zipPath)
	}
	if strings.HasSuffix(strings.ToLower(source), ".zip") {
		return extractShapefile(source)
	}
	if _, err := os.Stat(source); err != nil {
		return "", eris.Wrapf(err, "layers: source %s", source)
	}
	return source, nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL) (string, error) {
	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return "", eris.Wrap(err, "layers: create cache dir")
	}
	dest := filepath.Join(f.CacheDir, filepath.Base(u.Path))

	// A cached archive with content is reused.
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		zap.L().Debug("layers: archive cached", zap.String("path", dest))
		return dest, nil
	}

	zap.L().Info("layers: downloading archive", zap.String("url", u.String()))
	err := retry.Do(ctx, retry.Config{}, "layers.download", func(ctx context.Context) error {
		var rc io.ReadCloser
		var err error
		if u.Scheme == "ftp" {
			rc, err = f.ftpOpen(ctx, u)
		} else {
			rc, err = f.httpOpen(ctx, u)
		}
		if err != nil {
			return err
		}
		defer rc.Close()

		out, err := os.Create(dest)
		if err != nil {
			return eris.Wrap(err, "layers: create archive file")
		}
		defer out.Close()
		if _, err := io.Copy(out, rc); err != nil {
			return eris.Wrap(err, "layers: write archive")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (f *Fetcher) httpOpen(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	client := &http.Client{Timeout: 10 * time.Minute}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "layers: build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "layers: download")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, eris.Errorf("layers: download returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ftpConnReader ties the FTP data connection's lifetime to the reader so one
// Close releases both.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "layers: close ftp response")
	}
	return eris.Wrap(quitErr, "layers: quit ftp connection")
}

func (f *Fetcher) ftpOpen(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "layers: ftp dial")
	}
	user, pass := "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "layers: ftp login")
	}
	resp, err := conn.Retr(u.Path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "layers: ftp retrieve")
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// extractShapefile unpacks a zip archive next to itself and returns the
// first .shp member.
func extractShapefile(zipPath string) (string, error) {
	extractDir := strings.TrimSuffix(zipPath, filepath.Ext(zipPath))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "layers: create extract dir")
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "layers: open archive %s", zipPath)
	}
	defer r.Close()

	for _, member := range r.File {
		if member.FileInfo().IsDir() {
			continue
		}
		dest := filepath.Join(extractDir, filepath.Base(member.Name))
		rc, err := member.Open()
		if err != nil {
			return "", eris.Wrapf(err, "layers: open archive member %s", member.Name)
		}
		out, err := os.Create(dest)
		if err != nil {
			_ = rc.Close()
			return "", eris.Wrapf(err, "layers: create %s", dest)
		}
		if _, err := io.Copy(out, rc); err != nil {
			_ = out.Close()
			_ = rc.Close()
			return "", eris.Wrapf(err, "layers: extract %s", member.Name)
		}
		_ = out.Close()
		_ = rc.Close()
	}

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", eris.Wrap(err, "layers: read extract dir")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".shp") {
			return filepath.Join(extractDir, e.Name()), nil
		}
	}
	return "", eris.Errorf("layers: no .shp file in %s", zipPath)
}
