package processor

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// maxDownloadSize limits the body of a downloaded source.
const maxDownloadSize = 1 << 30

// isRemote reports whether location is an HTTP(S) URL.
func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// fetch downloads a source and returns its body together with a file name
// taken from the URL path, used as the format hint.
func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", errors.Wrap(err, "parse url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	log.Debug().Str("url", rawURL).Msg("Downloading source")
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, "", errors.Wrapf(err, "download %s", rawURL)
	}
	if len(data) > maxDownloadSize {
		return nil, "", errors.Errorf("download %s: body exceeds %d bytes", rawURL, maxDownloadSize)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = ""
	}
	return data, name, nil
}
