package facility

import (
	"io"
	"mime"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeCharset transcodes body to UTF-8 when contentType declares another
// charset. Bodies without a charset parameter pass through unchanged.
func decodeCharset(body io.ReadCloser, contentType string) (io.ReadCloser, error) {
	if contentType == "" {
		return body, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		body.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "facility: unsupported charset %q", charset)
	}
	return readCloser{Reader: enc.NewDecoder().Reader(body), Closer: body}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
