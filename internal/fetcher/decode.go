package fetcher

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
)

// decodeContent undoes the Content-Encoding applied by the server. Unknown
// encodings are passed through.
func decodeContent(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: gzip reader")
		}
		return zr, nil
	case "deflate":
		return deflateReader(r)
	case "br":
		return brotli.NewReader(r), nil
	default:
		return r, nil
	}
}

// deflateReader reads a "deflate" body. Servers should send zlib-wrapped
// data but some send raw DEFLATE, so the zlib header is checked first.
func deflateReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil && len(head) == 0 {
		if err == io.EOF {
			return br, nil
		}
		return nil, eris.Wrap(err, "fetcher: deflate header")
	}
	if isZlibHeader(head) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: zlib reader")
		}
		return zr, nil
	}
	return flate.NewReader(br), nil
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair: deflate method, a window
// of at most 32K and a header checksum divisible by 31.
func isZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// isHTML reports whether a Content-Type header names an HTML document. An
// empty header is treated as HTML since many small sites omit it.
func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}

// toUTF8 transcodes an HTML body to UTF-8 using the Content-Type charset,
// a BOM or a <meta charset> declaration. Bodies that cannot be transcoded
// are returned unchanged.
func toUTF8(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return out
}
