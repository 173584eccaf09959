// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"

	"github.com/goplus/pkgsmith/internal/errors"
)

// download saves url into a temporary file in dir and returns its path and
// SHA-256.
func (f *Fetcher) download(ctx context.Context, url, dir string) (path, digest string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", errors.Fetch(err, "build request for %s", url)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", errors.Fetch(err, "download %s", url).With("url", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", errors.Fetch(nil, "download %s: %s", url, resp.Status).
			With("url", url).With("status", resp.StatusCode)
	}

	out, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", "", errors.Fetch(err, "create temporary file")
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(out.Name())
		}
	}()

	h := sha256.New()
	if _, err = io.Copy(io.MultiWriter(out, h), resp.Body); err != nil {
		return "", "", errors.Fetch(err, "download %s", url).With("url", url)
	}
	if err = out.Close(); err != nil {
		return "", "", errors.Fetch(err, "write %s", out.Name())
	}
	return out.Name(), hex.EncodeToString(h.Sum(nil)), nil
}
