package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// audioExtensions is tried in order when resolving a song file.
var audioExtensions = []string{".flac", ".m4a"}

var rangeRe = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// retryable statuses for cloud asset fetches.
var retryableStatus = map[int]bool{
	408: true, 429: true, 500: true, 502: true,
	503: true, 504: true, 520: true, 522: true, 524: true,
}

const (
	fetchAttempts    = 3
	fetchBackoffStep = 200 * time.Millisecond
	fetchTimeout     = 8 * time.Second
)

func knownAudioExtension(ext string) bool {
	for _, known := range audioExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// isSafeSegment reports whether name can be used as a single path segment
// under the albums root.
func isSafeSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".lrc":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// resolveAudioFile finds the song's file under the album directory, trying
// each known extension.
func (s *Server) resolveAudioFile(album, song string) (string, error) {
	for _, ext := range audioExtensions {
		path := filepath.Join(s.cfg.Assets.AlbumsDir, album, song+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", os.ErrNotExist
}

func (s *Server) cloudAssetURL(album, file string) string {
	base := strings.TrimRight(s.cfg.Assets.BaseURL, "/")
	parts := []string{base}
	if prefix := strings.Trim(s.cfg.Assets.Prefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, url.PathEscape(album), url.PathEscape(file))
	return strings.Join(parts, "/")
}

// handleAudio serves one song with byte-range support, or redirects to cloud
// storage when assets live there.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	album := r.URL.Query().Get("album")
	song := r.URL.Query().Get("song")
	if !isSafeSegment(album) || !isSafeSegment(song) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid album or song"})
		return
	}

	if strings.EqualFold(s.cfg.Assets.Source, "cloud") {
		// The object store handles ranges itself. The client names the
		// container via ext= when the object is not a flac.
		ext := audioExtensions[0]
		if hint := r.URL.Query().Get("ext"); hint != "" {
			ext = "." + strings.ToLower(strings.TrimPrefix(hint, "."))
			if !knownAudioExtension(ext) {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "unsupported audio extension"})
				return
			}
		}
		http.Redirect(w, r, s.cloudAssetURL(album, song+ext), http.StatusTemporaryRedirect)
		return
	}

	path, err := s.resolveAudioFile(album, song)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "song not found"})
		return
	}
	s.serveFileRange(w, r, path)
}

// serveFileRange implements the byte-range subset the player needs:
// bytes=start-end, bytes=start- and the suffix form bytes=-n. Unsatisfiable
// or malformed ranges answer 416 with the total size.
func (s *Server) serveFileRange(w http.ResponseWriter, r *http.Request, path string) {
	file, err := os.Open(path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "song not found"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeFor(path))

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return
	}

	start, end, ok := parseRange(rangeHeader, size)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, file, length)
}

// parseRange resolves a Range header against the file size. The end is
// clamped to size-1; a start past the end of the file is unsatisfiable.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	match := rangeRe.FindStringSubmatch(header)
	if match == nil || size == 0 {
		return 0, 0, false
	}
	rawStart, rawEnd := match[1], match[2]

	switch {
	case rawStart == "" && rawEnd == "":
		return 0, 0, false
	case rawStart == "":
		// Suffix form: the last n bytes.
		n, err := strconv.ParseInt(rawEnd, 10, 64)
		if err != nil || n == 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	default:
		var err error
		start, err = strconv.ParseInt(rawStart, 10, 64)
		if err != nil || start >= size {
			return 0, 0, false
		}
		end = size - 1
		if rawEnd != "" {
			end, err = strconv.ParseInt(rawEnd, 10, 64)
			if err != nil || end < start {
				return 0, 0, false
			}
			if end > size-1 {
				end = size - 1
			}
		}
		return start, end, true
	}
}

// handleLyrics serves the song's raw .lrc file, locally or from cloud
// storage with bounded retries.
func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	album := r.URL.Query().Get("album")
	song := r.URL.Query().Get("song")
	if !isSafeSegment(album) || !isSafeSegment(song) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid album or song"})
		return
	}

	if strings.EqualFold(s.cfg.Assets.Source, "cloud") {
		text, status, err := fetchTextWithRetry(r.Context(), s.cloudAssetURL(album, song+".lrc"))
		if err != nil {
			s.logger.Warn("lyrics fetch failed", "album", album, "song", song, "error", err)
			writeJSON(w, http.StatusBadGateway, errorBody{Error: "lyrics unavailable"})
			return
		}
		if status == http.StatusNotFound {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "lyrics not found"})
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(text))
		return
	}

	path := filepath.Join(s.cfg.Assets.AlbumsDir, album, song+".lrc")
	data, err := os.ReadFile(path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "lyrics not found"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

// isRetryableNetErr matches transient transport failures worth another
// attempt.
func isRetryableNetErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused")
}

// fetchTextWithRetry fetches a small text asset with bounded retries. Only
// retryable statuses and transient network errors are retried; a 404 is
// returned immediately as a result, never retried.
func fetchTextWithRetry(ctx context.Context, assetURL string) (string, int, error) {
	client := &http.Client{Timeout: fetchTimeout}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * fetchBackoffStep):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
		if err != nil {
			return "", 0, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if isRetryableNetErr(err) {
				continue
			}
			return "", 0, err
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return string(body), resp.StatusCode, nil
		case resp.StatusCode == http.StatusNotFound:
			return "", resp.StatusCode, nil
		case retryableStatus[resp.StatusCode]:
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, assetURL)
			continue
		default:
			return "", resp.StatusCode, fmt.Errorf("status %d from %s", resp.StatusCode, assetURL)
		}
	}
	return "", 0, fmt.Errorf("all %d attempts failed: %w", fetchAttempts, lastErr)
}
