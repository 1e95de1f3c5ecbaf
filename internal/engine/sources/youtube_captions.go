package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_vidqa/internal/engine"
	"golang.org/x/time/rate"
)

// YouTube caption fetching.
// Primary:  watch page → ytInitialPlayerResponse → captionTracks
// Fallback: ANDROID Innertube /player → captionTracks, also when the watch
// page is playable but carries no caption list
// Either way the chosen track's timedtext XML is downloaded and parsed.

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// YouTube is an engine.CaptionSource backed by youtube.com.
type YouTube struct {
	HTTPClient *http.Client
	Browser    *engine.BrowserClient // optional; used for the watch page when set
	Limiter    *rate.Limiter         // optional; paces upstream requests
	Retry      engine.RetryConfig

	WatchURL  string
	PlayerURL string
}

// NewYouTube returns a caption source with production endpoints.
// requestsPerSecond <= 0 disables pacing.
func NewYouTube(client *http.Client, browser *engine.BrowserClient, requestsPerSecond float64) *YouTube {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	y := &YouTube{
		HTTPClient: client,
		Browser:    browser,
		Retry:      engine.DefaultRetryConfig,
		WatchURL:   ytWatchURL,
		PlayerURL:  ytPlayerURL,
	}
	if requestsPerSecond > 0 {
		y.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 2)
	}
	return y
}

// FetchCaptions implements engine.CaptionSource.
//
// With langs, it returns the first track matching a preferred language (manual
// before auto-generated for each language) or engine.ErrNoPreferredTrack.
// Without langs, it returns the video's default track.
func (y *YouTube) FetchCaptions(ctx context.Context, videoID string, langs []string) (engine.CaptionTrack, error) {
	player, err := y.playerResponse(ctx, videoID)
	if err != nil {
		return engine.CaptionTrack{}, err
	}

	all := player.tracks()
	if len(all) == 0 {
		return engine.CaptionTrack{}, fmt.Errorf("video %s: %w", videoID, engine.ErrCaptionsDisabled)
	}
	usable := make([]captionTrack, 0, len(all))
	for _, t := range all {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return engine.CaptionTrack{}, fmt.Errorf("video %s: all caption tracks require PoToken: %w", videoID, engine.ErrCaptionsUnavailable)
	}

	var track captionTrack
	if len(langs) > 0 {
		var ok bool
		track, ok = pickPreferredTrack(usable, langs)
		if !ok {
			return engine.CaptionTrack{}, fmt.Errorf("video %s %v: %w", videoID, langs, engine.ErrNoPreferredTrack)
		}
	} else {
		track = pickDefaultTrack(usable)
	}

	entries, err := y.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return engine.CaptionTrack{}, fmt.Errorf("video %s [%s]: %w", videoID, track.LanguageCode, err)
	}
	if len(entries) == 0 {
		return engine.CaptionTrack{}, fmt.Errorf("video %s [%s]: empty timedtext: %w", videoID, track.LanguageCode, engine.ErrCaptionsUnavailable)
	}
	return engine.CaptionTrack{
		VideoID:   videoID,
		Language:  track.LanguageCode,
		Generated: track.generated(),
		Entries:   entries,
	}, nil
}

// playerResponse tries the watch page, then the ANDROID player API.
// A watch page without caption tracks is confirmed against the player API
// before the video is reported as captionless. A video that is unplayable
// to both is reported as unavailable.
func (y *YouTube) playerResponse(ctx context.Context, videoID string) (playerResp, error) {
	var watch *playerResp
	pr, err := y.watchPagePlayer(ctx, videoID)
	if err == nil {
		ok, reason := pr.playable()
		switch {
		case ok && len(pr.tracks()) > 0:
			return pr, nil
		case ok:
			watch = &pr
			err = errors.New("watch page lists no caption tracks")
		default:
			err = fmt.Errorf("watch page playability: %s", reason)
		}
	}
	if ctx.Err() != nil {
		return playerResp{}, ctx.Err()
	}
	slog.Warn("youtube: watch page failed, trying player API",
		slog.String("id", videoID), slog.Any("error", err))

	player, err := y.androidPlayer(ctx, videoID)
	if err != nil {
		if watch != nil && ctx.Err() == nil {
			return *watch, nil
		}
		return playerResp{}, fmt.Errorf("player API: %w", err)
	}
	if ok, reason := player.playable(); !ok {
		if watch != nil {
			return *watch, nil
		}
		return playerResp{}, fmt.Errorf("video %s: %s: %w", videoID, reason, engine.ErrCaptionsUnavailable)
	}
	return player, nil
}

// wait paces and counts one upstream request.
func (y *YouTube) wait(ctx context.Context) error {
	engine.IncrYouTubeRequests()
	if y.Limiter == nil {
		return nil
	}
	return y.Limiter.Wait(ctx)
}

// watchPagePlayer scrapes ytInitialPlayerResponse from the watch page HTML.
func (y *YouTube) watchPagePlayer(ctx context.Context, videoID string) (playerResp, error) {
	watchURL := y.WatchURL + "?" + url.Values{"v": {videoID}, "hl": {"en"}}.Encode()

	var body []byte
	if y.Browser != nil {
		b, err := engine.RetryDo(ctx, y.Retry, func() ([]byte, error) {
			if err := y.wait(ctx); err != nil {
				return nil, err
			}
			data, status, err := engine.BrowserDo(ctx, y.Browser, http.MethodGet, watchURL, engine.WatchPageHeaders(), nil)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("watch page: HTTP %d", status)
			}
			return data, nil
		})
		if err != nil {
			return playerResp{}, err
		}
		body = b
	} else {
		resp, err := engine.RetryHTTP(ctx, y.Retry, func() (*http.Response, error) {
			if err := y.wait(ctx); err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
			if err != nil {
				return nil, err
			}
			for k, v := range engine.WatchPageHeaders() {
				req.Header.Set(k, v)
			}
			// net/http only decompresses transparently when it sets Accept-Encoding itself.
			req.Header.Del("accept-encoding")
			return y.HTTPClient.Do(req)
		})
		if err != nil {
			return playerResp{}, fmt.Errorf("watch page: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return playerResp{}, fmt.Errorf("watch page: HTTP %d", resp.StatusCode)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
		if err != nil {
			return playerResp{}, fmt.Errorf("read watch page: %w", err)
		}
	}

	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return playerResp{}, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return playerResp{}, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}
	var pr playerResp
	if err := json.Unmarshal(jsonData, &pr); err != nil {
		return playerResp{}, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return pr, nil
}

// androidPlayer uses the ANDROID Innertube /player endpoint.
func (y *YouTube) androidPlayer(ctx context.Context, videoID string) (playerResp, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return playerResp{}, err
	}

	resp, err := engine.RetryHTTP(ctx, y.Retry, func() (*http.Response, error) {
		if err := y.wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.PlayerURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", engine.UserAgentAndroid)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return y.HTTPClient.Do(req)
	})
	if err != nil {
		return playerResp{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return playerResp{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}

	var pr playerResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 3*1024*1024)).Decode(&pr); err != nil {
		return playerResp{}, fmt.Errorf("decode player: %w", err)
	}
	return pr, nil
}

// fetchTimedText downloads and parses a timedtext XML caption URL.
func (y *YouTube) fetchTimedText(ctx context.Context, baseURL string) ([]engine.CaptionEntry, error) {
	resp, err := engine.RetryHTTP(ctx, y.Retry, func() (*http.Response, error) {
		if err := y.wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		return y.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch timedtext: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return parseTimedText(body)
}

// parseTimedText converts classic or srv3 timedtext XML into caption entries,
// dropping lines that are empty after cleanup.
func parseTimedText(body []byte) ([]engine.CaptionEntry, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	entries := make([]engine.CaptionEntry, 0, len(tt.Lines)+len(tt.Body.Paras))
	for _, line := range tt.Lines {
		text := engine.CleanCaptionText(line.Text)
		if text == "" {
			continue
		}
		entries = append(entries, engine.CaptionEntry{
			Text:     text,
			Start:    parseSeconds(line.Start),
			Duration: parseSeconds(line.Dur),
		})
	}
	for _, p := range tt.Body.Paras {
		raw := p.Text
		for _, s := range p.Spans {
			raw += s.Text
		}
		text := engine.CleanCaptionText(raw)
		if text == "" {
			continue
		}
		entries = append(entries, engine.CaptionEntry{
			Text:     text,
			Start:    parseMillis(p.T),
			Duration: parseMillis(p.D),
		})
	}
	return entries, nil
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func parseMillis(s string) time.Duration {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// languageMatches treats "en-US" and "en" as the same language for preference purposes.
func languageMatches(code, want string) bool {
	code, want = strings.ToLower(code), strings.ToLower(want)
	return code == want || strings.HasPrefix(code, want+"-")
}

// pickPreferredTrack walks langs in order; for each language a manual track
// wins over an auto-generated one.
func pickPreferredTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	for _, lang := range langs {
		for _, t := range tracks {
			if !t.generated() && languageMatches(t.LanguageCode, lang) {
				return t, true
			}
		}
		for _, t := range tracks {
			if t.generated() && languageMatches(t.LanguageCode, lang) {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

// pickDefaultTrack returns the first manual track, else the first track.
func pickDefaultTrack(tracks []captionTrack) captionTrack {
	for _, t := range tracks {
		if !t.generated() {
			return t
		}
	}
	return tracks[0]
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
