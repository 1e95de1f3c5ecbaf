package sources

// YouTube player API: low-level constants and wire types.
// Caption selection and fetching live in youtube_captions.go.

const (
	ytWatchURL       = "https://www.youtube.com/watch"
	ytPlayerURL      = "https://www.youtube.com/youtubei/v1/player"
	ytAndroidVersion = "20.10.38"
)

// --- ANDROID client types (/player endpoint) ---

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

// playerResp is shared by ytInitialPlayerResponse on the watch page and /player.
type playerResp struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// playable reports whether YouTube will serve the video to this client.
// A missing status is treated as playable.
func (p playerResp) playable() (bool, string) {
	if p.PlayabilityStatus == nil || p.PlayabilityStatus.Status == "" || p.PlayabilityStatus.Status == "OK" {
		return true, ""
	}
	reason := p.PlayabilityStatus.Reason
	if reason == "" {
		reason = p.PlayabilityStatus.Status
	}
	return false, reason
}

func (p playerResp) tracks() []captionTrack {
	if p.Captions == nil {
		return nil
	}
	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

func (t captionTrack) generated() bool { return t.Kind == "asr" }

// --- Timedtext XML types ---

// Classic format: <transcript><text start="1.2" dur="3.4">...</text></transcript>
// srv3 format:    <timedtext format="3"><body><p t="1200" d="3400">...</p></body></timedtext>
type ytTimedText struct {
	Lines []ytLine `xml:"text"`
	Body  struct {
		Paras []ytPara `xml:"p"`
	} `xml:"body"`
}

type ytLine struct {
	Start string `xml:"start,attr"` // seconds
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

type ytPara struct {
	T     string `xml:"t,attr"` // milliseconds
	D     string `xml:"d,attr"`
	Text  string `xml:",chardata"`
	Spans []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}
