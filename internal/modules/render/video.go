package render

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

// VideoKind is the result of matching a video URL.
type VideoKind string

const (
	VideoEmpty       VideoKind = "empty"
	VideoYouTube     VideoKind = "youtube"
	VideoVimeo       VideoKind = "vimeo"
	VideoBilibili    VideoKind = "bilibili"
	VideoFile        VideoKind = "file"
	VideoIframe      VideoKind = "iframe"
	VideoUnsupported VideoKind = "unsupported"
)

var (
	youtubeID  = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
	vimeoID    = regexp.MustCompile(`^\d+$`)
	bilibiliBV = regexp.MustCompile(`^BV[0-9A-Za-z]{10}$`)
	bilibiliAV = regexp.MustCompile(`^av(\d+)$`)

	mediaExtensions = map[string]string{
		".mp4":  "video/mp4",
		".m4v":  "video/mp4",
		".webm": "video/webm",
		".ogg":  "video/ogg",
		".ogv":  "video/ogg",
		".mov":  "video/quicktime",
	}
)

// Video is a matched video URL with the URL to embed.
type Video struct {
	Kind  VideoKind
	Embed string
	Mime  string
}

// MatchVideo runs the platform priority order: YouTube, Vimeo, Bilibili,
// direct media file, generic iframe.
func MatchVideo(raw string) Video {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Video{Kind: VideoEmpty}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Video{Kind: VideoUnsupported}
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	if id := youtubeVideoID(host, u, segments); id != "" {
		return Video{Kind: VideoYouTube, Embed: "https://www.youtube-nocookie.com/embed/" + id}
	}
	if host == "vimeo.com" || host == "player.vimeo.com" {
		for i := len(segments) - 1; i >= 0; i-- {
			if vimeoID.MatchString(segments[i]) {
				return Video{Kind: VideoVimeo, Embed: "https://player.vimeo.com/video/" + segments[i]}
			}
		}
	}
	if host == "bilibili.com" && len(segments) >= 2 && segments[0] == "video" {
		id := segments[1]
		if bilibiliBV.MatchString(id) {
			return Video{Kind: VideoBilibili, Embed: "https://player.bilibili.com/player.html?bvid=" + id}
		}
		if m := bilibiliAV.FindStringSubmatch(id); m != nil {
			return Video{Kind: VideoBilibili, Embed: "https://player.bilibili.com/player.html?aid=" + m[1]}
		}
	}
	if mime, ok := mediaExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
		return Video{Kind: VideoFile, Embed: raw, Mime: mime}
	}
	return Video{Kind: VideoIframe, Embed: raw}
}

func youtubeVideoID(host string, u *url.URL, segments []string) string {
	var id string
	switch host {
	case "youtu.be":
		if len(segments) > 0 {
			id = segments[0]
		}
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
		switch {
		case len(segments) == 1 && segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "embed" || segments[0] == "shorts" || segments[0] == "live" || segments[0] == "v"):
			id = segments[1]
		}
	}
	if !youtubeID.MatchString(id) {
		return ""
	}
	return id
}

type videoContent struct{ video Video }

func (videoContent) Type() models.BlockType { return models.BlockVideo }

func decodeVideo(data string) videoContent { return videoContent{MatchVideo(data)} }

func (v videoContent) render(*Context) string {
	switch v.video.Kind {
	case VideoEmpty:
		return placeholder("video", "No video URL")
	case VideoUnsupported:
		return placeholder("video", "Unsupported video URL")
	case VideoFile:
		return fmt.Sprintf(`<div class="video-block video-file"><video controls preload="metadata"><source src="%s" type="%s" /></video></div>`,
			esc(v.video.Embed), v.video.Mime)
	default:
		return fmt.Sprintf(`<div class="video-block video-%s"><iframe src="%s" loading="lazy" allowfullscreen frameborder="0" allow="autoplay; encrypted-media; picture-in-picture"></iframe></div>`,
			v.video.Kind, esc(v.video.Embed))
	}
}
