// Package youtube extracts single videos and playlists from YouTube.
package youtube

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

// CacheTTL is how long a resolved video stays in the cache. Stream URLs expire after a few hours.
var CacheTTL = time.Hour

const cacheNamespace = "youtube"

var VideoDescriptor = gallery_archiver.Descriptor{
	Category:     "youtube",
	Subcategory:  "video",
	Pattern:      regexp.MustCompile(`https?://(?:(?:www\.|m\.)?youtube\.com/(?:(?:watch|details)\?(?:[^#]*&)?v=|v/|shorts/)|youtu\.be/)(?P<id>[\w-]{11})`),
	DirectoryFmt: []string{"{{.category}}", "{{.author}}"},
	FilenameFmt:  `{{.title}} [{{.id}}].{{.extension}}`,
	New:          NewVideo,
}

var PlaylistDescriptor = gallery_archiver.Descriptor{
	Category:    "youtube",
	Subcategory: "playlist",
	Pattern:     regexp.MustCompile(`https?://(?:www\.|m\.)?youtube\.com/playlist\?(?:[^#]*&)?list=(?P<list>[\w-]+)`),
	New:         NewPlaylist,
}

// VideoURL is the canonical watch URL for a video ID.
func VideoURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", id)
}

// resolved is what gets cached for a video.
type resolved struct {
	StreamURL string
	Metadata  gallery_archiver.Metadata
}

type videoExtractor struct {
	id     string
	client *youtube.Client
	env    *gallery_archiver.Env
}

func NewVideo(match *gallery_archiver.Match, env *gallery_archiver.Env) (gallery_archiver.Extractor, error) {
	return &videoExtractor{
		id:     match.Group("id"),
		client: &youtube.Client{HTTPClient: env.Client},
		env:    env,
	}, nil
}

func (e *videoExtractor) Items(ctx context.Context) iter.Seq2[gallery_archiver.Message, error] {
	return func(yield func(gallery_archiver.Message, error) bool) {
		r, err := e.resolve(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		directory := gallery_archiver.Metadata{"id": r.Metadata["id"], "author": r.Metadata["author"]}
		_ = yield(gallery_archiver.Version{Version: gallery_archiver.SupportedVersion}, nil) &&
			yield(gallery_archiver.Directory{Metadata: directory}, nil) &&
			yield(gallery_archiver.URL{URL: r.StreamURL, Metadata: r.Metadata}, nil)
	}
}

func (e *videoExtractor) resolve(ctx context.Context) (*resolved, error) {
	var r resolved
	if found, err := e.env.Cache.Get(cacheNamespace, e.id, &r); err != nil {
		e.env.Log.Warnw("cache lookup failed", "id", e.id, "error", err)
	} else if found {
		return &r, nil
	}

	video, err := e.client.GetVideoContext(ctx, VideoURL(e.id))
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	format := bestFormat(video.Formats.WithAudioChannels())
	if format == nil {
		return nil, fmt.Errorf("%s: no format with audio: %w", e.id, gallery_archiver.ErrNotFound)
	}
	streamURL, err := e.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream url: %w", err)
	}
	r = resolved{
		StreamURL: streamURL,
		Metadata:  videoMetadata(video, format),
	}
	if err := e.env.Cache.Set(cacheNamespace, e.id, &r, CacheTTL); err != nil {
		e.env.Log.Warnw("cache store failed", "id", e.id, "error", err)
	}
	return &r, nil
}

// bestFormat picks the highest bitrate.
func bestFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

// extensionFromMime turns `video/mp4; codecs="..."` into "mp4".
func extensionFromMime(mimeType string) string {
	mediaType, _, _ := strings.Cut(mimeType, ";")
	_, subtype, found := strings.Cut(strings.TrimSpace(mediaType), "/")
	if !found {
		return ""
	}
	return subtype
}

func videoMetadata(video *youtube.Video, format *youtube.Format) gallery_archiver.Metadata {
	meta := gallery_archiver.Metadata{
		"id":          video.ID,
		"title":       video.Title,
		"author":      video.Author,
		"description": video.Description,
		"duration":    int(video.Duration.Seconds()),
		"views":       video.Views,
		"quality":     format.QualityLabel,
		"itag":        format.ItagNo,
		"extension":   extensionFromMime(format.MimeType),
	}
	if !video.PublishDate.IsZero() {
		meta["date"] = video.PublishDate.Format(time.DateOnly)
	}
	return meta
}

type playlistExtractor struct {
	url    string
	client *youtube.Client
}

func NewPlaylist(match *gallery_archiver.Match, env *gallery_archiver.Env) (gallery_archiver.Extractor, error) {
	return &playlistExtractor{
		url:    match.URL,
		client: &youtube.Client{HTTPClient: env.Client},
	}, nil
}

func (e *playlistExtractor) Items(ctx context.Context) iter.Seq2[gallery_archiver.Message, error] {
	return func(yield func(gallery_archiver.Message, error) bool) {
		playlist, err := e.client.GetPlaylistContext(ctx, e.url)
		if err != nil {
			yield(nil, fmt.Errorf("failed to get playlist: %w", err))
			return
		}
		if !yield(gallery_archiver.Version{Version: gallery_archiver.SupportedVersion}, nil) {
			return
		}
		for _, msg := range playlistQueue(playlist) {
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// playlistQueue turns each entry into a Queue message bound to the video extractor.
func playlistQueue(playlist *youtube.Playlist) []gallery_archiver.Message {
	msgs := make([]gallery_archiver.Message, 0, len(playlist.Videos))
	for i, entry := range playlist.Videos {
		msgs = append(msgs, gallery_archiver.Queue{
			URL: VideoURL(entry.ID),
			Metadata: gallery_archiver.Metadata{
				gallery_archiver.KeyExtractor: VideoDescriptor.Name(),
				"playlist":                    playlist.Title,
				"playlist_id":                 playlist.ID,
				"num":                         i + 1,
			},
		})
	}
	return msgs
}

func init() {
	gallery_archiver.Register(VideoDescriptor)
	gallery_archiver.Register(PlaylistDescriptor)
}
