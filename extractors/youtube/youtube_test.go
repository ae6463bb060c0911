package youtube

import (
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

func TestPatterns(t *testing.T) {
	r := gallery_archiver.NewRegistry()
	r.MustRegister(VideoDescriptor)
	r.MustRegister(PlaylistDescriptor)

	cases := []struct {
		url  string
		name string
		id   string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "youtube:video", "dQw4w9WgXcQ"},
		{"http://m.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "youtube:video", "dQw4w9WgXcQ"},
		{"https://youtube.com/details?v=dQw4w9WgXcQ", "youtube:video", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "youtube:video", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "youtube:video", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "youtube:video", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/playlist?list=PL1234567890", "youtube:playlist", ""},
		{"https://www.youtube.com/watch", "", ""},
		{"https://vimeo.com/12345", "", ""},
	}
	for _, c := range cases {
		t.Run(c.url, func(t *testing.T) {
			m := r.Find(c.url)
			if c.name == "" {
				assert_.Nil(t, m)
				return
			}
			require_.NotNil(t, m)
			assert_.Equal(t, c.name, m.Descriptor.Name())
			assert_.Equal(t, c.id, m.Group("id"))
		})
	}
}

func TestExtensionFromMime(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("mp4", extensionFromMime(`video/mp4; codecs="avc1.42001E, mp4a.40.2"`))
	assert.Equal("webm", extensionFromMime("video/webm"))
	assert.Equal("", extensionFromMime("bogus"))
}

func TestBestFormat(t *testing.T) {
	assert := assert_.New(t)
	assert.Nil(bestFormat(nil))
	formats := youtube.FormatList{{ItagNo: 18, Bitrate: 500}, {ItagNo: 22, Bitrate: 1500}, {ItagNo: 36, Bitrate: 100}}
	assert.Equal(22, bestFormat(formats).ItagNo)
}

func TestVideoMetadata(t *testing.T) {
	assert := assert_.New(t)
	video := &youtube.Video{
		ID:          "dQw4w9WgXcQ",
		Title:       "Title",
		Author:      "Author",
		Duration:    212 * time.Second,
		PublishDate: time.Date(2009, 10, 25, 0, 0, 0, 0, time.UTC),
	}
	meta := videoMetadata(video, &youtube.Format{ItagNo: 22, MimeType: "video/mp4", QualityLabel: "720p"})
	assert.Equal("dQw4w9WgXcQ", meta["id"])
	assert.Equal(212, meta["duration"])
	assert.Equal("2009-10-25", meta["date"])
	assert.Equal("mp4", meta["extension"])
	assert.Equal("720p", meta["quality"])
}

func TestPlaylistQueue(t *testing.T) {
	assert := assert_.New(t)
	playlist := &youtube.Playlist{
		ID:     "PL1",
		Title:  "List",
		Videos: []*youtube.PlaylistEntry{{ID: "aaaaaaaaaaa"}, {ID: "bbbbbbbbbbb"}},
	}
	msgs := playlistQueue(playlist)
	require_.Len(t, msgs, 2)
	q := msgs[1].(gallery_archiver.Queue)
	assert.Equal("https://www.youtube.com/watch?v=bbbbbbbbbbb", q.URL)
	assert.Equal("youtube:video", q.Metadata.Extractor())
	assert.Equal(2, q.Metadata["num"])
}
