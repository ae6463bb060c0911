package gallery_archiver

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func TestDescriptor_Name(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("site", (&Descriptor{Category: "site"}).Name())
	assert.Equal("site:tag", (&Descriptor{Category: "site", Subcategory: "tag"}).Name())
	assert.Equal([]string{"extractor", "site", "tag"}, (&Descriptor{Category: "site", Subcategory: "tag"}).ConfigPath())
}

func TestMessages(t *testing.T) {
	assert := assert_.New(t)
	msgs, err := collect(Messages(Version{Version: 1}, Directory{}, URL{URL: "https://a/b.jpg"}))
	assert.NoError(err)
	assert.Len(msgs, 3)
	assert.Equal(URL{URL: "https://a/b.jpg"}, msgs[2])

	_, err = collect(Fail(ErrNotFound))
	assert.ErrorIs(err, ErrNotFound)
}

func TestPaginate(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()

	t.Run("stops when no more pages", func(t *testing.T) {
		items, err := collect(Paginate(ctx, func(ctx context.Context, page int) ([]int, bool, error) {
			return []int{page * 10, page*10 + 1}, page < 3, nil
		}))
		assert.NoError(err)
		assert.Equal([]int{10, 11, 20, 21, 30, 31}, items)
	})

	t.Run("stops on empty page", func(t *testing.T) {
		calls := 0
		items, err := collect(Paginate(ctx, func(ctx context.Context, page int) ([]int, bool, error) {
			calls++
			if page == 2 {
				return nil, true, nil
			}
			return []int{page}, true, nil
		}))
		assert.NoError(err)
		assert.Equal([]int{1}, items)
		assert.Equal(2, calls)
	})

	t.Run("stops on error", func(t *testing.T) {
		boom := errors.New("boom")
		items, err := collect(Paginate(ctx, func(ctx context.Context, page int) ([]int, bool, error) {
			if page == 2 {
				return nil, false, boom
			}
			return []int{page}, true, nil
		}))
		assert.ErrorIs(err, boom)
		assert.Equal([]int{1}, items)
	})

	t.Run("bounded by MaxPages", func(t *testing.T) {
		old := MaxPages
		MaxPages = 5
		defer func() { MaxPages = old }()
		items, err := collect(Paginate(ctx, func(ctx context.Context, page int) ([]int, bool, error) {
			return []int{page}, true, nil
		}))
		assert.NoError(err)
		assert.Len(items, 5)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := collect(Paginate(ctx, func(ctx context.Context, page int) ([]int, bool, error) {
			return []int{page}, true, nil
		}))
		assert.ErrorIs(err, context.Canceled)
	})
}

func TestEnv_Get(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(r.UserAgent()))
		case "/private":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	env := NewEnv(nil, nil, server.Client())
	resp, err := env.Get(context.Background(), server.URL+"/ok")
	if assert.NoError(err) {
		resp.Body.Close()
	}
	_, err = env.Get(context.Background(), server.URL+"/missing")
	assert.ErrorIs(err, ErrNotFound)
	_, err = env.Get(context.Background(), server.URL+"/private")
	assert.ErrorIs(err, ErrAuthRequired)
}
