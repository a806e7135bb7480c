package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/errs"
)

const articlesJSON = `{"status": "ok", "articles": [
	{"source": {"name": "Reuters"}, "title": "Markets rally", "url": "https://example.com/a", "publishedAt": "2026-10-18T09:00:00Z"},
	{"source": {"name": ""}, "title": "[Removed]", "url": "https://removed.com"},
	{"source": {"name": ""}, "title": "Local team wins", "url": "https://example.com/b", "urlToImage": "https://example.com/b.jpg"},
	{"source": {"name": "AP"}, "title": "", "url": "https://example.com/c"}
]}`

func TestNewsAPI_Headlines(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		wantPath string
		wantQ    string
	}{
		{name: "top headlines", topic: "top headlines", wantPath: "/v2/top-headlines"},
		{name: "general", topic: "General", wantPath: "/v2/top-headlines"},
		{name: "topic search", topic: "electric cars", wantPath: "/v2/everything", wantQ: "electric cars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, tt.wantQ, r.URL.Query().Get("q"))
				assert.Equal(t, "en", r.URL.Query().Get("language"))
				assert.Equal(t, "news-key", r.Header.Get("X-Api-Key"))
				_, _ = w.Write([]byte(articlesJSON))
			}))
			defer srv.Close()

			n, err := New(Config{APIKey: "news-key", BaseURL: srv.URL + "/v2"})
			require.NoError(t, err)

			articles, err := n.Headlines(context.Background(), tt.topic)
			require.NoError(t, err)
			require.Len(t, articles, 2)
			assert.Equal(t, "Markets rally", articles[0].Title)
			assert.Equal(t, "Reuters", articles[0].Source)
			assert.Equal(t, 2026, articles[0].PublishedAt.Year())
			assert.Equal(t, "News Source", articles[1].Source)
			assert.Equal(t, "https://example.com/b.jpg", articles[1].ImageURL)
		})
	}
}

func TestNewsAPI_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}
