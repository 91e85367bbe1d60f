package hostsite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/whttp"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractSteamProfileURL(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "steam64 in account item",
			html: `<ul><li>Discord: x#1</li><li>Counter Strike 2 76561198855025047</li></ul>`,
			want: "https://steamcommunity.com/profiles/76561198855025047",
		},
		{
			name: "longest digit run",
			html: `<ul><li>Counter Strike 2 id 12345 or 123456789</li></ul>`,
			want: "https://steamcommunity.com/profiles/123456789",
		},
		{
			name: "vanity in account item",
			html: `<ul><li>Counter Strike 2 steamcommunity.com/id/s1mple/</li></ul>`,
			want: "https://steamcommunity.com/id/s1mple",
		},
		{
			name: "dota account item",
			html: `<ul><li>Dota 2 76561198000000001</li></ul>`,
			want: "https://steamcommunity.com/profiles/76561198000000001",
		},
		{
			name: "first steam anchor",
			html: `<a href="https://vk.com/x">vk</a><a href="https://steamcommunity.com/id/abc">steam</a><a href="https://steamcommunity.com/id/def">2</a>`,
			want: "https://steamcommunity.com/id/abc",
		},
		{
			name: "steam64 anywhere in text",
			html: `<body><p>contact me, steam 76561198855025047</p></body>`,
			want: "https://steamcommunity.com/profiles/76561198855025047",
		},
		{
			name: "unlabelled item is ignored",
			html: `<ul><li>Phone 89161234567</li></ul>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSteamProfileURL(parse(t, tt.html), DefaultAccountLabels))
		})
	}
}

const matchPage = `<html><head><title>Match</title></head><body>
<div class="media my-4"><div class="media-body"><a class="font-weight-normal text-dark" href="/player/1"> Alice </a></div></div>
<div class="media my-4"><a class="text-dark" href="https://vscl.ru/player/2">Bob</a></div>
<div class="media my-4"><span>no link here</span></div>
<div class="media my-4"><a href="/player/3"></a></div>
</body></html>`

func TestExtractPlayers(t *testing.T) {
	refs := ExtractPlayers(parse(t, matchPage), "https://vscl.ru/tournaments/7/matches/9")
	assert.Equal(t, []player.Ref{
		{Name: "Alice", ProfileURL: "https://vscl.ru/player/1"},
		{Name: "Bob", ProfileURL: "https://vscl.ru/player/2"},
		{Name: "Unknown", ProfileURL: "https://vscl.ru/player/3"},
	}, refs)
}

func TestExtractPlayers_PlayerPage(t *testing.T) {
	refs := ExtractPlayers(parse(t, `<h1> Carol </h1>`), "https://vscl.ru/player/5")
	assert.Equal(t, []player.Ref{{Name: "Carol", ProfileURL: "https://vscl.ru/player/5"}}, refs)
}

func TestPageKinds(t *testing.T) {
	assert.True(t, IsMatchPage("https://vscl.ru/tournaments/1/matches/2"))
	assert.False(t, IsMatchPage("https://vscl.ru/tournaments/1"))
	assert.True(t, IsPlayerPage("https://vscl.ru/player/2"))
	assert.False(t, IsPlayerPage("https://vscl.ru/teams/2"))
}

func TestDetectGame(t *testing.T) {
	assert.Equal(t, platforms.GameDota2, DetectGame(parse(t, `<title>VSCL Dota 2 Cup</title>`)))
	assert.Equal(t, platforms.GameCS2, DetectGame(parse(t, `<title>VSCL CS2 Cup</title>`)))
}

func testClient(t *testing.T) *Fetcher {
	t.Helper()
	hc, err := whttp.NewClient(whttp.Options{Policy: whttp.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}})
	require.NoError(t, err)
	return NewFetcher(hc, nil)
}

func TestSteamProfileURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ul><li>Counter Strike 2 76561198855025047</li></ul>`))
	}))
	defer srv.Close()

	got, err := testClient(t).SteamProfileURL(context.Background(), srv.URL+"/player/1")
	require.NoError(t, err)
	assert.Equal(t, "https://steamcommunity.com/profiles/76561198855025047", got)
}

func TestSteamProfileURL_NoReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<p>nothing to see</p>`))
	}))
	defer srv.Close()

	got, err := testClient(t).SteamProfileURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSteamProfileURL_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t).SteamProfileURL(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, ErrHostFetch), "got %v", err)
}
