// Package hostsite scrapes the tournament site the players are listed on:
// player elements on match pages and Steam references on player profiles.
package hostsite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/steamid"
	"github.com/vscltools/faceitfinder/pkg/whttp"
)

const (
	PLAYER_ELEMENT = ".media.my-4"
	STEAM_DOMAIN   = "steamcommunity.com"
)

var ErrHostFetch = errors.New("host page fetch failed")

// DefaultAccountLabels are the prefixes of the profile list items that hold
// game accounts.
var DefaultAccountLabels = []string{"Counter Strike 2", "Dota 2"}

// Player links inside a player element, most specific first.
var playerLinkSelectors = []string{
	"a.font-weight-normal.text-dark",
	"a.text-dark",
	`a[href*="/player/"]`,
	"td a",
}

var (
	steam64Re  = regexp.MustCompile(`\b7656119\d{10}\b`)
	digitRunRe = regexp.MustCompile(`\b\d{5,}\b`)
	vanityRe   = regexp.MustCompile(`steamcommunity\.com/id/([^/\s]+)`)
)

type Fetcher struct {
	http   *retryablehttp.Client
	labels []string
}

// NewFetcher returns a Fetcher using client, or the shared whttp client when
// client is nil. Empty labels fall back to DefaultAccountLabels.
func NewFetcher(client *retryablehttp.Client, labels []string) *Fetcher {
	if len(labels) == 0 {
		labels = DefaultAccountLabels
	}
	return &Fetcher{http: client, labels: labels}
}

// FetchPage downloads and parses pageURL.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: "GET",
		URL:    pageURL,
	}, f.http)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostFetch, err)
	}
	if !whttp.IsAccepted(res.StatusCode) {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrHostFetch, pageURL, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrHostFetch, pageURL, err)
	}
	return doc, nil
}

// SteamProfileURL fetches a host player profile and returns the Steam
// profile it references. An empty string with a nil error means the page
// has no Steam reference.
func (f *Fetcher) SteamProfileURL(ctx context.Context, hostProfileURL string) (string, error) {
	doc, err := f.FetchPage(ctx, hostProfileURL)
	if err != nil {
		return "", err
	}
	return ExtractSteamProfileURL(doc, f.labels), nil
}

// ExtractSteamProfileURL looks for a Steam reference in doc.
//
// Account list items starting with one of labels are checked first: a
// Steam64 id, then the longest run of 5+ digits, then a vanity link. After
// that the first anchor pointing at Steam is used, and finally any Steam64
// id anywhere in the page text.
func ExtractSteamProfileURL(doc *goquery.Document, labels []string) string {
	found := ""
	doc.Find("li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !hasAnyPrefix(text, labels) {
			return true
		}
		found = steamFromAccountText(text)
		return found == ""
	})
	if found != "" {
		return found
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, STEAM_DOMAIN) {
			found = href
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	if id := steam64Re.FindString(doc.Find("body").Text()); id != "" {
		return steamid.ProfileURL(id)
	}
	return ""
}

func steamFromAccountText(text string) string {
	if id := steam64Re.FindString(text); id != "" {
		return steamid.ProfileURL(id)
	}
	if runs := digitRunRe.FindAllString(text, -1); len(runs) > 0 {
		sort.SliceStable(runs, func(i, j int) bool { return len(runs[i]) > len(runs[j]) })
		return steamid.ProfileURL(runs[0])
	}
	if m := vanityRe.FindStringSubmatch(text); m != nil {
		return "https://steamcommunity.com/id/" + m[1]
	}
	return ""
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// IsMatchPage reports whether pageURL is a tournament match page.
func IsMatchPage(pageURL string) bool {
	return strings.Contains(pageURL, "/tournaments/") && strings.Contains(pageURL, "/matches/")
}

func IsPlayerPage(pageURL string) bool {
	return strings.Contains(pageURL, "/player/")
}

// ExtractPlayers returns the players listed on doc in page order, with
// profile links made absolute against pageURL. Elements without a usable
// link are skipped. A player page with no player elements yields the page's
// own player.
func ExtractPlayers(doc *goquery.Document, pageURL string) []player.Ref {
	base, _ := url.Parse(pageURL)
	var refs []player.Ref

	doc.Find(PLAYER_ELEMENT).Each(func(_ int, el *goquery.Selection) {
		for _, sel := range playerLinkSelectors {
			link := el.Find(sel).First()
			if link.Length() == 0 {
				continue
			}
			href, ok := link.Attr("href")
			name := strings.TrimSpace(link.Text())
			if !ok || href == "" {
				continue
			}
			if name == "" {
				name = "Unknown"
			}
			refs = append(refs, player.Ref{Name: name, ProfileURL: absolute(base, href)})
			return
		}
	})

	if len(refs) == 0 && IsPlayerPage(pageURL) {
		name := strings.TrimSpace(doc.Find("h1").First().Text())
		if name == "" {
			name = strings.TrimSpace(doc.Find("title").First().Text())
		}
		if name != "" {
			refs = append(refs, player.Ref{Name: name, ProfileURL: pageURL})
		}
	}
	return refs
}

func absolute(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// DetectGame guesses which game a page is about. Pages mentioning Dota 2 in
// their heading or breadcrumbs are Dota 2, everything else is CS2.
func DetectGame(doc *goquery.Document) platforms.Game {
	text := doc.Find("title, h1, h2, .breadcrumb").Text()
	if strings.Contains(text, "Dota 2") || strings.Contains(text, "Dota2") {
		return platforms.GameDota2
	}
	return platforms.GameCS2
}
