package messaging

import (
	"context"
	"fmt"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vscltools/faceitfinder/pkg/cache"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/resolver"
	"github.com/vscltools/faceitfinder/pkg/storage"
)

const steamURL = "https://steamcommunity.com/profiles/76561198855025047"

type stubClient struct {
	game   platforms.Game
	rating platforms.Rating
	err    error
}

func (s stubClient) Service() platforms.Service {
	if s.game == platforms.GameDota2 {
		return platforms.ServiceDotabuff
	}
	return platforms.ServiceFaceit
}
func (s stubClient) Game() platforms.Game { return s.game }
func (s stubClient) Domains() []string {
	if s.game == platforms.GameDota2 {
		return []string{"dotabuff.com"}
	}
	return []string{"faceitanalyser.com", "faceit.com"}
}
func (s stubClient) FetchRating(context.Context, string) (platforms.Rating, error) {
	return s.rating, s.err
}

type stubHost struct{}

func (stubHost) SteamProfileURL(context.Context, string) (string, error) { return steamURL, nil }

var faceitRating = platforms.Rating{
	Service: platforms.ServiceFaceit, Game: platforms.GameCS2,
	Nickname: "alice_fc", Rating: "2150", ProfileURL: "https://faceitanalyser.com/stats/alice_fc",
}

func newDispatcher(clients ...platforms.RatingClient) (*Dispatcher, *storage.Memory) {
	kv := storage.NewMemory()
	c := cache.New(kv)
	r := resolver.New(resolver.Config{Cache: c, Host: stubHost{}, Clients: clients, StepDelay: -1})
	return NewDispatcher(Config{Resolver: r, Clients: clients}), kv
}

func TestGetFaceitProfile(t *testing.T) {
	d, _ := newDispatcher(stubClient{game: platforms.GameCS2, rating: faceitRating})

	res := d.Handle(context.Background(), Request{ID: "1", Action: ActionGetFaceitProfile, SteamURL: steamURL})
	assert.Equal(t, Response{
		ID:             "1",
		Success:        true,
		FaceitNickname: "alice_fc",
		Elo:            "2150",
		ProfileURL:     "https://faceitanalyser.com/stats/alice_fc",
	}, res)
}

func TestGetFaceitProfile_RateLimited(t *testing.T) {
	d, _ := newDispatcher(stubClient{game: platforms.GameCS2, err: platforms.ErrRateLimited})

	res := d.Handle(context.Background(), Request{Action: ActionGetFaceitProfile, SteamURL: steamURL})
	assert.False(t, res.Success)
	assert.True(t, platforms.IsRateLimitedMessage(res.Error))
	_, err := uuid.Parse(res.ID)
	assert.NoError(t, err, "missing ids are generated")
}

func TestGetDotabuffProfile_NoClient(t *testing.T) {
	d, _ := newDispatcher(stubClient{game: platforms.GameCS2, rating: faceitRating})
	res := d.Handle(context.Background(), Request{Action: ActionGetDotabuffProfile, SteamURL: steamURL})
	assert.False(t, res.Success)
}

func TestCacheActions(t *testing.T) {
	ctx := context.Background()
	d, kv := newDispatcher()

	rec := player.NewRecord(player.Ref{Name: "Bob", ProfileURL: "https://vscl.ru/player/2"}, time.Now())
	rec.SetRating(faceitRating)
	blob, err := json.Marshal(map[string]player.Record{"Bob": rec})
	require.NoError(t, err)

	res := d.Handle(ctx, Request{Action: ActionSaveCache, Cache: blob})
	require.True(t, res.Success, res.Error)
	_, ok, err := kv.Get(ctx, cache.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)

	res = d.Handle(ctx, Request{Action: ActionGetCache})
	require.True(t, res.Success)
	var got map[string]player.Record
	require.NoError(t, json.Unmarshal(res.Cache, &got))
	require.Contains(t, got, "Bob")
	assert.Equal(t, "2150", got["Bob"].Ratings[platforms.GameCS2].Rating)

	res = d.Handle(ctx, Request{Action: ActionClearCache})
	require.True(t, res.Success)
	res = d.Handle(ctx, Request{Action: ActionGetCache})
	assert.JSONEq(t, `{}`, string(res.Cache))
}

func TestSaveCache_BadBlob(t *testing.T) {
	d, _ := newDispatcher()
	res := d.Handle(context.Background(), Request{Action: ActionSaveCache, Cache: json.RawMessage(`[1,2]`)})
	assert.False(t, res.Success)
}

func TestSaveCache_ExtensionFormat(t *testing.T) {
	ctx := context.Background()
	d, kv := newDispatcher()

	ts := time.Now().Add(time.Minute).UnixMilli()
	blob := fmt.Sprintf(`{
		"Bob": {"name":"Bob","profileUrl":"https://vscl.ru/player/2","steamProfileUrl":%q,
			"faceitData":{"elo":"2150","nickname":"bob_fc","profileUrl":"https://faceitanalyser.com/stats/bob_fc"},
			"timestamp":%d},
		"Eve": {"name":"Eve","profileUrl":"https://vscl.ru/player/3",
			"faceitData":{"elo":"Legend 3","nickname":"111","profileUrl":"https://www.dotabuff.com/players/111"},
			"timestamp":%d}
	}`, steamURL, ts, ts)

	res := d.Handle(ctx, Request{Action: ActionSaveCache, Cache: json.RawMessage(blob)})
	require.True(t, res.Success, res.Error)

	stored, ok, err := kv.Get(ctx, cache.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	var got map[string]player.Record
	require.NoError(t, json.Unmarshal([]byte(stored), &got))
	require.Len(t, got, 2)

	bob := got["Bob"].Ratings[platforms.GameCS2]
	assert.Equal(t, platforms.ServiceFaceit, bob.Service)
	assert.Equal(t, "2150", bob.Rating)

	// Dota data filed under the CS2 slot moves to its own game.
	_, inCS2 := got["Eve"].Ratings[platforms.GameCS2]
	assert.False(t, inCS2)
	assert.Equal(t, "Legend 3", got["Eve"].Ratings[platforms.GameDota2].Rating)

	assert.Contains(t, stored, `"faceitData"`)
	assert.Contains(t, stored, `"timestamp"`)
}

func TestSaveCache_NothingUsableKeepsStorage(t *testing.T) {
	ctx := context.Background()
	d, kv := newDispatcher()
	require.NoError(t, kv.Set(ctx, cache.StorageKey, `{"keep":"me"}`))

	res := d.Handle(ctx, Request{Action: ActionSaveCache, Cache: json.RawMessage(`{"Bob":{"name":"Bob","timestamp":1}}`)})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	stored, _, err := kv.Get(ctx, cache.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, `{"keep":"me"}`, stored)
}

func TestResolvePlayer(t *testing.T) {
	d, _ := newDispatcher(stubClient{game: platforms.GameCS2, rating: faceitRating})

	res := d.Handle(context.Background(), Request{
		Action:     ActionResolvePlayer,
		Name:       "Alice",
		ProfileURL: "https://vscl.ru/player/1",
		Game:       "cs2",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "2150", res.Elo)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, "success", res.Outcome.State)
}

func TestResolvePlayer_Profile(t *testing.T) {
	d, _ := newDispatcher(
		stubClient{game: platforms.GameCS2, rating: faceitRating},
		stubClient{game: platforms.GameDota2, err: platforms.ErrNoData},
	)

	res := d.Handle(context.Background(), Request{Action: ActionResolvePlayer, Name: "Alice", ProfileURL: "https://vscl.ru/player/1"})
	require.True(t, res.Success)
	assert.Equal(t, "partial_success", res.Outcome.State)
	assert.Len(t, res.Outcome.Cards, 1)
}

func TestUnknownAction(t *testing.T) {
	d, _ := newDispatcher()
	res := d.Handle(context.Background(), Request{ID: "x", Action: "nope"})
	assert.False(t, res.Success)
	assert.Equal(t, "x", res.ID)
}

func TestDecodeEncode(t *testing.T) {
	req, err := Decode([]byte(`{"action":"getFaceitProfile","steamUrl":"` + steamURL + `"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionGetFaceitProfile, req.Action)
	assert.NotEmpty(t, req.ID)

	_, err = Decode([]byte(`{`))
	assert.Error(t, err)

	out, err := Encode(Response{ID: "1", Success: false, Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","success":false,"error":"boom"}`, string(out))
}
