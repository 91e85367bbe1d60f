package player

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/vscltools/faceitfinder/pkg/platforms"
)

func TestNormalize_MovesLegacyDotaRating(t *testing.T) {
	r := Record{
		Name: "Bob",
		Ratings: map[platforms.Game]platforms.Rating{
			platforms.GameCS2: {Nickname: "111", Rating: "Legend 2", ProfileURL: "https://www.dotabuff.com/players/111"},
		},
	}

	if !r.Normalize() {
		t.Fatal("expected Normalize to report a change")
	}
	if _, ok := r.Rating(platforms.GameCS2); ok {
		t.Fatal("cs2 slot should be empty after migration")
	}
	got, ok := r.Rating(platforms.GameDota2)
	if !ok {
		t.Fatal("dota2 slot should hold the migrated rating")
	}
	if got.Service != platforms.ServiceDotabuff || got.Game != platforms.GameDota2 || got.Rating != "Legend 2" {
		t.Fatalf("unexpected migrated rating %+v", got)
	}
}

func TestNormalize_DropsDuplicate(t *testing.T) {
	dota := platforms.Rating{Service: platforms.ServiceDotabuff, Game: platforms.GameDota2, Rating: "Herald 1", ProfileURL: "https://www.dotabuff.com/players/1"}
	r := Record{
		Ratings: map[platforms.Game]platforms.Rating{
			platforms.GameCS2:   {Rating: "Herald 2", ProfileURL: "https://www.dotabuff.com/players/1"},
			platforms.GameDota2: dota,
		},
	}

	r.Normalize()
	if len(r.Ratings) != 1 || r.Ratings[platforms.GameDota2] != dota {
		t.Fatalf("unexpected ratings after normalize: %+v", r.Ratings)
	}
}

func TestNormalize_LeavesCleanRecordAlone(t *testing.T) {
	r := Record{
		Ratings: map[platforms.Game]platforms.Rating{
			platforms.GameCS2: {Service: platforms.ServiceFaceit, Game: platforms.GameCS2, Rating: "2000", ProfileURL: "https://faceitanalyser.com/stats/x"},
		},
	}
	if r.Normalize() {
		t.Fatal("clean record should not change")
	}
}

func TestClone_DoesNotShareRatings(t *testing.T) {
	r := NewRecord(Ref{Name: "A", ProfileURL: "https://vscl.ru/player/1"}, time.Unix(100, 0))
	r.SetRating(platforms.Rating{Service: platforms.ServiceFaceit, Game: platforms.GameCS2, Rating: "1500"})

	c := r.Clone()
	c.SetRating(platforms.Rating{Service: platforms.ServiceDotabuff, Game: platforms.GameDota2, Rating: "Crusader 1"})

	if len(r.Ratings) != 1 {
		t.Fatalf("clone mutated the original: %+v", r.Ratings)
	}
}

func TestUnmarshal_ExtensionRecord(t *testing.T) {
	blob := `{"name":"Bob","profileUrl":"https://vscl.ru/player/2",
		"faceitData":{"elo":"Archon 4","nickname":"894759319","profileUrl":"https://www.dotabuff.com/players/894759319"},
		"timestamp":1700000000000}`

	var r Record
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.ResolvedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("timestamp not carried over: %v", r.ResolvedAt)
	}
	if !r.HasRatings() {
		t.Fatal("extension slot was dropped")
	}

	if !r.Normalize() {
		t.Fatal("expected the legacy slot to be migrated")
	}
	got, ok := r.Rating(platforms.GameDota2)
	if !ok || got.Service != platforms.ServiceDotabuff || got.Rating != "Archon 4" {
		t.Fatalf("unexpected ratings after migration: %+v", r.Ratings)
	}
}

func TestMarshal_WritesBothForms(t *testing.T) {
	r := NewRecord(Ref{Name: "A", ProfileURL: "https://vscl.ru/player/1"}, time.UnixMilli(1700000000000))
	r.SetRating(platforms.Rating{Service: platforms.ServiceFaceit, Game: platforms.GameCS2, Nickname: "a", Rating: "1500", ProfileURL: "https://faceitanalyser.com/stats/a"})

	blob, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"ratings"`, `"faceitData"`, `"timestamp":1700000000000`} {
		if !strings.Contains(string(blob), want) {
			t.Fatalf("%s missing from %s", want, blob)
		}
	}
	if strings.Contains(string(blob), `"dota2Data"`) {
		t.Fatalf("empty slot written: %s", blob)
	}

	var back Record
	if err := json.Unmarshal(blob, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.Ratings) != 1 || back.Ratings[platforms.GameCS2].Rating != "1500" {
		t.Fatalf("round trip lost ratings: %+v", back.Ratings)
	}
}
