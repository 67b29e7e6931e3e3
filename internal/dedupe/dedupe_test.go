package dedupe

import (
	"reflect"
	"testing"
	"time"

	"townfeed/internal/model"
)

var baseStart = time.Date(2025, 11, 20, 19, 0, 0, 0, time.UTC)

func ev(title, location, source string, start time.Time) model.Event {
	return model.Event{Title: title, Location: location, Source: source, Start: start, Category: "Music"}
}

func TestCrossSourceDuplicateCollapses(t *testing.T) {
	// Same event listed by an RSS feed and a ticketing API.
	a := ev("Fall Concert", "The Lyric", "city-feed", baseStart)
	b := ev("Fall Concert", "The Lyric", "seatgeek", baseStart)

	out := Dedupe([]model.Event{a, b}, Options{})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	if out[0].Title != "Fall Concert" {
		t.Errorf("title = %q", out[0].Title)
	}
}

func TestSymmetryAndTieBreak(t *testing.T) {
	short := ev("Fall Concert", "The Lyric", "city-feed", baseStart)
	long := ev("Fall Concert with The Night Owls", "the  lyric", "seatgeek", baseStart)

	forward := Dedupe([]model.Event{short, long}, Options{})
	backward := Dedupe([]model.Event{long, short}, Options{})

	if len(forward) != 1 || len(backward) != 1 {
		t.Fatalf("got %d and %d events, want 1 each", len(forward), len(backward))
	}
	// Longer title wins regardless of input order.
	if forward[0].Title != long.Title {
		t.Errorf("forward winner = %q, want %q", forward[0].Title, long.Title)
	}
	if backward[0].Title != long.Title {
		t.Errorf("backward winner = %q, want %q", backward[0].Title, long.Title)
	}
}

func TestEqualLengthTitlesUseRegistryOrder(t *testing.T) {
	a := ev("Fall Concert", "The Lyric", "later-source", baseStart)
	b := ev("Fall Cantata", "The Lyric", "early-source", baseStart)
	order := map[string]int{"early-source": 0, "later-source": 1}

	out := Dedupe([]model.Event{a, b}, Options{SourceOrder: order})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	if out[0].Source != "early-source" {
		t.Errorf("winner source = %q, want early-source", out[0].Source)
	}
}

func TestFuzzyTitleMatchWhenLocationMissing(t *testing.T) {
	a := ev("Ole Miss Football vs Alabama", "", "athletics-rss", baseStart)
	b := ev("Ole Miss Football vs. Alabama Crimson Tide", "", "ticketmaster", baseStart)

	out := Dedupe([]model.Event{a, b}, Options{})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1 (fuzzy titles at same minute)", len(out))
	}
}

func TestDifferentLocationsSameMinuteKeptApart(t *testing.T) {
	a := ev("Trivia Night", "Proud Larry's", "feed-a", baseStart)
	b := ev("Trivia Night", "The Library Bar", "feed-b", baseStart)

	out := Dedupe([]model.Event{a, b}, Options{})
	if len(out) != 2 {
		t.Fatalf("got %d events, want 2: same title at different venues is two events", len(out))
	}
}

func TestDifferentMinutesKeptApart(t *testing.T) {
	a := ev("Fall Concert", "The Lyric", "feed-a", baseStart)
	b := ev("Fall Concert", "The Lyric", "feed-b", baseStart.Add(2*time.Minute))

	out := Dedupe([]model.Event{a, b}, Options{})
	if len(out) != 2 {
		t.Fatalf("got %d events, want 2", len(out))
	}
}

func TestMergeBackfillsMissingFields(t *testing.T) {
	winner := ev("Fall Concert with The Night Owls", "The Lyric", "city-feed", baseStart)
	loser := ev("Fall Concert", "The Lyric", "seatgeek", baseStart)
	loser.Link = "https://seatgeek.example/e/1"
	loser.Cost = "From $25"

	out := Dedupe([]model.Event{winner, loser}, Options{})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	if out[0].Link != loser.Link {
		t.Errorf("link = %q, want back-filled %q", out[0].Link, loser.Link)
	}
	if out[0].Cost != "From $25" {
		t.Errorf("cost = %q, want back-filled From $25", out[0].Cost)
	}
}

func TestConvergence(t *testing.T) {
	events := []model.Event{
		ev("Fall Concert", "The Lyric", "city-feed", baseStart),
		ev("Fall Concert with The Night Owls", "The Lyric", "seatgeek", baseStart),
		ev("Farmers Market", "Oxford Square", "visit-oxford", baseStart.Add(24*time.Hour)),
		ev("Trivia Night", "Proud Larry's", "city-feed", baseStart),
	}

	once := Dedupe(events, Options{})
	twice := Dedupe(once, Options{})
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedupe not convergent:\n once = %+v\ntwice = %+v", once, twice)
	}
}

func TestNonDuplicateOrderPreserved(t *testing.T) {
	a := ev("Alpha", "Venue A", "s", baseStart.Add(3*time.Hour))
	b := ev("Beta", "Venue B", "s", baseStart)
	c := ev("Gamma", "Venue C", "s", baseStart.Add(time.Hour))

	out := Dedupe([]model.Event{a, b, c}, Options{})
	want := []string{"Alpha", "Beta", "Gamma"}
	if len(out) != 3 {
		t.Fatalf("got %d events, want 3", len(out))
	}
	for i, title := range want {
		if out[i].Title != title {
			t.Errorf("out[%d] = %q, want %q", i, out[i].Title, title)
		}
	}
}
