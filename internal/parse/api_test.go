package parse

import (
	"testing"

	"townfeed/internal/config"
	"townfeed/internal/model"
)

func apiSource(parser string) config.SourceConfig {
	return config.SourceConfig{Name: parser, Type: model.SourceAPI, Parser: parser, City: "Oxford", State: "MS"}
}

const sampleSeatGeek = `{
  "events": [
    {
      "title": "Fall Concert with The Night Owls",
      "datetime_local": "2025-11-20T19:00:00",
      "url": "https://seatgeek.example/e/1",
      "type": "concert",
      "venue": {"name": "The Lyric", "address": "1006 Van Buren Ave", "extended_address": "Oxford, MS"},
      "stats": {"lowest_price": 25}
    },
    {
      "short_title": "Rebels vs Tigers",
      "datetime_local": "2025-11-22T14:00:00",
      "url": "https://seatgeek.example/e/2",
      "type": "sports",
      "venue": {"name": "Vaught-Hemingway Stadium"},
      "stats": {"lowest_price": null}
    },
    {
      "title": "",
      "datetime_local": ""
    }
  ]
}`

func TestParseSeatGeek(t *testing.T) {
	res, err := parseSeatGeek(apiSource("seatgeek"), []byte(sampleSeatGeek))
	if err != nil {
		t.Fatalf("parseSeatGeek: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}

	concert := res.Candidates[0]
	if concert.Title != "Fall Concert with The Night Owls" {
		t.Errorf("title = %q", concert.Title)
	}
	if concert.StartText != "2025-11-20T19:00:00" {
		t.Errorf("start text = %q", concert.StartText)
	}
	if concert.Location != "The Lyric, 1006 Van Buren Ave, Oxford, MS" {
		t.Errorf("location = %q", concert.Location)
	}
	if concert.Cost != "From $25" {
		t.Errorf("cost = %q", concert.Cost)
	}
	if concert.Category != "Music" {
		t.Errorf("category hint = %q", concert.Category)
	}

	game := res.Candidates[1]
	if game.Title != "Rebels vs Tigers" {
		t.Errorf("short_title fallback: title = %q", game.Title)
	}
	if game.Cost != "Free" {
		t.Errorf("cost = %q, want Free for missing price", game.Cost)
	}
	if game.Category != "Sports" {
		t.Errorf("category hint = %q", game.Category)
	}
}

const sampleTicketmaster = `{
  "_embedded": {
    "events": [
      {
        "name": "ARTEMIS at the Ford Center",
        "url": "https://ticketmaster.example/e/1",
        "info": "An evening of jazz.",
        "dates": {"start": {"dateTime": "2025-11-18T01:00:00Z"}},
        "priceRanges": [{"min": 35.5}],
        "classifications": [{"segment": {"name": "Music"}}],
        "_embedded": {
          "venues": [{"name": "Gertrude C. Ford Center", "address": {"line1": "351 University Ave"}, "city": {"name": "Oxford"}}]
        }
      },
      {
        "name": "Community Theatre Gala",
        "url": "https://ticketmaster.example/e/2",
        "dates": {"start": {"localDate": "2025-11-21", "localTime": "18:30:00"}},
        "classifications": [{"segment": {"name": "Arts & Theatre"}}]
      },
      {
        "name": "",
        "dates": {"start": {}}
      }
    ]
  }
}`

func TestParseTicketmaster(t *testing.T) {
	res, err := parseTicketmaster(apiSource("ticketmaster"), []byte(sampleTicketmaster))
	if err != nil {
		t.Fatalf("parseTicketmaster: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}

	artemis := res.Candidates[0]
	if artemis.StartText != "2025-11-18T01:00:00Z" {
		t.Errorf("start text = %q", artemis.StartText)
	}
	if artemis.Location != "Gertrude C. Ford Center, 351 University Ave, Oxford" {
		t.Errorf("location = %q", artemis.Location)
	}
	if artemis.Cost != "From $35" {
		t.Errorf("cost = %q", artemis.Cost)
	}
	if artemis.Category != "Music" {
		t.Errorf("category hint = %q", artemis.Category)
	}

	gala := res.Candidates[1]
	if gala.StartText != "2025-11-21T18:30:00" {
		t.Errorf("localDate+localTime: start text = %q", gala.StartText)
	}
	if gala.Category != "Performing Arts" {
		t.Errorf("category hint = %q", gala.Category)
	}
}

func TestParseAPIUnknownParser(t *testing.T) {
	if _, err := parseAPI(apiSource("stubhub"), []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown api parser")
	}
}
