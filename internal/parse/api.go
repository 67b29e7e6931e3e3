package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"townfeed/internal/config"
	appLog "townfeed/internal/log"
	"townfeed/internal/model"
)

func parseAPI(src config.SourceConfig, payload []byte) (Result, error) {
	switch src.Parser {
	case "seatgeek":
		return parseSeatGeek(src, payload)
	case "ticketmaster":
		return parseTicketmaster(src, payload)
	default:
		return Result{}, fmt.Errorf("source %s: unknown api parser %q", src.Name, src.Parser)
	}
}

// seatGeekResponse mirrors the fields we use from the SeatGeek /2/events
// response shape.
type seatGeekResponse struct {
	Events []struct {
		Title         string `json:"title"`
		ShortTitle    string `json:"short_title"`
		DatetimeLocal string `json:"datetime_local"`
		URL           string `json:"url"`
		Type          string `json:"type"`
		Description   string `json:"description"`
		Venue         struct {
			Name            string `json:"name"`
			Address         string `json:"address"`
			ExtendedAddress string `json:"extended_address"`
		} `json:"venue"`
		Stats struct {
			LowestPrice *float64 `json:"lowest_price"`
		} `json:"stats"`
	} `json:"events"`
}

func parseSeatGeek(src config.SourceConfig, payload []byte) (Result, error) {
	var resp seatGeekResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Result{}, err
	}

	var res Result
	for _, e := range resp.Events {
		title := e.Title
		if title == "" {
			title = e.ShortTitle
		}
		if title == "" || e.DatetimeLocal == "" {
			res.Skipped++
			continue
		}

		c := model.Candidate{
			Title: title,
			// datetime_local is zone-naive; the normalizer pins it to the
			// configured local zone.
			StartText:   e.DatetimeLocal,
			Location:    joinNonEmpty(e.Venue.Name, e.Venue.Address, e.Venue.ExtendedAddress),
			Description: e.Description,
			Link:        e.URL,
			Cost:        priceToCost(e.Stats.LowestPrice),
			Category:    segmentCategory(e.Type),
		}
		res.Candidates = append(res.Candidates, c)
	}

	appLog.Debug("seatgeek parse completed", "source", src.Name,
		"candidates", len(res.Candidates), "skipped", res.Skipped)
	return res, nil
}

// ticketmasterResponse mirrors the Discovery v2 events payload: the event
// list and venues both sit under "_embedded" envelopes.
type ticketmasterResponse struct {
	Embedded struct {
		Events []struct {
			Name  string `json:"name"`
			URL   string `json:"url"`
			Info  string `json:"info"`
			Dates struct {
				Start struct {
					DateTime  string `json:"dateTime"`
					LocalDate string `json:"localDate"`
					LocalTime string `json:"localTime"`
				} `json:"start"`
			} `json:"dates"`
			PriceRanges []struct {
				Min float64 `json:"min"`
			} `json:"priceRanges"`
			Classifications []struct {
				Segment struct {
					Name string `json:"name"`
				} `json:"segment"`
			} `json:"classifications"`
			Embedded struct {
				Venues []struct {
					Name    string `json:"name"`
					Address struct {
						Line1 string `json:"line1"`
					} `json:"address"`
					City struct {
						Name string `json:"name"`
					} `json:"city"`
				} `json:"venues"`
			} `json:"_embedded"`
		} `json:"events"`
	} `json:"_embedded"`
}

func parseTicketmaster(src config.SourceConfig, payload []byte) (Result, error) {
	var resp ticketmasterResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Result{}, err
	}

	var res Result
	for _, e := range resp.Embedded.Events {
		start := e.Dates.Start.DateTime
		if start == "" && e.Dates.Start.LocalDate != "" {
			start = e.Dates.Start.LocalDate
			if e.Dates.Start.LocalTime != "" {
				start += "T" + e.Dates.Start.LocalTime
			}
		}
		if e.Name == "" || start == "" {
			res.Skipped++
			continue
		}

		c := model.Candidate{
			Title:       e.Name,
			StartText:   start,
			Description: e.Info,
			Link:        e.URL,
		}
		if len(e.Embedded.Venues) > 0 {
			v := e.Embedded.Venues[0]
			c.Location = joinNonEmpty(v.Name, v.Address.Line1, v.City.Name)
		}
		if len(e.PriceRanges) > 0 {
			min := e.PriceRanges[0].Min
			c.Cost = priceToCost(&min)
		}
		if len(e.Classifications) > 0 {
			c.Category = segmentCategory(e.Classifications[0].Segment.Name)
		}
		res.Candidates = append(res.Candidates, c)
	}

	appLog.Debug("ticketmaster parse completed", "source", src.Name,
		"candidates", len(res.Candidates), "skipped", res.Skipped)
	return res, nil
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, ", ")
}

func priceToCost(min *float64) string {
	if min == nil || *min == 0 {
		return "Free"
	}
	return fmt.Sprintf("From $%d", int(*min))
}

// segmentCategory maps a ticketing segment/type string to a category hint.
// The hint is only advisory: the categorizer's rules still run first.
func segmentCategory(segment string) string {
	s := strings.ToLower(segment)
	switch {
	case strings.Contains(s, "music") || strings.Contains(s, "concert"):
		return "Music"
	case strings.Contains(s, "sport"):
		return "Sports"
	case strings.Contains(s, "arts") || strings.Contains(s, "theatre") || strings.Contains(s, "theater"):
		return "Performing Arts"
	default:
		return ""
	}
}
