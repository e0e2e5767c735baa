package main

import (
	"encoding/json"
	"github.com/cockroachdb/errors"
	"os"
)

// newsResponse is the body of a news API article listing.
type newsResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []article `json:"articles"`
}

type article struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	URLToImage *string `json:"urlToImage"`
}

// imageURLs returns the distinct non-empty image URLs of an article listing, in order.
func imageURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read articles file %s", path)
	}

	var resp newsResponse
	if err = json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrapf(err, "decode articles file %s", path)
	}

	seen := make(map[string]struct{}, len(resp.Articles))
	urls := make([]string, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.URLToImage == nil || *a.URLToImage == "" {
			continue
		}
		if _, ok := seen[*a.URLToImage]; ok {
			continue
		}
		seen[*a.URLToImage] = struct{}{}
		urls = append(urls, *a.URLToImage)
	}
	return urls, nil
}
