package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/canvas-comb/app/content"
)

// RedditClient reads subreddit listings through the public .json
// endpoint. No OAuth; the User-Agent requirement still applies.
type RedditClient struct {
	fetcher *fetcher
}

func NewRedditClient(httpClient *http.Client, userAgent string) *RedditClient {
	return &RedditClient{fetcher: newFetcher(httpClient, userAgent)}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPostData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPostData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
}

// FetchPosts returns posts from every configured subreddit. Stickied
// posts are skipped since they resurface on every listing fetch.
func (c *RedditClient) FetchPosts(ctx context.Context, config *Config) ([]content.RedditPost, error) {
	listing := config.Reddit.Listing
	if listing == "" {
		listing = "new"
	}

	var posts []content.RedditPost
	for _, subreddit := range config.Reddit.Subreddits {
		url := fmt.Sprintf("https://www.reddit.com/r/%s/%s.json?limit=%d", subreddit, listing, config.Settings.MaxItems)

		data, err := c.fetcher.fetch(ctx, url, config.Settings.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch r/%s: %w", subreddit, err)
		}

		subPosts, err := parseRedditListing(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse r/%s listing: %w", subreddit, err)
		}
		posts = append(posts, subPosts...)
	}

	return posts, nil
}

func parseRedditListing(data []byte) ([]content.RedditPost, error) {
	var listing redditListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse listing JSON: %w", err)
	}

	posts := make([]content.RedditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.Stickied || p.ID == "" {
			continue
		}
		posts = append(posts, content.RedditPost{
			SourceID:      "reddit_" + p.ID,
			Title:         p.Title,
			URL:           "https://www.reddit.com" + strings.TrimSuffix(p.Permalink, "/"),
			Content:       p.Selftext,
			Subreddit:     p.Subreddit,
			Author:        p.Author,
			Score:         p.Score,
			NumComments:   p.NumComments,
			PublishedDate: time.Unix(int64(p.CreatedUTC), 0).UTC(),
		})
	}

	return posts, nil
}
