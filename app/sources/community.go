package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/canvas-comb/app/content"
)

// CommunityClient aggregates the community site: post discovery via the
// blog/question RSS feeds, per-post page scrapes for engagement counts
// and comments, and release/deploy note page fetches.
type CommunityClient struct {
	fetcher *fetcher
	parser  *gofeed.Parser
}

func NewCommunityClient(httpClient *http.Client, userAgent string) *CommunityClient {
	return &CommunityClient{
		fetcher: newFetcher(httpClient, userAgent),
		parser:  gofeed.NewParser(),
	}
}

// FetchPosts discovers posts from the configured blog and question
// feeds, newest first, capped at max_items per feed. A failed per-post
// page scrape keeps the feed-derived data rather than dropping the post.
func (c *CommunityClient) FetchPosts(ctx context.Context, config *Config) ([]content.CommunityPost, error) {
	var posts []content.CommunityPost

	feeds := []struct {
		url      string
		postType string
	}{
		{config.Community.BlogFeedURL, "blog"},
		{config.Community.QuestionFeedURL, "question"},
	}

	for _, f := range feeds {
		if f.url == "" {
			continue
		}
		feedPosts, err := c.fetchFeedPosts(ctx, f.url, f.postType, config.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s feed: %w", f.postType, err)
		}
		posts = append(posts, feedPosts...)
	}

	return posts, nil
}

func (c *CommunityClient) fetchFeedPosts(ctx context.Context, feedURL, postType string, settings ConfigSettings) ([]content.CommunityPost, error) {
	data, err := c.fetcher.fetch(ctx, feedURL, settings.Timeout)
	if err != nil {
		return nil, err
	}

	parsed, err := c.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := parsed.Items
	if len(items) > settings.MaxItems {
		items = items[:settings.MaxItems]
	}

	posts := make([]content.CommunityPost, 0, len(items))
	for _, item := range items {
		post := content.CommunityPost{
			Title:    strings.TrimSpace(item.Title),
			URL:      item.Link,
			Content:  item.Description,
			PostType: postType,
		}
		if strings.Contains(item.Link, "changelog") {
			post.PostType = "changelog"
		}
		if item.Content != "" {
			post.Content = item.Content
		}
		if item.PublishedParsed != nil {
			post.PublishedDate = item.PublishedParsed.UTC()
			first := post.PublishedDate
			post.FirstPosted = &first
		}
		if item.UpdatedParsed != nil {
			edited := item.UpdatedParsed.UTC()
			post.LastEdited = &edited
		}
		if item.Author != nil {
			post.Author = item.Author.Name
		}

		if err := c.scrapePost(ctx, &post, settings.Timeout); err != nil {
			slog.Debug("Post page scrape failed, keeping feed data", "url", post.URL, "error", err)
		}

		posts = append(posts, post)
	}

	return posts, nil
}

// scrapePost fills engagement counts, body and the comment list from
// the post page itself. The feed carries none of these.
func (c *CommunityClient) scrapePost(ctx context.Context, post *content.CommunityPost, timeout int) error {
	data, err := c.fetcher.fetch(ctx, post.URL, timeout)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse post page: %w", err)
	}

	if body := strings.TrimSpace(doc.Find(".lia-message-body-content").First().Text()); body != "" {
		post.Content = body
	}
	post.Likes = countFrom(doc, ".lia-component-likes-count, .like-count")
	post.Comments = countFrom(doc, ".lia-component-replies-count, .reply-count")

	doc.Find(".lia-message-reply, .comment").Each(func(_ int, s *goquery.Selection) {
		comment := content.Comment{
			Author: strings.TrimSpace(s.Find(".lia-user-name-link, .author").First().Text()),
			Body:   strings.TrimSpace(s.Find(".lia-message-body-content, .body").First().Text()),
		}
		if comment.Body == "" {
			return
		}
		if posted, ok := s.Find("time").First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, posted); err == nil {
				comment.PostedAt = t.UTC()
			}
		}
		post.CommentList = append(post.CommentList, comment)
		if comment.PostedAt.After(timeOrZero(post.LastCommentAt)) {
			at := comment.PostedAt
			post.LastCommentAt = &at
		}
	})

	if post.Comments < len(post.CommentList) {
		post.Comments = len(post.CommentList)
	}

	return nil
}

// FetchReleaseNotePages discovers note pages linked from the release
// notes index and parses each one.
func (c *CommunityClient) FetchReleaseNotePages(ctx context.Context, config *Config) ([]*content.ReleaseNotePage, error) {
	urls, err := c.discoverNoteURLs(ctx, config.Community.ReleaseNotesURL, "release-notes", config.Settings)
	if err != nil {
		return nil, err
	}

	pages := make([]*content.ReleaseNotePage, 0, len(urls))
	for _, url := range urls {
		data, err := c.fetcher.fetch(ctx, url, config.Settings.Timeout)
		if err != nil {
			return nil, err
		}
		page, err := ParseReleaseNotePage(bytes.NewReader(data), url)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	return pages, nil
}

func (c *CommunityClient) FetchDeployNotePages(ctx context.Context, config *Config) ([]*content.DeployNotePage, error) {
	urls, err := c.discoverNoteURLs(ctx, config.Community.DeployNotesURL, "deploy-notes", config.Settings)
	if err != nil {
		return nil, err
	}

	pages := make([]*content.DeployNotePage, 0, len(urls))
	for _, url := range urls {
		data, err := c.fetcher.fetch(ctx, url, config.Settings.Timeout)
		if err != nil {
			return nil, err
		}
		page, err := ParseDeployNotePage(bytes.NewReader(data), url)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	return pages, nil
}

func (c *CommunityClient) discoverNoteURLs(ctx context.Context, indexURL, pathMarker string, settings ConfigSettings) ([]string, error) {
	if indexURL == "" {
		return nil, nil
	}

	data, err := c.fetcher.fetch(ctx, indexURL, settings.Timeout)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse index page: %w", err)
	}

	seen := make(map[string]bool)
	var urls []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !strings.Contains(href, pathMarker) || href == indexURL {
			return true
		}
		if strings.HasPrefix(href, "/") {
			href = baseOf(indexURL) + href
		}
		if seen[href] {
			return true
		}
		seen[href] = true
		urls = append(urls, href)
		return len(urls) < settings.MaxItems
	})

	return urls, nil
}

func countFrom(doc *goquery.Document, selector string) int {
	text := strings.TrimSpace(doc.Find(selector).First().Text())
	if text == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimFunc(text, func(r rune) bool { return r < '0' || r > '9' }))
	if err != nil {
		return 0
	}
	return n
}

func baseOf(url string) string {
	idx := strings.Index(url, "://")
	if idx < 0 {
		return url
	}
	if slash := strings.Index(url[idx+3:], "/"); slash >= 0 {
		return url[:idx+3+slash]
	}
	return url
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
