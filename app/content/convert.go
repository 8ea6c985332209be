package content

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// Converters are pure: no I/O, no store access. Missing optional fields
// default to zero values; title/url/content are the caller's contract.

func FromCommunityPost(post CommunityPost) Item {
	contentType := communityType(post.PostType)

	return Item{
		Source:          SourceCommunity,
		SourceID:        "community_" + Slugify(post.URL),
		Title:           post.Title,
		URL:             post.URL,
		Content:         post.Content,
		ContentType:     contentType,
		PublishedDate:   post.PublishedDate,
		EngagementScore: post.Likes + post.Comments,
		CommentCount:    post.Comments,
		FirstPosted:     post.FirstPosted,
		LastEdited:      post.LastEdited,
		LastCommentAt:   post.LastCommentAt,
	}
}

func FromReleaseNotePage(page ReleaseNotePage) Item {
	return Item{
		Source:        SourceCommunity,
		SourceID:      "community_" + Slugify(page.URL),
		Title:         page.Title,
		URL:           page.URL,
		Content:       pageSummaryContent(len(page.Features), "feature"),
		ContentType:   TypeReleaseNote,
		PublishedDate: page.ReleaseDate,
	}
}

func FromDeployNotePage(page DeployNotePage) Item {
	return Item{
		Source:        SourceCommunity,
		SourceID:      "community_" + Slugify(page.URL),
		Title:         page.Title,
		URL:           page.URL,
		Content:       pageSummaryContent(len(page.Changes), "change"),
		ContentType:   TypeDeployNote,
		PublishedDate: page.DeployDate,
	}
}

func FromRedditPost(post RedditPost) Item {
	sourceID := post.SourceID
	if !strings.HasPrefix(sourceID, "reddit_") {
		sourceID = "reddit_" + sourceID
	}

	return Item{
		Source:          SourceReddit,
		SourceID:        sourceID,
		Title:           post.Title,
		URL:             post.URL,
		Content:         post.Content,
		ContentType:     TypeReddit,
		PublishedDate:   post.PublishedDate,
		EngagementScore: post.Score + post.NumComments,
		CommentCount:    post.NumComments,
	}
}

func FromIncident(incident Incident) Item {
	title := incident.Title
	if prefix := impactPrefix(incident.Impact); prefix != "" {
		title = prefix + " " + title
	}

	return Item{
		Source:        SourceStatus,
		SourceID:      "status_" + cmp.Or(incident.SourceID, Slugify(incident.URL)),
		Title:         title,
		URL:           incident.URL,
		Content:       incident.Content,
		ContentType:   TypeStatus,
		PublishedDate: incident.CreatedAt,
		FirstPosted:   timeOrNil(incident.CreatedAt),
		LastEdited:    timeOrNil(incident.UpdatedAt),
	}
}

func communityType(postType string) Type {
	switch postType {
	case "release_note":
		return TypeReleaseNote
	case "deploy_note":
		return TypeDeployNote
	case "changelog":
		return TypeChangelog
	case "question":
		return TypeQuestion
	default:
		return TypeBlog
	}
}

func impactPrefix(impact string) string {
	switch strings.ToLower(impact) {
	case "critical":
		return "[CRITICAL]"
	case "major":
		return "[MAJOR]"
	case "minor":
		return "[MINOR]"
	default:
		return ""
	}
}

func pageSummaryContent(count int, noun string) string {
	if count == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", count, noun)
}

// timeOrNil keeps zero times out of nullable columns.
func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
