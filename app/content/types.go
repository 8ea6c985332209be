package content

import (
	"time"
)

// Source identifies where a record was aggregated from.
type Source string

const (
	SourceCommunity Source = "community"
	SourceReddit    Source = "reddit"
	SourceStatus    Source = "status"
)

// Type classifies an item for downstream formatting. Blog and question
// items can be re-tagged with the "_updated" suffix when new comments
// are detected on a later run.
type Type string

const (
	TypeReleaseNote Type = "release_note"
	TypeDeployNote  Type = "deploy_note"
	TypeChangelog   Type = "changelog"
	TypeBlog        Type = "blog"
	TypeQuestion    Type = "question"
	TypeReddit      Type = "reddit"
	TypeStatus      Type = "status"

	UpdatedSuffix = "_updated"
)

// CommentTracked reports whether a content type participates in
// comment-count update detection. Release/deploy notes, changelog,
// reddit and status items are new-or-dropped only.
func (t Type) CommentTracked() bool {
	return t == TypeBlog || t == TypeQuestion
}

// Updated returns the re-tagged form used when new comments are detected.
func (t Type) Updated() Type {
	return t + UpdatedSuffix
}

// Item is the canonical, source-agnostic content record every source
// converts into before persistence. SourceID is the sole identity key
// for deduplication and is immutable once assigned.
type Item struct {
	Source          Source
	SourceID        string
	Title           string
	URL             string
	Content         string
	ContentType     Type
	Summary         string
	Sentiment       string
	PrimaryTopic    string
	Topics          []string // ordered, at most 2 secondary topics
	PublishedDate   time.Time
	EngagementScore int
	CommentCount    int
	FirstPosted     *time.Time
	LastEdited      *time.Time
	LastCommentAt   *time.Time
}

// Source record shapes supplied by the scraper collaborators. One
// conversion function per shape; new source shapes extend this set.

type CommunityPost struct {
	Title         string
	URL           string
	Content       string
	PublishedDate time.Time
	Likes         int
	Comments      int
	PostType      string // release_note, deploy_note, changelog, blog, question
	Author        string
	FirstPosted   *time.Time
	LastEdited    *time.Time
	LastCommentAt *time.Time
	CommentList   []Comment
}

type Comment struct {
	Author   string
	Body     string
	PostedAt time.Time
}

// TableData is the parsed configuration table attached to a feature
// entry on a release note page. All fields are optional; absent values
// stay empty rather than being defaulted.
type TableData struct {
	ConfigLevel     string
	DefaultState    string
	EnableLocation  string
	Permissions     string
	AffectedAreas   string
	RelatedIdeas    string
	BetaDate        *time.Time
	ProductionDate  *time.Time
	DeprecationDate *time.Time
}

// FeatureRecord is one H4 feature block inside a release note page.
type FeatureRecord struct {
	Category   string
	Name       string
	AnchorID   string
	AddedDate  *time.Time
	RawContent string
	Table      *TableData
}

// ChangeRecord is one entry inside a deploy note page.
type ChangeRecord struct {
	Category   string
	Name       string
	AnchorID   string
	RawContent string
	Table      *TableData
}

type UpcomingChange struct {
	ChangeDate  time.Time
	Description string
}

type ReleaseNotePage struct {
	Title           string
	URL             string
	ReleaseDate     time.Time
	Features        []FeatureRecord
	Sections        map[string][]FeatureRecord
	UpcomingChanges []UpcomingChange
}

type DeployNotePage struct {
	Title           string
	URL             string
	DeployDate      time.Time
	Changes         []ChangeRecord
	Sections        map[string][]ChangeRecord
	UpcomingChanges []UpcomingChange
}

type RedditPost struct {
	SourceID      string
	Title         string
	URL           string
	Content       string
	Subreddit     string
	Author        string
	Score         int
	NumComments   int
	PublishedDate time.Time
}

type Incident struct {
	SourceID  string
	Title     string
	URL       string
	Status    string
	Impact    string // none, minor, major, critical
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
