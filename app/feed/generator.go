package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/canvas-comb/app/cfg"
	"github.com/lysyi3m/canvas-comb/app/database"
)

const (
	feedTitle       = "Canvas Comb"
	feedDescription = "Aggregated Canvas LMS updates: release notes, deploy notes, community posts, Reddit discussion and status incidents"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders the aggregated items as an RSS 2.0 document. The guid is
// the item's source_id so readers dedup across regenerations; the
// description is the summary plus a sentiment/topic footer.
func (g *Generator) Run(items []database.Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", feedTitle, 4)
	g.writeElement(&buf, "link", g.selfLink(), 4)
	g.writeElement(&buf, "description", feedDescription, 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s/feed.xml\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.selfLink())))

	lastBuildDate := time.Now().UTC()
	if len(items) > 0 && items[0].PublishedDate != nil {
		lastBuildDate = cmp.Or(*items[0].PublishedDate, items[0].CreatedAt)
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Canvas-Comb/%s", cfg.Get().Version), 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item database.Item) {
	buf.WriteString("    <item>\n")

	buf.WriteString(`      <guid isPermaLink="false">`)
	xml.EscapeText(buf, []byte(item.SourceID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.URL, 6)
	g.writeElement(buf, "description", cmp.Or(itemDescription(item), "No description available"), 6)

	if item.Content != "" && item.Content != item.Summary {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(item.Content)
		buf.WriteString("]]></content:encoded>\n")
	}

	if item.PublishedDate != nil {
		g.writeElement(buf, "pubDate", item.PublishedDate.Format(time.RFC1123Z), 6)
	} else {
		g.writeElement(buf, "pubDate", item.CreatedAt.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "category", item.ContentType, 6)
	if item.PrimaryTopic != "" {
		g.writeElement(buf, "category", item.PrimaryTopic, 6)
	}

	buf.WriteString("    </item>\n")
}

// itemDescription builds the reader-facing description: the LLM (or
// fallback) summary followed by a sentiment/topic footer line.
func itemDescription(item database.Item) string {
	var parts []string
	if item.Summary != "" {
		parts = append(parts, item.Summary)
	}

	var footer []string
	if item.Sentiment != "" {
		footer = append(footer, "Sentiment: "+item.Sentiment)
	}
	if item.PrimaryTopic != "" {
		topic := item.PrimaryTopic
		if len(item.Topics) > 0 {
			topic += " (" + strings.Join(item.Topics, ", ") + ")"
		}
		footer = append(footer, "Topic: "+topic)
	}
	if item.EngagementScore > 0 {
		footer = append(footer, fmt.Sprintf("Engagement: %d", item.EngagementScore))
	}
	if len(footer) > 0 {
		parts = append(parts, strings.Join(footer, " | "))
	}

	return strings.Join(parts, "\n\n")
}

func (g *Generator) selfLink() string {
	if cfg.Get().BaseUrl != "" {
		return cfg.Get().BaseUrl
	}
	return fmt.Sprintf("http://localhost:%s", cfg.Get().Port)
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
