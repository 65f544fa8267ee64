package formatting

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/tidwall/gjson"

	"mrilo/internal/domain/models"
)

var (
	documentSuffix = regexp.MustCompile(`(?i)\.(pdf|doc|docx|txt)$`)
	imageSuffix    = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)
	htmlTag        = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
)

var snippetConverter = md.NewConverter("", true, nil)

// FormatSources converts provider citation objects into Sources.
// Each item may carry url, title, text|snippet|description and
// thumbnail_url|image_url; the title falls back to the url.
func FormatSources(items []gjson.Result) []models.Source {
	sources := make([]models.Source, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		url := item.Get("url").String()
		title := item.Get("title").String()
		if title == "" {
			title = url
		}
		sources = append(sources, models.Source{
			Title: title,
			URL:   url,
			Text:  SnippetText(firstString(item, "text", "snippet", "description")),
			Image: firstString(item, "thumbnail_url", "image_url"),
			Type:  SourceTypeOf(url),
		})
	}
	return sources
}

// SourcesFromURLs builds Sources from a bare citation list
func SourcesFromURLs(urls []string) []models.Source {
	sources := make([]models.Source, 0, len(urls))
	for _, url := range urls {
		if url = strings.TrimSpace(url); url == "" {
			continue
		}
		sources = append(sources, models.Source{Title: url, URL: url, Type: SourceTypeOf(url)})
	}
	return sources
}

// SourceTypeOf infers what a URL points at from its host and suffix.
func SourceTypeOf(url string) models.SourceType {
	switch {
	case url == "":
		return models.SourceTypeWebpage
	case strings.Contains(url, "youtube.com") || strings.Contains(url, "vimeo.com"):
		return models.SourceTypeVideo
	case documentSuffix.MatchString(url):
		return models.SourceTypeDocument
	case imageSuffix.MatchString(url):
		return models.SourceTypeImage
	default:
		return models.SourceTypeWebpage
	}
}

func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key).String(); v != "" {
			return v
		}
	}
	return ""
}

// SnippetText turns an HTML search snippet into Markdown. Plain text, and
// anything the converter rejects, is returned trimmed.
func SnippetText(snippet string) string {
	snippet = strings.TrimSpace(snippet)
	if !htmlTag.MatchString(snippet) {
		return snippet
	}
	out, err := snippetConverter.ConvertString(snippet)
	if err != nil {
		return snippet
	}
	return strings.TrimSpace(out)
}
