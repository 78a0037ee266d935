// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package social splits the social stage output into its platform
// sections: LinkedIn posts, X/Twitter threads (each in English and
// Turkish) and image-generation prompts.
package social

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTweetLength is the X/Twitter character limit.
const MaxTweetLength = 280

// Bilingual holds one piece of content in both languages.
type Bilingual struct {
	English string `json:"english" yaml:"english"`
	Turkish string `json:"turkish" yaml:"turkish"`
}

// Content is the parsed social stage output.
type Content struct {
	LinkedIn     Bilingual `json:"linkedin" yaml:"linkedin"`
	Twitter      Bilingual `json:"twitter" yaml:"twitter"`
	ImagePrompts []string  `json:"image_prompts" yaml:"image_prompts"`

	// Warnings lists problems that do not invalidate the output, such as
	// tweets over the length limit or missing sections.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// HasLinkedIn reports whether any LinkedIn text was found.
func (c Content) HasLinkedIn() bool { return c.LinkedIn.English != "" || c.LinkedIn.Turkish != "" }

// HasTwitter reports whether any X/Twitter text was found.
func (c Content) HasTwitter() bool { return c.Twitter.English != "" || c.Twitter.Turkish != "" }

type section int

const (
	sectionNone section = iota
	sectionLinkedIn
	sectionTwitter
	sectionImages
)

var (
	h1        = regexp.MustCompile(`^#\s+(.+?)\s*#*$`)
	h2        = regexp.MustCompile(`^#{2,3}\s+(.+?)\s*#*$`)
	listMark  = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s+|\d+[.)]\s+|\*\*(?:prompt|image)\s*\d*:?\*\*:?\s*|(?:prompt|image)\s*\d+\s*:\s*)`)
	tweetMark = regexp.MustCompile(`(?i)^(?:\*\*)?(?:tweet\s*)?\d+\s*(?:/\d*|[.):])(?:\*\*)?\s*`)
)

// Parse splits the social output. Unknown sections are ignored. Missing
// sections produce warnings rather than errors.
func Parse(text string) Content {
	var c Content
	buf := map[section]map[string]*strings.Builder{
		sectionLinkedIn: {},
		sectionTwitter:  {},
	}
	var prompts strings.Builder

	cur := sectionNone
	lang := "english"
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if m := h1.FindStringSubmatch(trimmed); m != nil && !strings.HasPrefix(trimmed, "##") {
			cur = classify(m[1])
			lang = "english"
			continue
		}
		if m := h2.FindStringSubmatch(trimmed); m != nil && (cur == sectionLinkedIn || cur == sectionTwitter) {
			if l := language(m[1]); l != "" {
				lang = l
				continue
			}
		}
		switch cur {
		case sectionLinkedIn, sectionTwitter:
			b, ok := buf[cur][lang]
			if !ok {
				b = &strings.Builder{}
				buf[cur][lang] = b
			}
			b.WriteString(line)
			b.WriteByte('\n')
		case sectionImages:
			prompts.WriteString(line)
			prompts.WriteByte('\n')
		}
	}

	get := func(s section, l string) string {
		if b, ok := buf[s][l]; ok {
			return strings.TrimSpace(b.String())
		}
		return ""
	}
	c.LinkedIn = Bilingual{English: get(sectionLinkedIn, "english"), Turkish: get(sectionLinkedIn, "turkish")}
	c.Twitter = Bilingual{English: get(sectionTwitter, "english"), Turkish: get(sectionTwitter, "turkish")}
	c.ImagePrompts = ImagePrompts(prompts.String())

	if !c.HasLinkedIn() {
		c.Warnings = append(c.Warnings, "no LinkedIn section found")
	}
	if !c.HasTwitter() {
		c.Warnings = append(c.Warnings, "no X/Twitter section found")
	}
	for _, l := range []struct {
		name, text string
	}{{"English", c.Twitter.English}, {"Turkish", c.Twitter.Turkish}} {
		for i, tw := range Tweets(l.text) {
			if n := utf8.RuneCountInString(tw); n > MaxTweetLength {
				c.Warnings = append(c.Warnings, fmt.Sprintf("%s tweet %d is %d characters (limit %d)", l.name, i+1, n, MaxTweetLength))
			}
		}
	}
	return c
}

func classify(heading string) section {
	h := strings.ToUpper(heading)
	switch {
	case strings.Contains(h, "LINKEDIN"):
		return sectionLinkedIn
	case strings.Contains(h, "TWITTER") || strings.HasPrefix(h, "X ") || strings.HasPrefix(h, "X/"):
		return sectionTwitter
	case strings.Contains(h, "MIDJOURNEY") || strings.Contains(h, "IMAGE") || strings.Contains(h, "VISUAL"):
		return sectionImages
	default:
		return sectionNone
	}
}

func language(heading string) string {
	h := strings.ToLower(heading)
	switch {
	case strings.Contains(h, "english") || strings.Contains(h, "ingilizce"):
		return "english"
	case strings.Contains(h, "turkish") || strings.Contains(h, "türkçe") || strings.Contains(h, "turkce"):
		return "turkish"
	default:
		return ""
	}
}

// Tweets splits a thread into individual tweets. Tweets are separated by
// blank lines or by numbered markers such as "1/", "2." or "Tweet 3:".
func Tweets(thread string) []string {
	var tweets []string
	var cur []string
	flush := func() {
		if t := strings.TrimSpace(strings.Join(cur, "\n")); t != "" {
			tweets = append(tweets, t)
		}
		cur = nil
	}
	for _, line := range strings.Split(thread, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if loc := tweetMark.FindStringIndex(trimmed); loc != nil {
			flush()
			trimmed = strings.TrimSpace(trimmed[loc[1]:])
		}
		cur = append(cur, trimmed)
	}
	flush()
	return tweets
}

// ImagePrompts extracts one prompt per list item or paragraph, with list
// markers and "Prompt N:" labels removed.
func ImagePrompts(block string) []string {
	var prompts []string
	var cur []string
	flush := func() {
		if p := strings.TrimSpace(strings.Join(cur, " ")); p != "" {
			prompts = append(prompts, strings.Trim(p, "`\"“”"))
		}
		cur = nil
	}
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "#") {
			flush()
			continue
		}
		if listMark.MatchString(trimmed) {
			flush()
			for {
				loc := listMark.FindStringIndex(trimmed)
				if loc == nil || loc[1] == 0 {
					break
				}
				trimmed = strings.TrimSpace(trimmed[loc[1]:])
			}
		}
		if trimmed != "" {
			cur = append(cur, trimmed)
		}
	}
	flush()
	return prompts
}
