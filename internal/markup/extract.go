// Package markup pulls image references out of mixed markdown/HTML article
// bodies and performs the exact literal URL substitution the verification
// protocol is built on.
package markup

import (
	"net/url"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// ExtractImageURLs returns the absolute http/https image references found in
// doc, de-duplicated, in order of first occurrence. Both markdown image
// syntax and HTML <img src> attributes are recognized; relative paths and
// non-web schemes are rejected.
func ExtractImageURLs(doc string) []string {
	seen := make(map[string]struct{})
	var urls []string

	collect := func(raw string) {
		if !isAbsoluteWebURL(raw) {
			return
		}
		if _, ok := seen[raw]; ok {
			return
		}
		seen[raw] = struct{}{}
		urls = append(urls, raw)
	}

	for _, u := range markdownImageURLs(doc) {
		collect(u)
	}
	for _, u := range htmlImageURLs(doc) {
		collect(u)
	}

	// The two passes each preserve their own order; merge back into document
	// order by first occurrence.
	sort.SliceStable(urls, func(i, j int) bool {
		return strings.Index(doc, urls[i]) < strings.Index(doc, urls[j])
	})

	return urls
}

func markdownImageURLs(doc string) []string {
	var urls []string

	source := []byte(doc)
	root := goldmark.New().Parser().Parse(text.NewReader(source))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindImage {
			urls = append(urls, string(n.(*ast.Image).Destination))
		}
		return ast.WalkContinue, nil
	})

	return urls
}

func htmlImageURLs(doc string) []string {
	var urls []string

	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return urls
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tokenizer.TagName()
		if string(name) != "img" || !hasAttr {
			continue
		}
		for {
			key, val, more := tokenizer.TagAttr()
			if string(key) == "src" {
				urls = append(urls, string(val))
			}
			if !more {
				break
			}
		}
	}
}

func isAbsoluteWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
