package opengraph

import (
	"sort"
	"strings"
)

// Node is one property in the metadata tree. A node can carry its own
// content (og:image = URL) and children at the same time (og:image:width).
type Node struct {
	Content  string           `json:"content,omitempty"`
	Children map[string]*Node `json:"children,omitempty"`
}

// Tree is the nested open-graph property tree attached to a target,
// keyed by the first path segment after the "og:" prefix.
type Tree map[string]*Node

// Property is one flattened metadata attribute ready for rendering.
type Property struct {
	Property string `json:"property"`
	Name     string `json:"name,omitempty"`
	Content  string `json:"content"`
}

// renames collapses composite keys onto their shorter canonical property.
// og:image:url and og:image mean the same thing to consumers.
var renames = map[string]string{
	"og:image:url": "og:image",
	"og:video:url": "og:video",
	"og:audio:url": "og:audio",
}

// displayNames maps properties onto the alternate name attribute some
// consumers read instead of property.
var displayNames = map[string]string{
	"og:description": "description",
	"og:title":       "title",
}

// mediaKeys are the subtrees dropped when the enrichment policy asks for
// text-only metadata.
var mediaKeys = []string{"image", "video", "audio"}

// Add inserts a value at the colon-separated path below the "og:" prefix,
// creating intermediate nodes as needed. Path segments are lowercased.
func (t Tree) Add(path, content string) {
	segments := strings.Split(strings.ToLower(path), ":")
	if len(segments) == 0 || segments[0] == "" {
		return
	}

	nodes := t
	var node *Node
	for _, seg := range segments {
		n, ok := nodes[seg]
		if !ok {
			n = &Node{}
			nodes[seg] = n
		}
		if n.Children == nil {
			n.Children = make(map[string]*Node)
		}
		nodes = n.Children
		node = n
	}
	node.Content = content
}

// StripMedia removes image, video and audio subtrees in place.
func (t Tree) StripMedia() {
	for _, k := range mediaKeys {
		delete(t, k)
	}
}

// ImageURL returns the primary image URL, or "" if the tree has none.
func (t Tree) ImageURL() string {
	img, ok := t["image"]
	if !ok {
		return ""
	}
	if img.Content != "" {
		return img.Content
	}
	if u, ok := img.Children["url"]; ok {
		return u.Content
	}
	return ""
}

// flatFrame is one pending node on the flatten work stack.
type flatFrame struct {
	prefix string
	node   *Node
}

// Flatten walks the tree depth-first and returns one Property per node that
// carries content. canonicalURL, when non-empty, replaces the content of the
// og:url property so shared links reference the short URL rather than the
// destination. Flattening a tree with no nested children is the identity
// mapping of its keys.
func Flatten(t Tree, canonicalURL string) []Property {
	if len(t) == 0 {
		return nil
	}

	stack := make([]flatFrame, 0, len(t))
	for _, key := range sortedKeys(t) {
		stack = append(stack, flatFrame{prefix: "og:" + key, node: t[key]})
	}

	var out []Property
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, key := range sortedKeys(frame.node.Children) {
			stack = append(stack, flatFrame{
				prefix: frame.prefix + ":" + key,
				node:   frame.node.Children[key],
			})
		}

		if frame.node.Content == "" {
			continue
		}

		prop := frame.prefix
		if canonical, ok := renames[prop]; ok {
			prop = canonical
		}

		content := frame.node.Content
		if prop == "og:url" && canonicalURL != "" {
			content = canonicalURL
		}

		out = append(out, Property{
			Property: prop,
			Name:     displayNames[prop],
			Content:  content,
		})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
