package opengraph

import (
	"reflect"
	"sort"
	"testing"
)

func propMap(props []Property) map[string]Property {
	m := make(map[string]Property, len(props))
	for _, p := range props {
		m[p.Property] = p
	}
	return m
}

func TestTreeAdd(t *testing.T) {
	t.Run("single segment", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("title", "A Page")

		if tree["title"] == nil || tree["title"].Content != "A Page" {
			t.Fatalf("Add() did not store title: %#v", tree)
		}
	})

	t.Run("nested segments", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("image", "https://img.example/a.png")
		tree.Add("image:width", "300")

		img := tree["image"]
		if img == nil {
			t.Fatal("image node missing")
		}
		if img.Content != "https://img.example/a.png" {
			t.Errorf("image content = %q", img.Content)
		}
		if img.Children["width"] == nil || img.Children["width"].Content != "300" {
			t.Errorf("image:width not stored: %#v", img.Children)
		}
	})

	t.Run("lowercases segments", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("Image:Width", "300")
		if tree["image"] == nil || tree["image"].Children["width"] == nil {
			t.Fatalf("Add() did not lowercase path: %#v", tree)
		}
	})
}

func TestFlatten(t *testing.T) {
	t.Run("flat input flattens to one property per key", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("title", "A Page")
		tree.Add("type", "website")
		tree.Add("site_name", "Example")

		props := Flatten(tree, "")
		if len(props) != 3 {
			t.Fatalf("Flatten() returned %d properties, want 3", len(props))
		}

		got := make([]string, 0, len(props))
		for _, p := range props {
			got = append(got, p.Property+"="+p.Content)
		}
		sort.Strings(got)
		want := []string{"og:site_name=Example", "og:title=A Page", "og:type=website"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Flatten() = %v, want %v", got, want)
		}
	})

	t.Run("emits nested nodes with full property path", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("image", "https://img.example/a.png")
		tree.Add("image:width", "300")
		tree.Add("image:height", "200")

		m := propMap(Flatten(tree, ""))
		if m["og:image"].Content != "https://img.example/a.png" {
			t.Errorf("og:image = %#v", m["og:image"])
		}
		if m["og:image:width"].Content != "300" {
			t.Errorf("og:image:width = %#v", m["og:image:width"])
		}
		if m["og:image:height"].Content != "200" {
			t.Errorf("og:image:height = %#v", m["og:image:height"])
		}
	})

	t.Run("renames composite url keys", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("image:url", "https://img.example/a.png")

		m := propMap(Flatten(tree, ""))
		if _, ok := m["og:image:url"]; ok {
			t.Error("og:image:url survived the rename table")
		}
		if m["og:image"].Content != "https://img.example/a.png" {
			t.Errorf("renamed og:image = %#v", m["og:image"])
		}
	})

	t.Run("attaches display names", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("description", "about the page")

		m := propMap(Flatten(tree, ""))
		if m["og:description"].Name != "description" {
			t.Errorf("og:description Name = %q, want %q", m["og:description"].Name, "description")
		}
	})

	t.Run("rewrites canonical url to the short link", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("url", "https://very.long.example/some/deep/path")
		tree.Add("title", "A Page")

		m := propMap(Flatten(tree, "https://sho.ta/abc123XYZ0"))
		if m["og:url"].Content != "https://sho.ta/abc123XYZ0" {
			t.Errorf("og:url = %q, want short link", m["og:url"].Content)
		}
		if m["og:title"].Content != "A Page" {
			t.Errorf("og:title should be untouched, got %q", m["og:title"].Content)
		}
	})

	t.Run("nodes without content are skipped", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("image:width", "300") // image itself has no content

		m := propMap(Flatten(tree, ""))
		if _, ok := m["og:image"]; ok {
			t.Error("content-less og:image node was emitted")
		}
		if _, ok := m["og:image:width"]; !ok {
			t.Error("og:image:width missing")
		}
	})

	t.Run("empty tree flattens to nil", func(t *testing.T) {
		if props := Flatten(nil, ""); props != nil {
			t.Errorf("Flatten(nil) = %v, want nil", props)
		}
	})
}

func TestStripMedia(t *testing.T) {
	tree := make(Tree)
	tree.Add("title", "A Page")
	tree.Add("image", "https://img.example/a.png")
	tree.Add("image:width", "300")
	tree.Add("video", "https://vid.example/v.mp4")
	tree.Add("audio", "https://aud.example/a.mp3")

	tree.StripMedia()

	for _, k := range []string{"image", "video", "audio"} {
		if _, ok := tree[k]; ok {
			t.Errorf("StripMedia() left %q subtree", k)
		}
	}
	if tree["title"] == nil {
		t.Error("StripMedia() removed non-media property")
	}
}

func TestImageURL(t *testing.T) {
	t.Run("direct content", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("image", "https://img.example/a.png")
		if got := tree.ImageURL(); got != "https://img.example/a.png" {
			t.Errorf("ImageURL() = %q", got)
		}
	})

	t.Run("url child", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("image:url", "https://img.example/b.png")
		if got := tree.ImageURL(); got != "https://img.example/b.png" {
			t.Errorf("ImageURL() = %q", got)
		}
	})

	t.Run("absent", func(t *testing.T) {
		tree := make(Tree)
		tree.Add("title", "A Page")
		if got := tree.ImageURL(); got != "" {
			t.Errorf("ImageURL() = %q, want empty", got)
		}
	})
}
