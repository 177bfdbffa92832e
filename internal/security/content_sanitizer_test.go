package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags verifies allowed tags pass through untouched.
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		// wantContains must all appear as substrings of the output
		wantContains []string
	}{
		{
			name:         "p tag is allowed",
			input:        "<p>test paragraph</p>",
			wantContains: []string{"<p>test paragraph</p>"},
		},
		{
			name:         "br tag is allowed",
			input:        "line1<br>line2",
			wantContains: []string{"<br>", "line1", "line2"},
		},
		{
			name:         "self-closing br tag is allowed",
			input:        "line1<br/>line2",
			wantContains: []string{"line1", "line2"},
		},
		{
			name:         "a tag is allowed",
			input:        `<a href="https://example.com">link</a>`,
			wantContains: []string{"<a", "href", "https://example.com", "link", "</a>"},
		},
		{
			name:         "ul and li tags are allowed",
			input:        "<ul><li>item1</li><li>item2</li></ul>",
			wantContains: []string{"<ul>", "<li>", "item1", "item2", "</li>", "</ul>"},
		},
		{
			name:         "ol and li tags are allowed",
			input:        "<ol><li>item1</li><li>item2</li></ol>",
			wantContains: []string{"<ol>", "<li>", "item1", "item2", "</li>", "</ol>"},
		},
		{
			name:         "blockquote tag is allowed",
			input:        "<blockquote>quoted text</blockquote>",
			wantContains: []string{"<blockquote>quoted text</blockquote>"},
		},
		{
			name:         "pre and code tags are allowed",
			input:        "<pre><code>func main() {}</code></pre>",
			wantContains: []string{"<pre>", "<code>", "func main() {}", "</code>", "</pre>"},
		},
		{
			name:         "strong tag is allowed",
			input:        "<strong>bold text</strong>",
			wantContains: []string{"<strong>bold text</strong>"},
		},
		{
			name:         "em tag is allowed",
			input:        "<em>emphasized text</em>",
			wantContains: []string{"<em>emphasized text</em>"},
		},
		{
			name:         "img tag with https src is allowed",
			input:        `<img src="https://example.com/image.png" alt="a photo">`,
			wantContains: []string{"<img", "src", "https://example.com/image.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenTags verifies disallowed tags are stripped.
func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "script tag is stripped",
			input:        `<p>test</p><script>alert('xss')</script><p>safe</p>`,
			wantAbsent:   []string{"<script", "</script>", "alert"},
			wantContains: []string{"test", "safe"},
		},
		{
			name:         "iframe tag is stripped",
			input:        `<p>test</p><iframe src="https://evil.com"></iframe>`,
			wantAbsent:   []string{"<iframe", "</iframe>", "evil.com"},
			wantContains: []string{"test"},
		},
		{
			name:         "style tag is stripped",
			input:        `<p>test</p><style>body{display:none}</style>`,
			wantAbsent:   []string{"<style", "</style>", "display:none"},
			wantContains: []string{"test"},
		},
		{
			name:         "disallowed div tag is stripped",
			input:        `<div><p>test</p></div>`,
			wantAbsent:   []string{"<div", "</div>"},
			wantContains: []string{"<p>test</p>"},
		},
		{
			name:         "disallowed span tag is stripped",
			input:        `<span>test</span>`,
			wantAbsent:   []string{"<span", "</span>"},
			wantContains: []string{"test"},
		},
		{
			name:       "disallowed form tag is stripped",
			input:      `<form action="https://evil.com"><input type="text"></form>`,
			wantAbsent: []string{"<form", "</form>", "<input"},
		},
		{
			name:       "object tag is stripped",
			input:      `<object data="https://evil.com/flash.swf"></object>`,
			wantAbsent: []string{"<object", "</object>", "flash.swf"},
		},
		{
			name:       "embed tag is stripped",
			input:      `<embed src="https://evil.com/plugin">`,
			wantAbsent: []string{"<embed", "plugin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_OnEventAttributes verifies on* event attributes are stripped.
func TestSanitize_OnEventAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{
			name:       "onclick is stripped",
			input:      `<p onclick="alert('xss')">test</p>`,
			wantAbsent: []string{"onclick", "alert"},
		},
		{
			name:       "onload is stripped",
			input:      `<img src="https://example.com/img.png" onload="alert('xss')">`,
			wantAbsent: []string{"onload", "alert"},
		},
		{
			name:       "onerror is stripped",
			input:      `<img src="https://example.com/img.png" onerror="alert('xss')">`,
			wantAbsent: []string{"onerror", "alert"},
		},
		{
			name:       "onmouseover is stripped",
			input:      `<a href="https://example.com" onmouseover="alert('xss')">link</a>`,
			wantAbsent: []string{"onmouseover", "alert"},
		},
		{
			name:       "onfocus is stripped",
			input:      `<a href="https://example.com" onfocus="alert('xss')">link</a>`,
			wantAbsent: []string{"onfocus", "alert"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitize_ImgHTTPSOnly verifies img src only allows the https scheme.
func TestSanitize_ImgHTTPSOnly(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "https img is allowed",
			input:        `<img src="https://example.com/image.png" alt="a safe photo">`,
			wantContains: []string{"<img", "https://example.com/image.png"},
		},
		{
			name:       "http img is rejected",
			input:      `<img src="http://example.com/image.png" alt="an unsafe photo">`,
			wantAbsent: []string{"http://example.com/image.png"},
		},
		{
			name:       "javascript img is rejected",
			input:      `<img src="javascript:alert('xss')" alt="XSS">`,
			wantAbsent: []string{"javascript:", "alert"},
		},
		{
			name:       "data URI img is rejected",
			input:      `<img src="data:image/png;base64,abc" alt="a data URI">`,
			wantAbsent: []string{"data:image"},
		},
		{
			name:       "ftp img is rejected",
			input:      `<img src="ftp://example.com/image.png" alt="FTP">`,
			wantAbsent: []string{"ftp://"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitize_AnchorAttributes verifies a tags get target="_blank" and
// rel="noopener noreferrer" forced on.
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:  "a tag gets target=_blank",
			input: `<a href="https://example.com">link</a>`,
			wantContains: []string{
				`target="_blank"`,
				"https://example.com",
				"link",
			},
		},
		{
			name:  "a tag gets rel=noopener noreferrer",
			input: `<a href="https://example.com">link</a>`,
			wantContains: []string{
				"noopener",
				"noreferrer",
			},
		},
		{
			name:  "an existing target is overwritten",
			input: `<a href="https://example.com" target="_self">link</a>`,
			wantContains: []string{
				`target="_blank"`,
			},
		},
		{
			name:  "an existing rel is overwritten",
			input: `<a href="https://example.com" rel="nofollow">link</a>`,
			wantContains: []string{
				"noopener",
				"noreferrer",
			},
		},
		{
			name:  "an a tag with no href is handled safely",
			input: `<a>text link</a>`,
			wantContains: []string{
				"text link",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_AnchorNoTargetSelf verifies target="_self" never survives.
func TestSanitize_AnchorNoTargetSelf(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<a href="https://example.com" target="_self">link</a>`
	got := sanitizer.Sanitize(input)

	if strings.Contains(got, `target="_self"`) {
		t.Errorf("Sanitize(%q) = %q, should NOT contain target=\"_self\"", input, got)
	}
}

// TestSanitize_EmptyInput verifies an empty string is handled safely.
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize("")
	if got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}
}

// TestSanitize_PlainText verifies plain text passes through unchanged.
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "This is plain text. It contains no HTML tags."
	got := sanitizer.Sanitize(input)
	if got != input {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", input, got)
	}
}

// TestSanitize_Idempotent verifies the same input always produces the
// same output, including re-sanitizing an already-sanitized value.
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>test<strong>bold</strong></p><a href="https://example.com">link</a><img src="https://example.com/img.png" alt="a photo">`

	result1 := sanitizer.Sanitize(input)
	result2 := sanitizer.Sanitize(input)
	result3 := sanitizer.Sanitize(result1) // sanitize twice

	if result1 != result2 {
		t.Errorf("idempotency violated: first=%q, second=%q", result1, result2)
	}
	if result1 != result3 {
		t.Errorf("result changed on double-sanitize: first=%q, double=%q", result1, result3)
	}
}

// TestSanitize_ComplexHTML verifies sanitization of a mixed HTML document.
func TestSanitize_ComplexHTML(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<div class="article">
<h1>Title</h1>
<p>This is an <strong>important</strong> article.</p>
<script>document.cookie</script>
<ul>
<li>item1</li>
<li>item2</li>
</ul>
<img src="https://example.com/photo.jpg" alt="a photo" onerror="alert('xss')">
<a href="https://example.com" onclick="steal()">original article</a>
<iframe src="https://evil.com"></iframe>
<style>.hidden{display:none}</style>
<blockquote>quoted text</blockquote>
<pre><code>fmt.Println("Hello")</code></pre>
</div>`

	got := sanitizer.Sanitize(input)

	// allowed tags survive
	allowedParts := []string{
		"<p>", "</p>",
		"<strong>", "</strong>",
		"<ul>", "</ul>",
		"<li>", "</li>",
		"<blockquote>", "</blockquote>",
		"<pre>", "</pre>",
		"<code>", "</code>",
		"https://example.com/photo.jpg",
		"original article",
		"quoted text",
		"fmt.Println(", // bluemonday encodes double quotes as &#34;, so this is a partial match
	}
	for _, part := range allowedParts {
		if !strings.Contains(got, part) {
			t.Errorf("result is missing %q: %q", part, got)
		}
	}

	// forbidden elements are stripped
	forbiddenParts := []string{
		"<script", "</script>",
		"<iframe", "</iframe>",
		"<style", "</style>",
		"<div", "</div>",
		"<h1", "</h1>",
		"onclick",
		"onerror",
		"document.cookie",
		"steal()",
		"display:none",
		"evil.com",
	}
	for _, part := range forbiddenParts {
		if strings.Contains(got, part) {
			t.Errorf("result contains forbidden element %q: %q", part, got)
		}
	}

	// the a tag gets target="_blank" and rel
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("a tag is missing target=\"_blank\": %q", got)
	}
	if !strings.Contains(got, "noopener") {
		t.Errorf("a tag is missing noopener: %q", got)
	}
	if !strings.Contains(got, "noreferrer") {
		t.Errorf("a tag is missing noreferrer: %q", got)
	}
}

// TestSanitize_XSSPayloads verifies common XSS payloads are neutralized.
func TestSanitize_XSSPayloads(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{
			name:       "SVG onload XSS",
			input:      `<svg onload="alert('xss')">`,
			wantAbsent: []string{"<svg", "onload", "alert"},
		},
		{
			name:       "img onerror XSS",
			input:      `<img src="x" onerror="alert('xss')">`,
			wantAbsent: []string{"onerror", "alert"},
		},
		{
			name:       "javascript URI",
			input:      `<a href="javascript:alert('xss')">click</a>`,
			wantAbsent: []string{"javascript:"},
		},
		{
			name:       "script via data URI",
			input:      `<a href="data:text/html,<script>alert('xss')</script>">data</a>`,
			wantAbsent: []string{"data:text/html"},
		},
		{
			name:       "XSS via style attribute",
			input:      `<p style="background:url(javascript:alert('xss'))">test</p>`,
			wantAbsent: []string{"style=", "background:", "javascript:"},
		},
		{
			name:       "mixed-case event handler",
			input:      `<p OnClick="alert('xss')">test</p>`,
			wantAbsent: []string{"OnClick", "onclick", "alert"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(strings.ToLower(got), strings.ToLower(absent)) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q (case-insensitive)", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitize_ImgAltAttribute verifies the img alt attribute survives.
func TestSanitize_ImgAltAttribute(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<img src="https://example.com/photo.jpg" alt="a descriptive caption">`
	got := sanitizer.Sanitize(input)

	if !strings.Contains(got, `alt="a descriptive caption"`) {
		t.Errorf("Sanitize(%q) = %q, expected alt attribute to be preserved", input, got)
	}
}

// TestContentSanitizerInterface verifies *ContentSanitizer satisfies
// ContentSanitizerService.
func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
