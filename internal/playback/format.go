package playback

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// FormatTime renders seconds as m:ss, truncating fractions. Unknown,
// negative or non-finite values render as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// ResolveURL makes source absolute. Absolute sources are returned as is;
// relative ones, including root-relative paths, are appended to base's path,
// so "/a.mp3" against "https://cdn/media" becomes "https://cdn/media/a.mp3".
func ResolveURL(source, base string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("empty source url")
	}
	ref, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("relative source %q without a base url", source)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if !baseURL.IsAbs() {
		return "", fmt.Errorf("base url %q is not absolute", base)
	}
	out := *baseURL
	out.Path = strings.TrimRight(baseURL.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	out.RawPath = ""
	out.RawQuery = ref.RawQuery
	out.Fragment = ref.Fragment
	return out.String(), nil
}
