package tiles

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OSMURLTemplate is the tile URL of the public openstreetmap.org servers.
const OSMURLTemplate = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

// HTTPProvider downloads tiles from a web map service. The URL template
// uses {z}, {x}, {y} placeholders and optionally {s} for a rotating
// subdomain.
type HTTPProvider struct {
	client    *http.Client
	template  string
	userAgent string
}

func NewHTTPProvider(template, userAgent string) *HTTPProvider {
	return &HTTPProvider{
		client:    &http.Client{Timeout: 30 * time.Second},
		template:  template,
		userAgent: userAgent,
	}
}

// NewOSMProvider returns a provider for the public OSM tile servers.
func NewOSMProvider(userAgent string) *HTTPProvider {
	return NewHTTPProvider(OSMURLTemplate, userAgent)
}

// URL returns the download URL for the given tile.
func (p *HTTPProvider) URL(tile Tile) string {
	url := p.template
	url = strings.ReplaceAll(url, "{z}", strconv.Itoa(tile.Zoom))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(tile.X))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(tile.Y))
	if strings.Contains(url, "{s}") {
		subdomain := string(rune('a' + (tile.X+tile.Y)%3))
		url = strings.ReplaceAll(url, "{s}", subdomain)
	}
	return url
}

func (p *HTTPProvider) GetTile(tile Tile) (image.Image, error) {
	url := p.URL(tile)
	slog.Debug("requesting tile", "url", url)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for tile %s: %w", tile, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/webp,*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching tile %s: %w", tile, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching tile %s: unexpected status %d", tile, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding tile %s: %w", tile, err)
	}
	return img, nil
}
