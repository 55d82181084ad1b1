package tiles

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// MBTilesProvider reads raster tiles from an MBTiles archive. The
// archive is opened read-only; tile rows are stored in TMS order, so the
// Y index is flipped on lookup.
type MBTilesProvider struct {
	db       *sql.DB
	name     string
	format   string
	minZoom  int
	maxZoom  int
	hasZooms bool
}

func OpenMBTiles(path string) (*MBTilesProvider, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening mbtiles %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening mbtiles %s: %w", path, err)
	}

	p := &MBTilesProvider{db: db}
	if err := p.readMetadata(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *MBTilesProvider) readMetadata() error {
	rows, err := p.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return fmt.Errorf("reading mbtiles metadata: %w", err)
	}
	defer rows.Close()

	var minSet, maxSet bool
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("reading mbtiles metadata: %w", err)
		}
		switch name {
		case "name":
			p.name = value
		case "format":
			p.format = value
		case "minzoom":
			if z, err := strconv.Atoi(value); err == nil {
				p.minZoom, minSet = z, true
			}
		case "maxzoom":
			if z, err := strconv.Atoi(value); err == nil {
				p.maxZoom, maxSet = z, true
			}
		}
	}
	p.hasZooms = minSet && maxSet
	return rows.Err()
}

// Name returns the tileset name from the archive metadata.
func (p *MBTilesProvider) Name() string { return p.name }

// Format returns the tile image format from the archive metadata,
// typically "png" or "jpg".
func (p *MBTilesProvider) Format() string { return p.format }

// Scheme returns a tile scheme matching the archive's zoom range, or the
// OSM default when the metadata does not declare one.
func (p *MBTilesProvider) Scheme() *Scheme {
	if p.hasZooms {
		return NewScheme(p.minZoom, p.maxZoom, DefaultTileSize)
	}
	return OSM()
}

func (p *MBTilesProvider) GetTile(tile Tile) (image.Image, error) {
	// MBTiles stores rows bottom-up (TMS)
	flippedY := (1 << uint(tile.Zoom)) - 1 - tile.Y

	var blob []byte
	err := p.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		tile.Zoom, tile.X, flippedY,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tile %s not in tileset", tile)
	}
	if err != nil {
		return nil, fmt.Errorf("querying tile %s: %w", tile, err)
	}

	img, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decoding tile %s: %w", tile, err)
	}
	return img, nil
}

func (p *MBTilesProvider) Close() error {
	return p.db.Close()
}
