package photohost

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

const listPageSize = 100

// ListAlbums retrieves all albums, paging through the API.
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album
	for offset := 0; ; offset += listPageSize {
		endpoint := fmt.Sprintf("albums?count=%d&offset=%d", listPageSize, offset)
		page, err := doGetJSON[[]Album](ctx, c, endpoint)
		if err != nil {
			return nil, err
		}
		albums = append(albums, *page...)
		if len(*page) < listPageSize {
			return albums, nil
		}
	}
}

// GetAlbum retrieves a single album by UID.
func (c *Client) GetAlbum(ctx context.Context, albumUID string) (*Album, error) {
	return doGetJSON[Album](ctx, c, fmt.Sprintf("albums/%s", albumUID))
}

// ListAlbumItems retrieves all items in an album, paging through the API.
func (c *Client) ListAlbumItems(ctx context.Context, albumUID string) ([]Item, error) {
	var items []Item
	for offset := 0; ; offset += listPageSize {
		endpoint := fmt.Sprintf("albums/%s/items?count=%d&offset=%d", albumUID, listPageSize, offset)
		page, err := doGetJSON[[]Item](ctx, c, endpoint)
		if err != nil {
			return nil, err
		}
		items = append(items, *page...)
		if len(*page) < listPageSize {
			return items, nil
		}
	}
}

// Download fetches the item's image file into destDir and returns the local
// path. An existing file of the same name is reused without a request.
func (c *Client) Download(ctx context.Context, item Item, destDir string) (string, error) {
	dest := filepath.Join(destDir, item.UID+"_"+filepath.Base(item.FileName))
	if _, err := os.Stat(dest); err == nil {
		slog.Debug("download skipped, file exists", "item", item.UID, "path", dest)
		return dest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL("items", item.UID, "download"), nil)
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("could not create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("could not write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("could not close download: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("could not move download into place: %w", err)
	}
	return dest, nil
}

// UpdateMetadata writes the proposed caption and keywords back to the host.
func (c *Client) UpdateMetadata(ctx context.Context, itemUID string, update MetadataUpdate) (*Item, error) {
	return doPutJSON[Item](ctx, c, fmt.Sprintf("items/%s", itemUID), update)
}
