package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// PingPath is probed by the network monitor to decide online state.
const PingPath = "/v1/ping"

// CurrentUser returns the account the configured token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/v1/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("api: decoding user: %w", err)
	}

	return &user, nil
}

// GetMovie fetches one catalog movie by id.
func (c *Client) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	resp, err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/v1/movies/%d", id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var movie Movie
	if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
		return nil, fmt.Errorf("api: decoding movie %d: %w", id, err)
	}

	return &movie, nil
}

// ListFavorites fetches the user's full favorites list.
func (c *Client) ListFavorites(ctx context.Context, userID string) ([]ListItem, error) {
	return c.fetchList(ctx, userID, "favorites")
}

// ListWatchlist fetches the user's full watchlist.
func (c *Client) ListWatchlist(ctx context.Context, userID string) ([]ListItem, error) {
	return c.fetchList(ctx, userID, "watchlist")
}

// AddFavorite upserts one favorites entry. The PUT is idempotent: replaying
// the same entry is harmless.
func (c *Client) AddFavorite(ctx context.Context, userID string, item ListItem) error {
	return c.putListItem(ctx, userID, "favorites", item)
}

// AddWatchlist upserts one watchlist entry.
func (c *Client) AddWatchlist(ctx context.Context, userID string, item ListItem) error {
	return c.putListItem(ctx, userID, "watchlist", item)
}

// RemoveFavorite deletes one favorites entry. A missing entry is treated as
// success so replayed removals cannot poison the outbox.
func (c *Client) RemoveFavorite(ctx context.Context, userID string, movieID int64) error {
	return c.deleteListItem(ctx, userID, "favorites", movieID)
}

// RemoveWatchlist deletes one watchlist entry.
func (c *Client) RemoveWatchlist(ctx context.Context, userID string, movieID int64) error {
	return c.deleteListItem(ctx, userID, "watchlist", movieID)
}

func (c *Client) fetchList(ctx context.Context, userID, list string) ([]ListItem, error) {
	path := fmt.Sprintf("/v1/users/%s/%s", userID, list)

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed listResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("api: decoding %s list: %w", list, err)
	}

	return parsed.Items, nil
}

func (c *Client) putListItem(ctx context.Context, userID, list string, item ListItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("api: encoding %s entry %d: %w", list, item.Movie.ID, err)
	}

	path := fmt.Sprintf("/v1/users/%s/%s/%d", userID, list, item.Movie.ID)

	resp, err := c.Do(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

func (c *Client) deleteListItem(ctx context.Context, userID, list string, movieID int64) error {
	path := fmt.Sprintf("/v1/users/%s/%s/%d", userID, list, movieID)

	resp, err := c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}

		return err
	}
	resp.Body.Close()

	return nil
}
