// Spotify implementation of [Library]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const playlistPageSize = 100

// Scopes requested by `rotation auth`.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
}

// SpotifyService implements [Library] for the Spotify Web API.
type SpotifyService struct {
	auth    *spotifyauth.Authenticator
	client  *spotify.Client
	baseURL string
	logger  *log.Logger
}

// NewSpotifyService creates a service from the credentials section of the config.
//
// The service is not usable until [SpotifyService.Authenticate] succeeds.
func NewSpotifyService(cfg shared.SpotifyConfig, logger *log.Logger) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(Scopes...),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	return &SpotifyService{auth: auth, logger: shared.WithLogger(logger, "service", "spotify")}, nil
}

// WithBaseURL points API requests at another host. Must end with a slash.
func (s *SpotifyService) WithBaseURL(url string) *SpotifyService {
	s.baseURL = url
	return s
}

// AuthURL returns the authorization page URL for state.
func (s *SpotifyService) AuthURL(state string) string {
	return s.auth.AuthURL(state)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Authenticate builds the API client over token. Expired tokens are refreshed on first use.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: no saved token, run `rotation auth`", shared.ErrNotAuthenticated)
	}
	s.client = s.newClient(s.auth.Client(ctx, token))
	return nil
}

func (s *SpotifyService) newClient(hc *http.Client) *spotify.Client {
	if s.baseURL != "" {
		return spotify.New(hc, spotify.WithBaseURL(s.baseURL))
	}
	return spotify.New(hc)
}

// Token returns the current, possibly refreshed, token.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.client == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.client.Token()
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// CurrentUser returns the display name, or the user id when no display name is set.
func (s *SpotifyService) CurrentUser(ctx context.Context) (string, error) {
	client, err := s.api()
	if err != nil {
		return "", err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return "", apiError("current user", err)
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.ID, nil
}

// PlaylistTracks pages through playlist items with limit/offset.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	for offset := 0; ; offset += playlistPageSize {
		page, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(playlistPageSize), spotify.Offset(offset))
		if err != nil {
			var apiErr spotify.Error
			if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusForbidden) {
				return nil, fmt.Errorf("%w: %s: %v", shared.ErrPlaylistNotFound, playlistID, err)
			}
			return nil, apiError("playlist items", err)
		}

		for _, item := range page.Items {
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			tracks = append(tracks, trackFromFull(item.Track.Track))
		}

		s.logger.Debug("fetched playlist page", "playlist", playlistID, "offset", offset, "items", len(page.Items))
		if len(page.Items) < playlistPageSize {
			break
		}
	}

	return tracks, nil
}

// RecentlyPlayed returns plays before the cursor.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, before int64, limit int) ([]models.PlayEvent, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	items, err := client.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{
		Limit:         spotify.Numeric(limit),
		BeforeEpochMs: before,
	})
	if err != nil {
		return nil, apiError("recently played", err)
	}

	plays := make([]models.PlayEvent, 0, len(items))
	for _, item := range items {
		if item.Track.ID == "" {
			continue
		}
		plays = append(plays, playFromRecent(item))
	}
	return plays, nil
}

// ReplacePlaylist sets the playlist contents.
func (s *SpotifyService) ReplacePlaylist(ctx context.Context, playlistID string, ids []string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if len(ids) > MaxBatch {
		return fmt.Errorf("%w: %d ids exceed the batch limit of %d", shared.ErrInvalidArgument, len(ids), MaxBatch)
	}

	if err := client.ReplacePlaylistTracks(ctx, spotify.ID(playlistID), toIDs(ids)...); err != nil {
		return apiError("replace playlist", err)
	}
	return nil
}

// AddToPlaylist appends to the playlist.
func (s *SpotifyService) AddToPlaylist(ctx context.Context, playlistID string, ids []string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxBatch {
		return fmt.Errorf("%w: %d ids exceed the batch limit of %d", shared.ErrInvalidArgument, len(ids), MaxBatch)
	}

	if _, err := client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), toIDs(ids)...); err != nil {
		return apiError("add to playlist", err)
	}
	return nil
}

func apiError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, op, err)
}

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}

func firstArtist(artists []spotify.SimpleArtist) (name, id string) {
	if len(artists) == 0 {
		return "", ""
	}
	return artists[0].Name, string(artists[0].ID)
}

func trackFromFull(t *spotify.FullTrack) models.Track {
	artist, artistID := firstArtist(t.Artists)
	return models.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Artist:     artist,
		ArtistID:   artistID,
		Album:      t.Album.Name,
		AlbumID:    string(t.Album.ID),
		DurationMS: int(t.Duration),
		Popularity: int(t.Popularity),
	}
}

func playFromRecent(item spotify.RecentlyPlayedItem) models.PlayEvent {
	artist, _ := firstArtist(item.Track.Artists)
	return models.PlayEvent{
		TrackID:    string(item.Track.ID),
		TrackName:  item.Track.Name,
		ArtistName: artist,
		AlbumName:  item.Track.Album.Name,
		PlayedAt:   item.PlayedAt.UnixMilli(),
		DurationMS: int(item.Track.Duration),
	}
}
