// Package services talks to the streaming service.
//
// [Library] is the contract the sync pipeline depends on; [SpotifyService] implements it on top of
// github.com/zmb3/spotify/v2. The service is built from the credentials in the config file and a
// persisted OAuth token; the token source refreshes an expired access token using the refresh
// token, and the refreshed token can be read back with [SpotifyService.Token] and saved.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrMissingCredentials] : client id or secret absent from config
//   - [shared.ErrNotAuthenticated] : no token, run `rotation auth`
//   - [shared.ErrAuthFailed] : [Login] exhausted its attempts
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrPlaylistNotFound] : playlist id unknown or inaccessible
package services
