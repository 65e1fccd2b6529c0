// Package server runs the loopback HTTP listener that completes the OAuth authorization code flow
// for `rotation auth`.
//
// [StartCallbackServer] binds the address from the server config section, [OAuthHandler] validates
// the state token and exchanges the code through an [Exchanger], and [CallbackServer.Wait] returns
// the token and shuts the listener down. Only one callback is processed.
//
// [BasicRouter] wraps [http.ServeMux] with method filtering and [Middleware]; the first middleware
// added is the outermost.
package server
