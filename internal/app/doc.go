// Package app bootstraps toolgate: it configures logging, loads the
// configuration and builds the explicit process context that every command
// runs against.
//
// # Process context
//
// Services holds the single TokenStore, the OAuth Provider on top of it and
// the secret watcher, plus, when serving, the runtime invoker, router,
// dispatcher, optional JWT authorizer and the gateway HTTP server. Nothing in
// toolgate is a package-level singleton; commands receive the context from
// NewApplication and release it with Close, which stops the store cleanup
// loop and the secret watcher.
//
// # Modes
//
//   - ModeServe validates the oauth and gateway sections and builds the
//     whole gateway. Run listens, notifies systemd and serves until a signal.
//   - ModeClient validates the oauth and client sections and builds only the
//     token side. OpenSession then connects to a gateway as a client.
package app
