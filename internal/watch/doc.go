// Package watch rebuilds and restarts the backend server when its sources change.
//
// A Source (normally FSWatcher) reports debounced change sets. The Supervisor
// turns them into builds through a Builder and replaces the server child
// process after each successful build.
package watch
