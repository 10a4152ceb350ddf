// Package cli provides the interactive gophsocial command-line client.
//
// It wires configuration, the HTTP API client and a REPL. A successful
// login is remembered in the session directory so the next run starts
// logged in.
//
// Commands:
//   - register, login, logout, me
//   - follow <user-id>
//   - post [image-path]
//   - like <post-id>, comment <post-id> [text]
//   - feed, delete-me
//   - help, exit
package cli
