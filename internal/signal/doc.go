// Package signal delivers one-way event notifications from short-lived
// producers (tmux hooks, editor autocommands, the foreground CLI) to the
// autosave daemon.
//
// A channel is identified by a path. Two transports implement the same
// [Server] and [Client] contracts:
//
//   - File: producers drop one file per event into <channel>-signals/ named
//     event-<epoch-ms>-<uuid>; the server wakes on fsnotify events or a fixed
//     poll interval, hands each payload to its handler and deletes the file.
//   - Socket: producers dial a unix socket at <channel>.sock and write one
//     newline-terminated payload per event.
//
// Both transports record the server's pid in <channel>.pid so peers can tell
// a live server from a leftover artifact. Handler errors and panics are
// logged and never stop delivery.
//
// # Basic Usage
//
//	srv, _ := signal.NewServer(signal.TransportFile, channel, signal.WithLogger(logger))
//	if err := srv.Listen(func(payload string) error { ... }); err != nil { ... }
//	defer srv.Close()
//
//	cli, _ := signal.NewClient(signal.TransportFile, channel)
//	_ = cli.EnsureServerRunning([]string{exe, "autosave"})
//	cli.EnsureConnected(ctx)
//	_ = cli.Emit("flush")
package signal
