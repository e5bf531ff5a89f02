// Package restore rebuilds a saved workspace in a live tmux server.
//
// Sessions are restored in parallel by an outer pool bounded by the session
// worker count. Each session task creates the session, then hands its
// windows to an inner pool bounded by the window worker count. A window task
// creates the window (the first window comes with the session), splits one
// pane per additional saved pane, applies the saved layout and reloads
// editors.
//
// Pane directories that no longer exist are recovered by cloning the pane's
// git remote into the saved path. When that is impossible the pane starts in
// the nearest existing ancestor directory.
//
// Tasks are not retried and not cancelled. The first failure is returned
// after every scheduled sibling has finished.
package restore
