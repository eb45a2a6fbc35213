// Package manager owns a pool of links forming one logical cloud
// session (spec §4.D): link placement for new subscriptions, idle-link
// closing, and configuration-driven reconnects. It routes subscribe,
// unsubscribe and publish calls to a chosen link but never touches the
// wire itself; all transport concerns live in internal/link.
package manager
