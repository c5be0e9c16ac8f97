// Command curator is the CLI for the curator daemon: it runs the daemon in
// the foreground and manages the queue, classification, and configuration
// over the daemon's unix socket (falling back to direct database access for
// read-style queue commands when no daemon is running).
package main
