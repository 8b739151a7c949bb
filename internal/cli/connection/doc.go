// Package connection provides the transports tokdrop-cli uses to reach a
// running bot: the local management socket and the ops HTTP server.
package connection
