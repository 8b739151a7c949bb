// Package localserver provides the local management socket.
//
// It listens on a Unix domain socket and answers one command per
// connection. Access is controlled by file system permissions on the
// socket; there is no further authentication.
//
// Protocol: the client writes a single line
//
//	<command> [argument]\n
//
// and the server replies with "OK" or "ERR <message>" on the first line,
// followed by zero or more body lines, then closes the connection.
//
// Commands:
//
//   - status            record counts and build version
//   - premium-add <id>  grant premium to a Telegram user id
//   - premium-list      list premium user ids
//   - token <id>        show a token record (id or transport string)
//   - link <id>         reissue the deep link for a token
package localserver
