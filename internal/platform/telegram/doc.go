// Package telegram is a small Telegram Bot API client.
//
// It covers the calls the bot needs: long polling for updates, sending
// text and media, deleting messages and downloading uploaded files.
// Outbound calls share one rate limiter; GetUpdates is exempt because it
// blocks on the server side.
//
// Messenger adapts a Client to the core messaging port.
package telegram
