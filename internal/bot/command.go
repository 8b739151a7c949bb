package bot

import (
	"strings"

	"github.com/yndnr/tokdrop-go/internal/platform/telegram"
)

// parseCommand extracts "/name@bot arg1 arg2" from the message text, or
// from the caption of a file message. cmd is empty for non-commands.
func parseCommand(msg *telegram.Message) (cmd string, args []string) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}

	cmd = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), fields[1:]
}
