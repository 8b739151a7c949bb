package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/core/service"
	"github.com/yndnr/tokdrop-go/internal/platform/telegram"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
)

func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message, args []string) {
	var transport string
	if len(args) > 0 {
		transport = args[0]
	}

	decision, err := b.gate.Check(ctx, requesterID(msg), transport)
	if err != nil {
		logger.L(ctx).Error("access check failed", "user_id", msg.From.ID, "error", err)
		b.reply(ctx, msg, msgTryLater)
		return
	}

	switch decision.Kind {
	case domain.GrantedUnlimited:
		b.reply(ctx, msg, msgPremiumGranted)
		if files := decision.Files(); len(files) > 0 {
			b.deliverer.Deliver(ctx, msg.Chat.ID, files)
		}
	case domain.GrantedToken:
		b.reply(ctx, msg, msgVerified)
		b.deliverer.Deliver(ctx, msg.Chat.ID, decision.Files())
	case domain.RejectedMissing:
		b.reply(ctx, msg, msgMissingToken)
	case domain.RejectedExpired:
		b.reply(ctx, msg, msgExpiredToken)
	default:
		b.reply(ctx, msg, msgInvalidToken)
	}
}

func (b *Bot) handleUpload(ctx context.Context, msg *telegram.Message) {
	att, ok := msg.Attachment()
	if !ok {
		b.reply(ctx, msg, msgSendDocument)
		return
	}

	id, err := b.storeAttachment(ctx, msg, att)
	if err != nil {
		logger.L(ctx).Error("upload failed",
			"chat_id", msg.Chat.ID, "file_unique_id", att.UniqueID, "error", err)
		b.reply(ctx, msg, msgUploadFailed)
		return
	}

	b.send(ctx, msg, fmt.Sprintf(msgFileSaved, id), "Markdown")
}

func (b *Bot) storeAttachment(ctx context.Context, msg *telegram.Message, att *telegram.Attachment) (string, error) {
	f, err := b.api.GetFile(ctx, att.FileID)
	if err != nil {
		return "", err
	}

	body, err := b.api.Download(ctx, f.FilePath)
	if err != nil {
		return "", err
	}
	defer body.Close()

	return b.batches.Upload(ctx, service.ConversationKey(msg.Chat.ID), service.FileUpload{
		UniqueID: att.UniqueID,
		Name:     att.Name,
		Kind:     att.Kind,
		Body:     body,
	})
}

func (b *Bot) handleFinish(ctx context.Context, msg *telegram.Message) {
	link, err := b.publisher.Publish(ctx, service.ConversationKey(msg.Chat.ID))
	switch {
	case errors.Is(err, domain.ErrNoOpenBatch):
		b.reply(ctx, msg, msgNoTokenProgress)
	case err != nil:
		logger.L(ctx).Error("publish failed", "chat_id", msg.Chat.ID, "error", err)
		b.reply(ctx, msg, msgTryLater)
	default:
		b.reply(ctx, msg, fmt.Sprintf(msgProtectedLink, link.Short))
	}
}

func (b *Bot) handleAddPremium(ctx context.Context, msg *telegram.Message, args []string) {
	if len(args) == 0 {
		b.reply(ctx, msg, msgAddPremiumUsage)
		return
	}

	user := args[0]
	added, err := b.premium.AddPremium(ctx, user)
	if err != nil {
		logger.L(ctx).Error("add premium failed", "user", user, "error", err)
		b.reply(ctx, msg, msgTryLater)
		return
	}

	logger.L(ctx).Info("premium granted", "user", user, "new", added, "by", msg.From.ID)
	b.reply(ctx, msg, fmt.Sprintf(msgPremiumAdded, user))
}
