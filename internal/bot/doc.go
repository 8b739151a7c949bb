// Package bot is the Telegram surface of TokDrop.
//
// Bot long-polls for updates and dispatches them one at a time in
// arrival order. Commands:
//
//	/start [token]         redeem a link (premium users need none)
//	/upload, file message  admin: add the file to the open batch
//	/finish                admin: close the batch and publish its link
//	/buy                   purchase instructions
//	/addpremium <user_id>  admin: grant token-free access
//
// Admin commands from anyone else are ignored without a reply.
package bot
