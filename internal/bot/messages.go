package bot

// Replies sent to users.
const (
	msgPremiumGranted  = "✅ Premium access granted."
	msgMissingToken    = "❌ Invalid or missing token."
	msgInvalidToken    = "❌ Invalid token."
	msgExpiredToken    = "❌ Token expired."
	msgVerified        = "🔓 Verified! Sending your files..."
	msgSendDocument    = "📎 Please send a document."
	msgFileSaved       = "✅ File saved under token: `%s`"
	msgUploadFailed    = "❌ Failed to save file."
	msgNoTokenProgress = "❌ No token in progress."
	msgProtectedLink   = "🔗 Protected Link:\n%s"
	msgAddPremiumUsage = "Usage: /addpremium <user_id>"
	msgPremiumAdded    = "✅ Added %s as premium."
	msgTryLater        = "⚠️ Something went wrong, please try again later."
)
