package session

import (
	"strings"

	"github.com/bz888/cognix/internal/completion"
)

const premiumNotice = "This model requires a Premium subscription.\n\n" +
	"To access GPT-4, Claude, and other advanced models, please upgrade to COGNIX Premium.\n\n" +
	"Currently, you can use COGNIX AI for free with unlimited conversations!"

const captureUnsupported = "Speech recognition is not supported on this system. " +
	"Check that a microphone is connected and a speech API key is configured."

// explain turns a completion failure into the text shown in the transcript.
// Every kind names the problem and what the user can do about it.
func explain(err error) string {
	detail := completion.DetailOf(err)

	switch completion.KindOf(err) {
	case completion.AuthInvalid:
		return "Authentication Error: Your API key is invalid or expired.\n\n" +
			"To fix this:\n" +
			"1. Get a new API key from https://aistudio.google.com/app/apikey\n" +
			"2. Update GEMINI_API_KEY in your .env file or environment\n" +
			"3. Restart COGNIX"
	case completion.BadRequest:
		if detail == "" {
			detail = "Invalid request format"
		}
		return "Bad Request: " + detail + "\n\n" +
			"Try rephrasing your message or choose another model with /models."
	case completion.RateLimited:
		return "Rate Limit Exceeded!\n\n" +
			"You've sent too many requests in a short time.\n\n" +
			"What to do:\n" +
			"- Wait 60 seconds before trying again\n" +
			"- Gemini has a free tier limit of 15 requests per minute\n" +
			"- Consider upgrading your Gemini API quota at https://aistudio.google.com/\n\n" +
			"Please wait a moment and try again."
	case completion.QuotaExhausted:
		return "Payment Required: Your API account has insufficient credits.\n\n" +
			"Add credits to your account, or switch to the free COGNIX AI model with /models."
	case completion.Forbidden:
		return "Access Denied: Your API key doesn't have permission for this operation.\n\n" +
			"Check your API key settings at https://aistudio.google.com/app/apikey"
	case completion.Unavailable:
		return "Service Unavailable: The AI service is temporarily down.\n\n" +
			"Please try again in a few moments."
	case completion.Transport:
		return "Connection Error: The AI service could not be reached.\n\n" +
			"Check your internet connection and try again."
	}

	if strings.TrimSpace(detail) == "" {
		detail = "Unknown error occurred"
	}
	return "Sorry, I encountered an error. " + detail + "\n\n" +
		"Please try again. If it keeps happening, check the logs with /debug."
}
