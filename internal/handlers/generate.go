package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"camera-angle-studio/internal/gemini"
	"camera-angle-studio/internal/history"
	"camera-angle-studio/internal/prompt"
	"camera-angle-studio/internal/studio"
)

func (h *Handler) generate(ctx context.Context, chatID int64, userID int64) error {
	sess := h.session(chatID)
	if _, ok := sess.Source(); !ok {
		return h.tg.SendText(chatID, "📷 Send a photo first.")
	}

	h.tg.SendTyping(chatID)
	statusID, err := h.tg.SendMessage(chatID, "🎨 Rendering the new angle…")
	if err != nil {
		h.logger.Warn("status message failed", "err", err)
	}

	onWait := func(seconds int) {
		if statusID == 0 {
			return
		}
		_ = h.tg.EditText(chatID, statusID, fmt.Sprintf("⏳ The model is busy, retrying in %ds…", seconds))
	}

	res, err := sess.Generate(ctx, onWait)
	if err != nil {
		if statusID != 0 {
			_ = h.tg.EditText(chatID, statusID, "❌ Generation failed.")
		}
		return h.tg.SendText(chatID, errorText(err))
	}

	if statusID != 0 {
		_ = h.tg.EditText(chatID, statusID, "✅ Done.")
	}
	return h.sendResult(chatID, userID, sess, res)
}

func (h *Handler) sendResult(chatID int64, userID int64, sess *studio.Session, res history.Result) error {
	caption := resultCaption(res)

	if res.Degraded() {
		return h.tg.SendText(chatID, "ℹ️ Analysis only, no image was returned.\n\n"+caption)
	}

	kb := mainKeyboard(userID, sess)
	if err := h.tg.SendPhotoDataURL(chatID, res.ImageURL, caption, &kb); err != nil {
		h.logger.Error("send result photo failed", "err", err)
		return h.tg.SendText(chatID, "❌ The image was generated but could not be sent.")
	}
	return nil
}

func resultCaption(res history.Result) string {
	var b strings.Builder
	if prompt.IsNeutral(res.Prompt) {
		b.WriteString("Same angle")
	} else {
		b.WriteString(prompt.Describe(res.Camera))
	}
	b.WriteString(fmt.Sprintf(" · %s · seed %d", res.Settings.Quality, res.Settings.Seed))

	if res.ModelResponse != "" {
		b.WriteString("\n\n" + res.ModelResponse)
	}
	if len(res.GroundingChunks) > 0 {
		b.WriteString("\n\nSources:")
		for _, c := range res.GroundingChunks {
			src := c.Web
			if src == nil {
				src = c.Maps
			}
			title := src.Title
			if title == "" {
				title = src.URI
			}
			b.WriteString("\n• " + title + " " + src.URI)
		}
	}
	return b.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, studio.ErrGenerationInFlight):
		return "⏳ A generation is already running, wait for it to finish."
	case errors.Is(err, studio.ErrNoSourceImage):
		return "📷 Send a photo first."
	}

	ge := gemini.Classify(err)
	switch ge.Kind {
	case gemini.KindQuota:
		return "⏳ The model is still rate limited after several retries. Try again in a minute."
	case gemini.KindAuth:
		return "🔑 The API key was rejected. Ask the bot owner to select a valid key."
	case gemini.KindSafety:
		return "🚫 The request was blocked by safety filters. Try a different photo or angle."
	default:
		return "❌ " + ge.Message
	}
}
