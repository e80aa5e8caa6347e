package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"camera-angle-studio/internal/camera"
	"camera-angle-studio/internal/prompt"
	"camera-angle-studio/internal/settings"
	"camera-angle-studio/internal/studio"
	"camera-angle-studio/internal/telegram"
)

const rigCallbackPrefix = "cam"

const (
	rotateStep  = 15.0
	forwardStep = 1.0
	tiltStep    = 0.25
)

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, rigCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "These controls belong to someone else.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	sess := h.session(chatID)

	h.ui.Update(chatID, func(st *chatUI) { st.MessageID = msgID })

	switch action {
	case "rot":
		sess.UpdateCameraFunc(func(cur camera.State) camera.Patch {
			return camera.Patch{Rotate: camera.Float(cur.Rotate + step(args, rotateStep))}
		})
	case "fwd":
		sess.UpdateCameraFunc(func(cur camera.State) camera.Patch {
			return camera.Patch{Forward: camera.Float(cur.Forward + step(args, forwardStep))}
		})
	case "tilt":
		sess.UpdateCameraFunc(func(cur camera.State) camera.Patch {
			return camera.Patch{Tilt: camera.Float(cur.Tilt + step(args, tiltStep))}
		})
	case "wide":
		sess.UpdateCameraFunc(func(cur camera.State) camera.Patch {
			return camera.Patch{WideAngle: camera.Bool(!cur.WideAngle)}
		})
	case "float":
		sess.UpdateCameraFunc(func(cur camera.State) camera.Patch {
			return camera.Patch{Floating: camera.Bool(!cur.Floating)}
		})
	case "undo":
		sess.Undo()
	case "redo":
		sess.Redo()
	case "reset":
		sess.ResetCamera()
	case "menu":
		if len(args) >= 1 {
			h.ui.Update(chatID, func(st *chatUI) { st.Menu = args[0] })
		}
	case "preset":
		if len(args) >= 1 {
			sess.ApplyPreset(args[0])
		}
		h.ui.Update(chatID, func(st *chatUI) { st.Menu = menuMain })
	case "q":
		if len(args) >= 1 {
			quality := settings.Quality(args[0])
			sess.UpdateSettings(settings.Patch{Quality: &quality})
		}
	case "size":
		if len(args) >= 1 {
			sess.UpdateSettings(settings.Patch{ImageSize: &args[0]})
		}
	case "seed":
		seed := settings.RandomSeed()
		sess.UpdateSettings(settings.Patch{Seed: &seed})
	case "ctx":
		h.ui.Update(chatID, func(st *chatUI) { st.AwaitingContext = true })
	case "hist":
		if len(args) >= 1 {
			if _, err := sess.SelectResult(args[0]); err != nil {
				_ = h.tg.AnswerCallback(q.ID, "That result is no longer in history.", true)
				return h.renderRig(chatID, ownerID, msgID, true)
			}
			h.ui.Update(chatID, func(st *chatUI) { st.Menu = menuMain })
		}
	case "clearhist":
		sess.ClearHistory()
	}

	switch action {
	case "prompt":
		_ = h.tg.AnswerCallback(q.ID, "Prompt sent", false)
		return h.tg.SendText(chatID, sess.Prompt())
	case "gen":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		if err := h.renderRig(chatID, ownerID, msgID, true); err != nil {
			return err
		}
		return h.generate(ctx, chatID, ownerID)
	case "ctx":
		_ = h.tg.AnswerCallback(q.ID, "Send the creative context as a message (/cancel to abort).", false)
	case "hist":
		_ = h.tg.AnswerCallback(q.ID, "Camera and settings restored", false)
	case "close":
		_ = h.tg.AnswerCallback(q.ID, "Closed", false)
		return h.tg.EditText(chatID, msgID, rigText(sess, h.ui.Get(chatID)))
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	}

	return h.renderRig(chatID, ownerID, msgID, true)
}

func (h *Handler) renderRig(chatID int64, userID int64, messageID int, edit bool) error {
	st := h.ui.Get(chatID)
	if messageID == 0 {
		messageID = st.MessageID
	}

	sess := h.session(chatID)
	text := rigText(sess, st)
	kb := rigKeyboard(userID, sess, st)

	if edit && messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.ui.Update(chatID, func(st *chatUI) { st.MessageID = msgID })
	return nil
}

func rigText(sess *studio.Session, st chatUI) string {
	cam := sess.Camera()
	cfg := sess.Settings()

	var b strings.Builder
	b.WriteString("🎥 Camera rig\n\n")
	b.WriteString(fmt.Sprintf("Orbit: %+.0f°   Dolly: %.1f/10   Tilt: %+.2f\n", cam.Rotate, cam.Forward, cam.Tilt))
	lens := "85mm tele"
	if cam.WideAngle {
		lens = "24mm wide"
	}
	b.WriteString(fmt.Sprintf("Lens: %s   Floating: %s\n", lens, onOff(cam.Floating)))

	quality := string(cfg.Quality)
	if cfg.IsPro() {
		quality += " " + cfg.ImageSize
	}
	b.WriteString(fmt.Sprintf("Quality: %s   Seed: %d\n", quality, cfg.Seed))
	if cfg.CreativeContext != "" {
		b.WriteString("Context: " + truncateLine(cfg.CreativeContext, 80) + "\n")
	}
	if cfg.Location != nil {
		b.WriteString(fmt.Sprintf("Location: %.4f, %.4f\n", cfg.Location.Latitude, cfg.Location.Longitude))
	}

	if _, ok := sess.Source(); ok {
		b.WriteString("Photo: saved ✅\n")
	} else {
		b.WriteString("Photo: (none)\n")
	}

	if prompt.IsNeutral(sess.Prompt()) {
		b.WriteString("\nNo camera movement yet.\n")
	} else {
		b.WriteString("\nMove: " + prompt.Describe(cam) + "\n")
	}

	switch {
	case st.AwaitingContext:
		b.WriteString("\n📝 Send the creative context now (/cancel to abort).\n")
	case sess.Busy():
		b.WriteString("\n⏳ Generating…\n")
	}

	if st.Menu == menuHistory {
		items := sess.History()
		if len(items) == 0 {
			b.WriteString("\nHistory is empty.\n")
		} else {
			b.WriteString("\nHistory (newest first):\n")
			for i, r := range items {
				if i >= historyButtons {
					break
				}
				b.WriteString(fmt.Sprintf("%d) %s  %s\n", i+1, r.Timestamp.Format("15:04:05"), prompt.Describe(r.Camera)))
			}
		}
	}

	return strings.TrimSpace(b.String())
}

const historyButtons = 8

func rigKeyboard(ownerID int64, sess *studio.Session, st chatUI) telegram.Keyboard {
	switch st.Menu {
	case menuPresets:
		return presetsKeyboard(ownerID)
	case menuSettings:
		return settingsKeyboard(ownerID, sess)
	case menuHistory:
		return historyKeyboard(ownerID, sess)
	default:
		return mainKeyboard(ownerID, sess)
	}
}

func mainKeyboard(ownerID int64, sess *studio.Session) telegram.Keyboard {
	cam := sess.Camera()

	wide := "Lens: tele"
	if cam.WideAngle {
		wide = "Lens: wide"
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("⟲ Orbit", cb(ownerID, "rot", "-")),
			tgbotapi.NewInlineKeyboardButtonData("Orbit ⟳", cb(ownerID, "rot", "+")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Dolly out", cb(ownerID, "fwd", "-")),
			tgbotapi.NewInlineKeyboardButtonData("Dolly in", cb(ownerID, "fwd", "+")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Tilt down", cb(ownerID, "tilt", "-")),
			tgbotapi.NewInlineKeyboardButtonData("Tilt up", cb(ownerID, "tilt", "+")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData(wide, cb(ownerID, "wide")),
			tgbotapi.NewInlineKeyboardButtonData("Float: "+onOff(cam.Floating), cb(ownerID, "float")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("↶ Undo", cb(ownerID, "undo")),
			tgbotapi.NewInlineKeyboardButtonData("↷ Redo", cb(ownerID, "redo")),
			tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Presets", cb(ownerID, "menu", menuPresets)),
			tgbotapi.NewInlineKeyboardButtonData("Settings", cb(ownerID, "menu", menuSettings)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("History (%d)", len(sess.History())), cb(ownerID, "menu", menuHistory)),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("📄 Prompt", cb(ownerID, "prompt")),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb(ownerID, "gen")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Close", cb(ownerID, "close")),
		},
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func presetsKeyboard(ownerID int64) telegram.Keyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, p := range camera.Presets() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(p.Name, cb(ownerID, "preset", p.Key)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, backRow(ownerID))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func settingsKeyboard(ownerID int64, sess *studio.Session) telegram.Keyboard {
	cfg := sess.Settings()

	flash, pro := "Flash", "Pro"
	if cfg.IsPro() {
		pro = "✅ " + pro
	} else {
		flash = "✅ " + flash
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData(flash, cb(ownerID, "q", string(settings.QualityFlash))),
			tgbotapi.NewInlineKeyboardButtonData(pro, cb(ownerID, "q", string(settings.QualityPro))),
		},
	}

	if cfg.IsPro() {
		var sizeRow []tgbotapi.InlineKeyboardButton
		for _, size := range []string{settings.ImageSize1K, settings.ImageSize2K, settings.ImageSize4K} {
			label := size
			if cfg.ImageSize == size {
				label = "✅ " + label
			}
			sizeRow = append(sizeRow, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "size", size)))
		}
		rows = append(rows, sizeRow)
	}

	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🎲 Shuffle seed", cb(ownerID, "seed")),
			tgbotapi.NewInlineKeyboardButtonData("📝 Context", cb(ownerID, "ctx")),
		},
		backRow(ownerID),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func historyKeyboard(ownerID int64, sess *studio.Session) telegram.Keyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, r := range sess.History() {
		if i >= historyButtons {
			break
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i+1), cb(ownerID, "hist", r.ID)))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🗑 Clear", cb(ownerID, "clearhist")),
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", menuMain)),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func backRow(ownerID int64) []tgbotapi.InlineKeyboardButton {
	return []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", menuMain)),
	}
}

// cb encodes callback data; Telegram allows at most 64 bytes, which a uuid fits.
func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", rigCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func step(args []string, size float64) float64 {
	if len(args) >= 1 && args[0] == "-" {
		return -size
	}
	return size
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
