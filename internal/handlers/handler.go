package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"camera-angle-studio/internal/camera"
	"camera-angle-studio/internal/mediagroup"
	"camera-angle-studio/internal/settings"
	"camera-angle-studio/internal/studio"
	"camera-angle-studio/internal/telegram"
	"camera-angle-studio/internal/upload"
)

// Messenger is the part of the Telegram client the handlers use.
type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendMessage(chatID int64, text string) (int, error)
	SendTextWithKeyboard(chatID int64, text string, kb telegram.Keyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.Keyboard) error
	EditText(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendPhotoDataURL(chatID int64, dataURL, caption string, kb *telegram.Keyboard) error
	DownloadImage(ctx context.Context, fileID string) (upload.Image, error)
}

type Options struct {
	Telegram Messenger
	Studios  *studio.Registry
	Logger   *slog.Logger
}

type Handler struct {
	tg         Messenger
	studios    *studio.Registry
	ui         *uiStore
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var ttl time.Duration
	if opts.Studios != nil {
		ttl = opts.Studios.TTL()
	}

	return &Handler{
		tg:      opts.Telegram,
		studios: opts.Studios,
		ui:      newUIStore(ttl),
		logger:  logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) session(chatID int64) *studio.Session {
	return h.studios.GetOrCreate("tg:" + strconv.FormatInt(chatID, 10))
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch {
	case msg.IsCommand():
		return h.handleCommand(ctx, chatID, userID, msg)
	case len(msg.Photo) > 0:
		return h.handlePhoto(ctx, chatID, userID, msg)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		return h.loadSource(ctx, chatID, userID, msg.Document.FileID, msg.Caption, 0)
	case msg.Location != nil:
		return h.setLocation(chatID, userID, msg.Location.Latitude, msg.Location.Longitude)
	case msg.Text != "":
		return h.handleText(chatID, userID, msg.Text)
	}
	return nil
}

// HandleMediaGroup takes the first photo of an album as the source image.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if err := h.loadSource(ctx, group.ChatID, group.UserID, group.Source(), group.Caption, group.Extra()); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	sess := h.session(chatID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "rig":
		return h.renderRig(chatID, userID, 0, false)
	case "prompt":
		return h.tg.SendText(chatID, sess.Prompt())
	case "generate":
		return h.generate(ctx, chatID, userID)
	case "history":
		h.ui.Update(chatID, func(st *chatUI) { st.Menu = menuHistory })
		return h.renderRig(chatID, userID, 0, false)
	case "clear":
		sess.ClearHistory()
		return h.tg.SendText(chatID, "🗑 History cleared.")
	case "reset":
		sess.ResetCamera()
		return h.renderRig(chatID, userID, 0, false)
	case "undo":
		if _, ok := sess.Undo(); !ok {
			return h.tg.SendText(chatID, "Nothing to undo.")
		}
		return h.renderRig(chatID, userID, 0, false)
	case "redo":
		if _, ok := sess.Redo(); !ok {
			return h.tg.SendText(chatID, "Nothing to redo.")
		}
		return h.renderRig(chatID, userID, 0, false)
	case "preset":
		if _, ok := sess.ApplyPreset(args); !ok {
			return h.tg.SendText(chatID, "Unknown preset. Available: "+presetKeys())
		}
		return h.renderRig(chatID, userID, 0, false)
	case "seed":
		return h.setSeed(chatID, userID, args)
	case "context":
		sess.UpdateSettings(settings.Patch{CreativeContext: &args})
		if args == "" {
			return h.tg.SendText(chatID, "Creative context cleared.")
		}
		return h.tg.SendText(chatID, "🎨 Creative context set.")
	case "quality":
		q := settings.Quality(strings.ToLower(args))
		if q != settings.QualityFlash && q != settings.QualityPro {
			return h.tg.SendText(chatID, "Usage: /quality flash|pro")
		}
		sess.UpdateSettings(settings.Patch{Quality: &q})
		return h.renderRig(chatID, userID, 0, false)
	case "size":
		if !sess.Settings().IsPro() {
			return h.tg.SendText(chatID, "Image size is only available on the pro tier (/quality pro).")
		}
		size := strings.ToUpper(args)
		sess.UpdateSettings(settings.Patch{ImageSize: &size})
		return h.renderRig(chatID, userID, 0, false)
	case "location":
		return h.parseLocation(chatID, userID, args)
	case "cancel":
		h.ui.Update(chatID, func(st *chatUI) { st.AwaitingContext = false })
		return h.tg.SendText(chatID, "Cancelled.")
	default:
		return h.tg.SendText(chatID, "Unknown command. Use /help.")
	}
}

func (h *Handler) handleText(chatID int64, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	st := h.ui.Get(chatID)
	if !st.AwaitingContext {
		return h.tg.SendText(chatID, "Send a photo to start, or /rig to open the camera controls.")
	}

	h.ui.Update(chatID, func(st *chatUI) { st.AwaitingContext = false })
	h.session(chatID).UpdateSettings(settings.Patch{CreativeContext: &text})
	return h.renderRig(chatID, userID, 0, false)
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	return h.loadSource(ctx, chatID, userID, fileID, msg.Caption, 0)
}

func (h *Handler) loadSource(ctx context.Context, chatID int64, userID int64, fileID, caption string, ignored int) error {
	if fileID == "" {
		return nil
	}
	h.tg.SendTyping(chatID)

	img, err := h.tg.DownloadImage(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not load that image. Send a JPEG, PNG or WebP photo.")
	}

	sess := h.session(chatID)
	sess.SetSource(img)
	applyCaption(sess, caption)
	if ignored > 0 {
		_ = h.tg.SendText(chatID, fmt.Sprintf("📷 Using the first photo of the album (%d more ignored).", ignored))
	}
	h.ui.Update(chatID, func(st *chatUI) { st.Menu = menuMain })
	return h.renderRig(chatID, userID, 0, false)
}

func (h *Handler) setSeed(chatID int64, userID int64, arg string) error {
	var seed int64
	if arg == "" || strings.EqualFold(arg, "random") {
		seed = settings.RandomSeed()
	} else {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return h.tg.SendText(chatID, "Usage: /seed <number>|random")
		}
		seed = v
	}
	h.session(chatID).UpdateSettings(settings.Patch{Seed: &seed})
	return h.renderRig(chatID, userID, 0, false)
}

func (h *Handler) parseLocation(chatID int64, userID int64, args string) error {
	if strings.EqualFold(args, "off") || args == "" {
		h.session(chatID).UpdateSettings(settings.Patch{ClearLocation: true})
		return h.tg.SendText(chatID, "📍 Location cleared.")
	}
	lat, lng, ok := strings.Cut(args, ",")
	if !ok {
		return h.tg.SendText(chatID, "Usage: /location <lat>,<lng> or /location off")
	}
	latV, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	lngV, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err1 != nil || err2 != nil {
		return h.tg.SendText(chatID, "Usage: /location <lat>,<lng> or /location off")
	}
	return h.setLocation(chatID, userID, latV, lngV)
}

func (h *Handler) setLocation(chatID int64, userID int64, lat, lng float64) error {
	s := h.session(chatID).UpdateSettings(settings.Patch{Location: &settings.LatLng{Latitude: lat, Longitude: lng}})
	if s.Location == nil {
		return h.tg.SendText(chatID, "That location is out of range.")
	}
	_ = h.tg.SendText(chatID, "📍 Location saved for maps grounding on the flash tier.")
	return h.renderRig(chatID, userID, 0, false)
}

// applyCaption treats a caption naming a preset as that preset and any other
// caption as the creative context.
func applyCaption(sess *studio.Session, caption string) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return
	}
	if _, ok := sess.ApplyPreset(caption); ok {
		return
	}
	sess.UpdateSettings(settings.Patch{CreativeContext: &caption})
}

func presetKeys() string {
	keys := make([]string, 0, len(camera.Presets()))
	for _, p := range camera.Presets() {
		keys = append(keys, p.Key)
	}
	return strings.Join(keys, ", ")
}

const helpText = "🎥 Camera Angle Studio\n\n" +
	"Send a photo, then move the virtual camera and generate the same scene from the new angle. " +
	"A caption naming a preset applies it; any other caption becomes the creative context.\n\n" +
	"/rig - camera controls\n" +
	"/prompt - show the compiled instruction\n" +
	"/generate - render the current angle\n" +
	"/preset <name> - jump to a preset\n" +
	"/undo, /redo, /reset - camera history\n" +
	"/quality flash|pro, /size 1K|2K|4K\n" +
	"/seed <n>|random, /context <text>\n" +
	"/location <lat>,<lng> | off\n" +
	"/history, /clear - past results"
