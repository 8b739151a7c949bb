package localserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/core/service"
	"github.com/yndnr/tokdrop-go/internal/infra/buildinfo"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
	"github.com/yndnr/tokdrop-go/internal/storage"
)

// Store is the subset of the record store the socket exposes.
type Store interface {
	Stats(ctx context.Context) (*storage.RecordStats, error)
	GetToken(ctx context.Context, id string) (*domain.TokenRecord, error)
	AddPremium(ctx context.Context, user string) (bool, error)
	ListPremium(ctx context.Context) ([]string, error)
}

// Linker reissues links for existing tokens.
type Linker interface {
	LinkFor(ctx context.Context, id string) *service.Link
}

// HandlerConfig holds the handler's dependencies.
type HandlerConfig struct {
	Store  Store
	Links  Linker
	Clock  clock.Clock
	TTL    time.Duration
	Uptime func() time.Duration
}

// Handler handles local management commands.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates a new Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = domain.DefaultTTL
	}
	return &Handler{cfg: cfg}
}

// Commands lists the verbs Execute understands.
var Commands = []string{"status", "premium-add", "premium-list", "token", "link"}

func commandLabel(cmd string) string {
	for _, c := range Commands {
		if c == cmd {
			return cmd
		}
	}
	return "unknown"
}

// errUsage is reported for malformed requests.
var errUsage = errors.New("usage")

// Execute runs cmd and writes the framed reply to w. The returned error
// is only for write failures; command failures are reported in-band.
func (h *Handler) Execute(ctx context.Context, w io.Writer, cmd string, args []string) error {
	var body []string
	var err error

	switch cmd {
	case "status":
		body, err = h.handleStatus(ctx)
	case "premium-add":
		body, err = h.handlePremiumAdd(ctx, args)
	case "premium-list":
		body, err = h.handlePremiumList(ctx)
	case "token":
		body, err = h.handleToken(ctx, args)
	case "link":
		body, err = h.handleLink(ctx, args)
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		_, werr := fmt.Fprintf(w, "ERR %s\n", oneLine(err.Error()))
		return werr
	}

	var b strings.Builder
	b.WriteString("OK\n")
	for _, line := range body {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, werr := io.WriteString(w, b.String())
	return werr
}

func (h *Handler) handleStatus(ctx context.Context) ([]string, error) {
	stats, err := h.cfg.Store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	lines := []string{
		"version: " + buildinfo.String(),
		"tokens: " + strconv.Itoa(stats.Tokens),
		"open_batches: " + strconv.Itoa(stats.OpenBatches),
		"premium_users: " + strconv.Itoa(stats.Premium),
		"pending_retractions: " + strconv.Itoa(stats.PendingRetractions),
	}
	if h.cfg.Uptime != nil {
		lines = append(lines, "uptime: "+h.cfg.Uptime().Truncate(time.Second).String())
	}
	return lines, nil
}

func (h *Handler) handlePremiumAdd(ctx context.Context, args []string) ([]string, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: premium-add <user_id>", errUsage)
	}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		return nil, fmt.Errorf("invalid user id %q", args[0])
	}

	added, err := h.cfg.Store.AddPremium(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if !added {
		return []string{"already premium: " + args[0]}, nil
	}
	return []string{"added: " + args[0]}, nil
}

func (h *Handler) handlePremiumList(ctx context.Context) ([]string, error) {
	return h.cfg.Store.ListPremium(ctx)
}

func (h *Handler) handleToken(ctx context.Context, args []string) ([]string, error) {
	rec, err := h.lookup(ctx, args, "token")
	if err != nil {
		return nil, err
	}

	now := h.cfg.Clock.Now()
	state := "valid"
	if rec.IsExpired(now, h.cfg.TTL) {
		state = "expired"
	}

	lines := []string{
		"id: " + rec.ID,
		"transport: " + domain.EncodeToken(rec.ID),
		"created: " + rec.Created.UTC().Format(time.RFC3339),
		"expires: " + rec.ExpiresAt(h.cfg.TTL).UTC().Format(time.RFC3339),
		"state: " + state,
		"files: " + strconv.Itoa(len(rec.Files)),
	}
	for _, f := range rec.Files {
		lines = append(lines, "  "+f)
	}
	return lines, nil
}

func (h *Handler) handleLink(ctx context.Context, args []string) ([]string, error) {
	rec, err := h.lookup(ctx, args, "link")
	if err != nil {
		return nil, err
	}
	if h.cfg.Links == nil {
		return nil, errors.New("link publishing is not available")
	}

	link := h.cfg.Links.LinkFor(ctx, rec.ID)
	lines := []string{"long: " + link.Long}
	if link.Short != link.Long {
		lines = append(lines, "short: "+link.Short)
	}
	return lines, nil
}

// lookup accepts either a token id or its transport string.
func (h *Handler) lookup(ctx context.Context, args []string, cmd string) (*domain.TokenRecord, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: %s <token_id>", errUsage, cmd)
	}

	id := args[0]
	if decoded, ok := domain.DecodeToken(id); ok {
		id = decoded
	}

	rec, err := h.cfg.Store.GetToken(ctx, id)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return nil, fmt.Errorf("token not found: %s", id)
	}
	return rec, err
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
