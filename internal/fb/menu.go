package fb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KirillYabl/TgPizzaBot/internal/bot"
	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
	"github.com/KirillYabl/TgPizzaBot/internal/store"
)

// categoryPrefix marks a carousel button that switches the menu category.
// The webhook handles these itself, the state machine never sees them.
const categoryPrefix = "category:"

// Menu builds and caches the carousel menu. Cards are rendered once per
// catalog change and served from the store, so webhook turnaround does not
// depend on the commerce platform.
type Menu struct {
	store    store.Store
	commerce bot.Commerce
	client   *Client
	cfg      config.MenuConfig
	mainID   string
}

// NewMenu constructs the carousel cache.
func NewMenu(st store.Store, commerce bot.Commerce, client *Client, cfg config.MenuConfig, mainCategoryID string) *Menu {
	return &Menu{store: st, commerce: commerce, client: client, cfg: cfg, mainID: mainCategoryID}
}

// Refresh rebuilds every category's cached cards. Called from the commerce
// integration webhook and at startup.
func (m *Menu) Refresh(ctx context.Context) error {
	categories, err := m.commerce.Categories(ctx)
	if err != nil {
		return err
	}

	images, err := m.buildImageIndex(ctx)
	if err != nil {
		return err
	}

	if err := m.store.DropMenus(ctx); err != nil {
		return err
	}
	for _, category := range categories {
		elements, err := m.buildElements(ctx, category.ID, categories, images)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(elements)
		if err != nil {
			return fmt.Errorf("marshal menu cards: %w", err)
		}
		if err := m.store.SetMenu(ctx, category.ID, payload); err != nil {
			return err
		}
	}

	logger.Info(ctx, "fb", "menu.refreshed", slog.Int("categories", len(categories)))
	return nil
}

// Send delivers the cached carousel for a category, rebuilding the cache on
// a miss. An empty categoryID means the main category.
func (m *Menu) Send(ctx context.Context, chatID, categoryID string) error {
	if categoryID == "" {
		categoryID = m.mainID
	}

	payload, err := m.store.Menu(ctx, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		payload, err = m.store.Menu(ctx, categoryID)
	}
	if err != nil {
		return err
	}

	var elements []bot.MenuElement
	if err := json.Unmarshal(payload, &elements); err != nil {
		return fmt.Errorf("parse cached menu: %w", err)
	}
	return m.client.SendCarousel(ctx, psid(chatID), elements)
}

// Renderer adapts Send to the state machine's menu hook. Carousels are not
// paginated, the page argument is ignored.
func (m *Menu) Renderer() func(ctx context.Context, chatID string, page int) error {
	return func(ctx context.Context, chatID string, _ int) error {
		return m.Send(ctx, chatID, m.mainID)
	}
}

// buildImageIndex resolves every product's main image once and caches the
// index, since file lookups are the slowest part of a rebuild.
func (m *Menu) buildImageIndex(ctx context.Context) (map[string]string, error) {
	if payload, err := m.store.Images(ctx); err == nil {
		var cached map[string]string
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	products, err := m.commerce.Products(ctx, "")
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(products))
	for _, p := range products {
		imageID := p.MainImageID()
		if imageID == "" {
			continue
		}
		href, err := m.commerce.FileURL(ctx, imageID)
		if err != nil {
			logger.Warn(ctx, "fb", "menu.image",
				slog.String("product_id", p.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		index[p.ID] = href
	}

	if payload, err := json.Marshal(index); err == nil {
		if err := m.store.SetImages(ctx, payload); err != nil {
			logger.Warn(ctx, "fb", "menu.images.save", slog.String("err", err.Error()))
		}
	}
	return index, nil
}

func (m *Menu) buildElements(ctx context.Context, categoryID string, categories []moltin.Category, images map[string]string) ([]bot.MenuElement, error) {
	products, err := m.commerce.Products(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	elements := []bot.MenuElement{{
		Title:       "Меню",
		Subtitle:    "Здесь вы можете выбрать один из вариантов",
		ImageURL:    m.cfg.LogoURL,
		ButtonTitle: "Корзина",
		Payload:     bot.PayloadCart,
	}}

	for _, p := range products {
		elements = append(elements, bot.MenuElement{
			Title:       fmt.Sprintf("%s (%s)", p.Name, p.Price()),
			Subtitle:    p.Description,
			ImageURL:    images[p.ID],
			ProductID:   p.ID,
			ButtonTitle: "Добавить в корзину",
			Payload:     bot.PayloadAddPrefix + p.ID,
		})
	}

	for _, category := range categories {
		if category.ID == categoryID {
			continue
		}
		subtitle := category.Description
		if subtitle == "" {
			subtitle = "Остальные пиццы можно посмотреть в этой категории"
		}
		elements = append(elements, bot.MenuElement{
			Title:       category.Name,
			Subtitle:    subtitle,
			ImageURL:    m.cfg.CategoriesImageURL,
			ButtonTitle: "Смотреть",
			Payload:     categoryPrefix + category.ID,
		})
	}
	return elements, nil
}

func categoryFromPayload(payload string) (string, bool) {
	if !strings.HasPrefix(payload, categoryPrefix) {
		return "", false
	}
	return strings.TrimPrefix(payload, categoryPrefix), true
}
