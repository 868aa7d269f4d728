// Command seed uploads the catalog and the address flows to the commerce
// platform from the exported JSON files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/KirillYabl/TgPizzaBot/internal/app"
	"github.com/KirillYabl/TgPizzaBot/internal/config"
	"github.com/KirillYabl/TgPizzaBot/internal/logger"
	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
)

type menuItem struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	Image       struct {
		URL string `json:"url"`
	} `json:"product_image"`
}

type addressItem struct {
	ID          string `json:"id"`
	Alias       string `json:"alias"`
	Address     struct {
		Full string `json:"full"`
	} `json:"address"`
	Coordinates struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	} `json:"coordinates"`
}

func main() {
	menuPath := flag.String("menu", "", "path to the exported menu JSON")
	addressesPath := flag.String("addresses", "", "path to the exported pizzeria addresses JSON")
	createFlows := flag.Bool("create-flows", false, "create the address flow schemas before loading entries")
	courierChatID := flag.String("courier", "", "telegram chat id assigned to every seeded pizzeria's deliveryman")
	integrationURL := flag.String("integration-url", "", "register a catalog webhook pointing at this URL")
	flag.Parse()

	if err := run(*menuPath, *addressesPath, *createFlows, *courierChatID, *integrationURL); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

func run(menuPath, addressesPath string, createFlows bool, courierChatID, integrationURL string) error {
	infra, err := app.Bootstrap()
	if err != nil {
		return err
	}
	defer infra.Close()

	ctx := context.Background()
	client := infra.Commerce
	flows := infra.Config.Flows

	if menuPath != "" {
		if err := seedMenu(ctx, client, menuPath); err != nil {
			return err
		}
	}
	if createFlows {
		if err := seedFlows(ctx, client, flows); err != nil {
			return err
		}
	}
	if addressesPath != "" {
		if err := seedAddresses(ctx, client, flows, addressesPath, courierChatID); err != nil {
			return err
		}
	}
	if integrationURL != "" {
		id, err := client.CreateIntegration(ctx, "menu-refresh", integrationURL,
			[]string{"product.created", "product.updated", "product.deleted"})
		if err != nil {
			return fmt.Errorf("create integration: %w", err)
		}
		logger.Info(ctx, "moltin", "seed.integration", slog.String("id", id))
	}
	return nil
}

func seedMenu(ctx context.Context, client *moltin.Client, path string) error {
	var items []menuItem
	if err := readJSON(path, &items); err != nil {
		return err
	}

	for _, item := range items {
		productID, err := client.CreateProduct(ctx, map[string]any{
			"type":           "product",
			"name":           item.Name,
			"slug":           fmt.Sprintf("pizza-%d", item.ID),
			"sku":            fmt.Sprintf("pizza-%d", item.ID),
			"description":    item.Description,
			"manage_stock":   false,
			"status":         "live",
			"commodity_type": "physical",
			"price": []map[string]any{{
				"amount":       item.Price * 100,
				"currency":     "RUB",
				"includes_tax": true,
			}},
		})
		if err != nil {
			return fmt.Errorf("create product %q: %w", item.Name, err)
		}

		if item.Image.URL != "" {
			imageID, err := client.UploadImage(ctx, item.Image.URL)
			if err != nil {
				return fmt.Errorf("upload image for %q: %w", item.Name, err)
			}
			if err := client.LinkMainImage(ctx, productID, imageID); err != nil {
				return fmt.Errorf("link image for %q: %w", item.Name, err)
			}
		}
		logger.Info(ctx, "moltin", "seed.product",
			slog.String("name", item.Name),
			slog.String("id", productID),
		)
	}
	return nil
}

func seedFlows(ctx context.Context, client *moltin.Client, flows config.FlowsConfig) error {
	pizzeriaFlowID, err := client.CreateFlow(ctx, "Pizzeria addresses", flows.PizzeriaSlug,
		"Pizzeria locations with assigned deliverymen")
	if err != nil {
		return fmt.Errorf("create pizzeria flow: %w", err)
	}
	pizzeriaFields := []struct {
		name, slug, kind string
	}{
		{"Address", flows.PizzeriaAddressField, "string"},
		{"Alias", "alias", "string"},
		{"Longitude", flows.PizzeriaLongitudeField, "float"},
		{"Latitude", flows.PizzeriaLatitudeField, "float"},
		{"Deliveryman telegram chat id", flows.DeliverymanChatIDField, "string"},
	}
	for _, f := range pizzeriaFields {
		if err := client.CreateField(ctx, pizzeriaFlowID, f.name, f.slug, f.kind); err != nil {
			return fmt.Errorf("create field %s: %w", f.slug, err)
		}
	}

	customerFlowID, err := client.CreateFlow(ctx, "Customer addresses", flows.CustomerSlug,
		"Delivery drop points chosen by customers")
	if err != nil {
		return fmt.Errorf("create customer flow: %w", err)
	}
	customerFields := []struct {
		name, slug, kind string
	}{
		{"Customer id", flows.CustomerIDField, "string"},
		{"Longitude", flows.CustomerLongitudeField, "float"},
		{"Latitude", flows.CustomerLatitudeField, "float"},
	}
	for _, f := range customerFields {
		if err := client.CreateField(ctx, customerFlowID, f.name, f.slug, f.kind); err != nil {
			return fmt.Errorf("create field %s: %w", f.slug, err)
		}
	}
	return nil
}

func seedAddresses(ctx context.Context, client *moltin.Client, flows config.FlowsConfig, path, courierChatID string) error {
	var items []addressItem
	if err := readJSON(path, &items); err != nil {
		return err
	}

	for _, item := range items {
		lat, err := strconv.ParseFloat(item.Coordinates.Lat, 64)
		if err != nil {
			return fmt.Errorf("address %q: bad latitude %q", item.Alias, item.Coordinates.Lat)
		}
		lon, err := strconv.ParseFloat(item.Coordinates.Lon, 64)
		if err != nil {
			return fmt.Errorf("address %q: bad longitude %q", item.Alias, item.Coordinates.Lon)
		}

		fields := map[string]any{
			flows.PizzeriaAddressField:   item.Address.Full,
			"alias":                      item.Alias,
			flows.PizzeriaLongitudeField: lon,
			flows.PizzeriaLatitudeField:  lat,
		}
		if courierChatID != "" {
			fields[flows.DeliverymanChatIDField] = courierChatID
		}

		id, err := client.CreateEntry(ctx, flows.PizzeriaSlug, fields)
		if err != nil {
			return fmt.Errorf("create address entry %q: %w", item.Alias, err)
		}
		logger.Info(ctx, "moltin", "seed.address",
			slog.String("alias", item.Alias),
			slog.String("id", id),
		)
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
