// Package sites implements the shared site-adapter contract over per-site
// selector configuration. Adding a site means supplying configuration, not
// touching the extraction core.
package sites

import (
	"fmt"
	"net/url"
	"strings"
)

// Selectors holds the site-specific DOM selectors. They are opaque
// configuration owned by each site entry.
type Selectors struct {
	LocationButton     string `mapstructure:"location_button" json:"location_button"`
	LocationInput      string `mapstructure:"location_input" json:"location_input"`
	LocationSuggestion string `mapstructure:"location_suggestion" json:"location_suggestion"`
	ProductCard        string `mapstructure:"product_card" json:"product_card"`
	CardName           string `mapstructure:"card_name" json:"card_name"`
	CardImage          string `mapstructure:"card_image" json:"card_image"`
	CardLink           string `mapstructure:"card_link" json:"card_link"`
	CardQuantity       string `mapstructure:"card_quantity" json:"card_quantity"`
	CardDeliveryTime   string `mapstructure:"card_delivery_time" json:"card_delivery_time"`
	CardBadge          string `mapstructure:"card_badge" json:"card_badge"`
	OutOfStock         string `mapstructure:"out_of_stock" json:"out_of_stock"`
	DetailRegion       string `mapstructure:"detail_region" json:"detail_region"`
}

// Config describes one site: where it lives and how to find things on it.
type Config struct {
	Name            string    `mapstructure:"name" json:"name"`
	BaseURL         string    `mapstructure:"base_url" json:"base_url"`
	SearchURLFormat string    `mapstructure:"search_url_format" json:"search_url_format"`
	Selectors       Selectors `mapstructure:"selectors" json:"selectors"`
}

// Validate enforces the fields the adapter cannot work without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("site name is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil || c.BaseURL == "" {
		return fmt.Errorf("site %s: invalid base_url %q", c.Name, c.BaseURL)
	}
	if !strings.Contains(c.SearchURLFormat, "%s") {
		return fmt.Errorf("site %s: search_url_format must contain %%s", c.Name)
	}
	if c.Selectors.ProductCard == "" {
		return fmt.Errorf("site %s: product_card selector is required", c.Name)
	}
	if c.Selectors.LocationInput == "" {
		return fmt.Errorf("site %s: location_input selector is required", c.Name)
	}
	return nil
}

// SearchURL renders the search results URL for a query.
func (c Config) SearchURL(query string) string {
	return fmt.Sprintf(c.SearchURLFormat, url.QueryEscape(query))
}

// Defaults returns the built-in site configurations. They can be replaced
// wholesale from the config file.
func Defaults() []Config {
	return []Config{
		{
			Name:            "blinkit",
			BaseURL:         "https://blinkit.com",
			SearchURLFormat: "https://blinkit.com/s/?q=%s",
			Selectors: Selectors{
				LocationInput:      `input[name="select-locality"]`,
				LocationSuggestion: `div[class*="LocationSearchList"]`,
				ProductCard:        `div[role="button"][id]`,
				CardName:           `div[class*="Product__ProductName"]`,
				CardImage:          `img`,
				CardLink:           `a`,
				CardQuantity:       `div[class*="plp-product__quantity"]`,
				CardDeliveryTime:   `div[class*="delivery-time"]`,
				CardBadge:          `div[class*="Badge"]`,
				OutOfStock:         `div[class*="out-of-stock"]`,
				DetailRegion:       `div[class*="ProductInfoCard"]`,
			},
		},
		{
			Name:            "zepto",
			BaseURL:         "https://www.zeptonow.com",
			SearchURLFormat: "https://www.zeptonow.com/search?query=%s",
			Selectors: Selectors{
				LocationButton:     `button[aria-label="Select Location"]`,
				LocationInput:      `input[placeholder*="Search a new address"]`,
				LocationSuggestion: `div[data-testid="address-search-item"]`,
				ProductCard:        `a[data-testid="product-card"]`,
				CardName:           `h5[data-testid="product-card-name"]`,
				CardImage:          `img[data-testid="product-card-image"]`,
				CardLink:           ``,
				CardQuantity:       `span[data-testid="product-card-quantity"] h4`,
				CardDeliveryTime:   `div[data-testid="eta-badge"]`,
				CardBadge:          `p[data-testid="product-card-badge"]`,
				OutOfStock:         `p[data-testid="sold-out"]`,
				DetailRegion:       `div[data-testid="pdp-product-info"]`,
			},
		},
		{
			Name:            "instamart",
			BaseURL:         "https://www.swiggy.com/instamart",
			SearchURLFormat: "https://www.swiggy.com/instamart/search?custom_back=true&query=%s",
			Selectors: Selectors{
				LocationButton:     `div[data-testid="address-bar"]`,
				LocationInput:      `input[placeholder="Search for area, street name…"]`,
				LocationSuggestion: `div[data-testid="address-suggestion"]`,
				ProductCard:        `div[data-testid="default_container_ux4"]`,
				CardName:           `div[class*="novMV"]`,
				CardImage:          `img[class*="sc-dcJsrY"]`,
				CardLink:           `a`,
				CardQuantity:       `div[class*="entQHA"]`,
				CardDeliveryTime:   `div[class*="sc-eldPxv"]`,
				CardBadge:          `div[class*="offer-label"]`,
				OutOfStock:         `div[class*="sold-out"]`,
				DetailRegion:       `div[data-testid="item-details-container"]`,
			},
		},
	}
}
