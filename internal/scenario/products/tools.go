package products

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/scenario"
	"github.com/harunnryd/scout/internal/tool"
)

const (
	DefaultMaxItemsPerStartURL = 50
	DefaultMaxReviews          = 50
)

type SearchInput struct {
	CategoryOrProductURLs []scenario.RequestURL `json:"category_or_product_urls"`
	MaxItemsPerStartURL   *int                  `json:"max_items_per_start_url,omitempty"`
}

// SearchTool scrapes Amazon category or product pages.
type SearchTool struct {
	collector scenario.Collector
	actorID   string
}

func NewSearchTool(collector scenario.Collector, actorID string) *SearchTool {
	return &SearchTool{collector: collector, actorID: actorID}
}

func (t *SearchTool) Name() string { return "scrape_amazon_products" }

func (t *SearchTool) Description() string {
	return "Scrape Amazon products from category, search or product URLs. At least one URL must be provided. " +
		"Example URL: https://www.amazon.com/s?k=laptop&low-price=400&high-price=600"
}

func (t *SearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"category_or_product_urls"},
		"properties": map[string]interface{}{
			"category_or_product_urls": scenario.RequestURLSchema("Category or product URLs to scrape."),
			"max_items_per_start_url": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of items to scrape per start URL.",
				"default":     DefaultMaxItemsPerStartURL,
			},
		},
	}
}

func (t *SearchTool) OutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type":       "object",
			"required":   []string{"title"},
			"properties": productProperties(),
		},
	}
}

func (t *SearchTool) ToolMetadata() tool.ToolMetadata {
	return tool.ToolMetadata{Source: "apify", Capabilities: []string{"search", "scrape"}, Risk: tool.RiskHigh}
}

func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args SearchInput
	if err := scenario.DecodeInput(input, &args); err != nil {
		return nil, err
	}

	urls, err := scenario.NormalizeRequestURLs("category_or_product_urls", args.CategoryOrProductURLs)
	if err != nil {
		return nil, err
	}

	maxItems := DefaultMaxItemsPerStartURL
	if args.MaxItemsPerStartURL != nil {
		if *args.MaxItemsPerStartURL < 1 {
			return nil, scoutErrors.InvalidArgument("max_items_per_start_url must be positive")
		}
		maxItems = *args.MaxItemsPerStartURL
	}

	records, err := t.collector.Collect(ctx, t.actorID, map[string]interface{}{
		"categoryOrProductUrls": urls,
		"maxItemsPerStartUrl":   maxItems,
		"maxOffers":             1,
	})
	if err != nil {
		return nil, err
	}

	products := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		product, ok := MapProduct(record)
		if !ok {
			slog.Debug("Skipping product without title", "actor", t.actorID)
			continue
		}
		products = append(products, product)
	}

	return json.Marshal(products)
}

// MapProduct maps a crawler record into a product. Records without a title are dropped.
func MapProduct(record map[string]interface{}) (map[string]interface{}, bool) {
	title, _ := record["title"].(string)
	if title == "" {
		return nil, false
	}

	product := scenario.Project(record, "title", "brand", "stars", "description", "url")
	for _, field := range []string{"brand", "description", "url"} {
		if _, isString := product[field].(string); !isString {
			delete(product, field)
		}
	}
	if stars, ok := product["stars"]; ok {
		if _, isNumber := stars.(float64); !isNumber {
			delete(product, "stars")
		}
	}

	if price, ok := record["price"].(map[string]interface{}); ok {
		value, hasValue := price["value"].(float64)
		currency, hasCurrency := price["currency"].(string)
		if hasValue && hasCurrency {
			product["price"] = map[string]interface{}{"value": value, "currency": currency}
		}
	}

	if features := stringList(record["features"]); len(features) > 0 {
		product["features"] = features
	}

	return product, true
}

type ReviewsInput struct {
	ProductURLs []scenario.RequestURL `json:"product_urls"`
	MaxReviews  *int                  `json:"max_reviews,omitempty"`
}

// ReviewsTool scrapes customer reviews of Amazon products.
type ReviewsTool struct {
	collector scenario.Collector
	actorID   string
}

func NewReviewsTool(collector scenario.Collector, actorID string) *ReviewsTool {
	return &ReviewsTool{collector: collector, actorID: actorID}
}

func (t *ReviewsTool) Name() string { return "scrape_amazon_reviews" }

func (t *ReviewsTool) Description() string {
	return "Scrape customer reviews of Amazon products. At least one product URL must be provided. " +
		"Example URL: https://www.amazon.com/dp/B08P3K8H5P"
}

func (t *ReviewsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"product_urls"},
		"properties": map[string]interface{}{
			"product_urls": scenario.RequestURLSchema("Product URLs to scrape reviews for."),
			"max_reviews": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of reviews to scrape per product.",
				"default":     DefaultMaxReviews,
			},
		},
	}
}

func (t *ReviewsTool) OutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ratingScore":       map[string]interface{}{"type": "number"},
				"reviewTitle":       map[string]interface{}{"type": "string"},
				"reviewDescription": map[string]interface{}{"type": "string"},
			},
		},
	}
}

func (t *ReviewsTool) ToolMetadata() tool.ToolMetadata {
	return tool.ToolMetadata{Source: "apify", Capabilities: []string{"reviews", "scrape"}, Risk: tool.RiskHigh}
}

func (t *ReviewsTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args ReviewsInput
	if err := scenario.DecodeInput(input, &args); err != nil {
		return nil, err
	}

	urls, err := scenario.NormalizeRequestURLs("product_urls", args.ProductURLs)
	if err != nil {
		return nil, err
	}

	maxReviews := DefaultMaxReviews
	if args.MaxReviews != nil {
		if *args.MaxReviews < 1 {
			return nil, scoutErrors.InvalidArgument("max_reviews must be positive")
		}
		maxReviews = *args.MaxReviews
	}

	records, err := t.collector.Collect(ctx, t.actorID, map[string]interface{}{
		"productUrls": urls,
		"maxReviews":  maxReviews,
	})
	if err != nil {
		return nil, err
	}

	reviews := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		review := scenario.Project(record, "reviewTitle", "reviewDescription")
		if score, ok := record["ratingScore"].(float64); ok {
			review["ratingScore"] = score
		}
		for _, field := range []string{"reviewTitle", "reviewDescription"} {
			if _, isString := review[field].(string); !isString {
				delete(review, field)
			}
		}
		reviews = append(reviews, review)
	}

	return json.Marshal(reviews)
}

func stringList(raw interface{}) []string {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
