// Package products is the product-recommendation scenario: it searches the
// Amazon catalog, reads reviews of the best candidates and recommends products.
package products

import (
	"github.com/harunnryd/scout/internal/scenario"
	"github.com/harunnryd/scout/internal/schema"
	"github.com/harunnryd/scout/internal/tool"
)

const Name = "products"

const SystemPrompt = `You are a helpful product recommendation expert. A user asks you to recommend a product based on their needs.
Recommend products that fit their needs.
If a tool fails and you cannot work around it, explain the reason instead of recommending.
Select products that fit the user's needs and give a brief explanation of why you chose each one.
After you scrape the products, scrape reviews for the few best candidates you would recommend.
Summarize the reviews for each recommended product and write its pros and cons for the user.
Write the summary along the description of the product.
The user needs to get a recommendation from you at the end, don't just list some products!
Don't offer further help at the end, there won't be any further questions.
If the user asks about anything unrelated to product recommendation, politely tell them that you can only help with product recommendations.`

func init() {
	scenario.Register(New())
}

func New() *scenario.Scenario {
	return &scenario.Scenario{
		Name:         Name,
		Description:  "Recommend Amazon products for a free-text need, backed by scraped reviews.",
		SystemPrompt: SystemPrompt,
		Output:       Output(),
		Tools: func(deps scenario.Deps) []tool.Tool {
			return []tool.Tool{
				&PromptTool,
				NewSearchTool(deps.Collector, deps.Apify.ProductsActor),
				NewReviewsTool(deps.Collector, deps.Apify.ReviewsActor),
			}
		},
	}
}

// PromptTool helps the model phrase an Amazon search URL.
var PromptTool = scenario.PromptTool{
	ToolName:        "get_prompt_for_amazon_product_list_plain_url",
	ToolDescription: "Get the right prompt for building an Amazon product list URL from the user query. Call it before searching.",
	Template:        "Generate an Amazon search URL for %s, including relevant filters like price if mentioned.",
}

func priceSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     []interface{}{"object", "null"},
		"required": []string{"value", "currency"},
		"properties": map[string]interface{}{
			"value":    map[string]interface{}{"type": "number"},
			"currency": map[string]interface{}{"type": "string"},
		},
	}
}

func productProperties() map[string]interface{} {
	return map[string]interface{}{
		"title":       map[string]interface{}{"type": "string", "description": "The title of the product."},
		"brand":       map[string]interface{}{"type": []interface{}{"string", "null"}, "description": "The brand of the product."},
		"stars":       map[string]interface{}{"type": []interface{}{"number", "null"}, "description": "The rating of the product."},
		"description": map[string]interface{}{"type": []interface{}{"string", "null"}, "description": "The description of the product."},
		"price":       priceSchema(),
		"url":         map[string]interface{}{"type": []interface{}{"string", "null"}, "description": "The URL of the product."},
		"features": map[string]interface{}{
			"type":  []interface{}{"array", "null"},
			"items": map[string]interface{}{"type": "string"},
		},
	}
}

// Output is the recommended_products answer shape.
func Output() *schema.Output {
	item := productProperties()
	item["reviewSummary"] = map[string]interface{}{
		"type":        "string",
		"description": "Longer summary of the reviews for this product, with pros and cons.",
	}

	return &schema.Output{
		Name:        "recommended_products",
		Description: "The products recommended to the user.",
		ItemsField:  "recommended_products",
		RecordFields: []string{
			"title", "brand", "stars", "description", "price", "url", "reviewSummary",
		},
		Definition: map[string]interface{}{
			"type":     "object",
			"required": []string{"recommended_products"},
			"properties": map[string]interface{}{
				"recommended_products": map[string]interface{}{
					"type":        "array",
					"description": "List of recommended Amazon products.",
					"minItems":    1,
					"items": map[string]interface{}{
						"type":       "object",
						"required":   []string{"title", "reviewSummary"},
						"properties": item,
					},
				},
			},
		},
	}
}
