// Package social is the social-post ranking scenario: it scrapes recent
// Instagram posts and ranks the ones that best answer the user's question.
package social

import (
	"context"
	"encoding/json"

	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/scenario"
	"github.com/harunnryd/scout/internal/schema"
	"github.com/harunnryd/scout/internal/tool"
)

const (
	Name                = "social"
	DefaultResultsLimit = 20
)

const SystemPrompt = `You are a social media analyst. A user asks you which Instagram posts best match their interest.
Find the relevant profiles or posts, scrape their recent posts, and rank the posts that best answer the user's request.
For every ranked post, write a short summary of what it shows and why it ranks where it does.
If a tool fails and you cannot work around it, explain the reason instead of ranking.
The user needs a ranking from you at the end, don't just list posts!
If the user asks about anything unrelated to social media posts, politely tell them that you can only help with ranking posts.`

func init() {
	scenario.Register(New())
}

func New() *scenario.Scenario {
	return &scenario.Scenario{
		Name:         Name,
		Description:  "Rank Instagram posts for a free-text interest.",
		SystemPrompt: SystemPrompt,
		Output:       Output(),
		Tools: func(deps scenario.Deps) []tool.Tool {
			return []tool.Tool{
				&PromptTool,
				NewPostsTool(deps.Collector, deps.Apify.PostsActor),
			}
		},
	}
}

var PromptTool = scenario.PromptTool{
	ToolName:        "get_prompt_for_instagram_profile_url",
	ToolDescription: "Get the right prompt for building Instagram profile or post URLs from the user query.",
	Template:        "Generate Instagram profile URLs for %s, using the account handles if mentioned.",
}

// Output is the ranked_posts answer shape.
func Output() *schema.Output {
	return &schema.Output{
		Name:         "ranked_posts",
		Description:  "The posts ranked for the user.",
		ItemsField:   "ranked_posts",
		RecordFields: []string{"rank", "url", "owner", "caption", "likes", "comments", "summary"},
		Definition: map[string]interface{}{
			"type":     "object",
			"required": []string{"ranked_posts"},
			"properties": map[string]interface{}{
				"ranked_posts": map[string]interface{}{
					"type":     "array",
					"minItems": 1,
					"items": map[string]interface{}{
						"type":     "object",
						"required": []string{"url", "rank", "summary"},
						"properties": map[string]interface{}{
							"rank":     map[string]interface{}{"type": "integer", "description": "1 is the best match."},
							"url":      map[string]interface{}{"type": "string"},
							"owner":    map[string]interface{}{"type": []interface{}{"string", "null"}},
							"caption":  map[string]interface{}{"type": []interface{}{"string", "null"}},
							"likes":    map[string]interface{}{"type": []interface{}{"integer", "null"}},
							"comments": map[string]interface{}{"type": []interface{}{"integer", "null"}},
							"summary":  map[string]interface{}{"type": "string"},
						},
					},
				},
			},
		},
	}
}

type PostsInput struct {
	DirectURLs   []string `json:"direct_urls"`
	ResultsLimit *int     `json:"results_limit,omitempty"`
}

// PostsTool scrapes posts of Instagram profiles, hashtags or single posts.
type PostsTool struct {
	collector scenario.Collector
	actorID   string
}

func NewPostsTool(collector scenario.Collector, actorID string) *PostsTool {
	return &PostsTool{collector: collector, actorID: actorID}
}

func (t *PostsTool) Name() string { return "scrape_instagram_posts" }

func (t *PostsTool) Description() string {
	return "Scrape recent Instagram posts from profile, hashtag or post URLs. At least one URL must be provided. " +
		"Example URL: https://www.instagram.com/natgeo/"
}

func (t *PostsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"direct_urls"},
		"properties": map[string]interface{}{
			"direct_urls": map[string]interface{}{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]interface{}{"type": "string"},
			},
			"results_limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of posts per URL.",
				"default":     DefaultResultsLimit,
			},
		},
	}
}

func (t *PostsTool) OutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type":     "object",
			"required": []string{"url"},
			"properties": map[string]interface{}{
				"url":      map[string]interface{}{"type": "string"},
				"caption":  map[string]interface{}{"type": "string"},
				"owner":    map[string]interface{}{"type": "string"},
				"likes":    map[string]interface{}{"type": "number"},
				"comments": map[string]interface{}{"type": "number"},
				"hashtags": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
		},
	}
}

func (t *PostsTool) ToolMetadata() tool.ToolMetadata {
	return tool.ToolMetadata{Source: "apify", Capabilities: []string{"scrape", "social"}, Risk: tool.RiskHigh}
}

func (t *PostsTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args PostsInput
	if err := scenario.DecodeInput(input, &args); err != nil {
		return nil, err
	}
	if len(args.DirectURLs) < 1 {
		return nil, scoutErrors.InvalidArgument("at least one URL must be provided in direct_urls")
	}

	limit := DefaultResultsLimit
	if args.ResultsLimit != nil {
		if *args.ResultsLimit < 1 {
			return nil, scoutErrors.InvalidArgument("results_limit must be positive")
		}
		limit = *args.ResultsLimit
	}

	records, err := t.collector.Collect(ctx, t.actorID, map[string]interface{}{
		"directUrls":   args.DirectURLs,
		"resultsType":  "posts",
		"resultsLimit": limit,
	})
	if err != nil {
		return nil, err
	}

	posts := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		if post, ok := MapPost(record); ok {
			posts = append(posts, post)
		}
	}

	return json.Marshal(posts)
}

// MapPost maps a scraper record into a post. Records without a URL are dropped.
func MapPost(record map[string]interface{}) (map[string]interface{}, bool) {
	url, _ := record["url"].(string)
	if url == "" {
		return nil, false
	}

	post := map[string]interface{}{"url": url}
	if caption, ok := record["caption"].(string); ok {
		post["caption"] = caption
	}
	if owner, ok := record["ownerUsername"].(string); ok {
		post["owner"] = owner
	}
	if likes, ok := record["likesCount"].(float64); ok {
		post["likes"] = likes
	}
	if comments, ok := record["commentsCount"].(float64); ok {
		post["comments"] = comments
	}
	if ts, ok := record["timestamp"].(string); ok {
		post["timestamp"] = ts
	}
	if tags, ok := record["hashtags"].([]interface{}); ok {
		hashtags := make([]string, 0, len(tags))
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				hashtags = append(hashtags, s)
			}
		}
		post["hashtags"] = hashtags
	}
	return post, true
}
