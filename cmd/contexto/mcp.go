package contexto

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/contexto-ai/contexto"
	"github.com/contexto-ai/contexto/pkg/config"
	"github.com/contexto-ai/contexto/pkg/logger"
	"github.com/contexto-ai/contexto/pkg/types"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Model Context Protocol (MCP) server",
	Long: `Start the Model Context Protocol (MCP) server over stdio.

The MCP server provides tools for:
- Saving conversations into the bi-temporal store
- Hybrid search over messages and entities
- Extracting entities and creating relationships
- Querying and visualizing the knowledge graph

It is designed to work with MCP clients such as editor assistants.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	engine, err := contexto.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	s := server.NewMCPServer(
		"contexto",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	registerTools(s, engine)

	log.Info("starting mcp server over stdio")
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func registerTools(s *server.MCPServer, engine *contexto.Engine) {
	s.AddTool(saveConversationTool(), handleSaveConversation(engine))
	s.AddTool(searchTool(), handleSearch(engine))
	s.AddTool(queryGraphTool(), handleQueryGraph(engine))
	s.AddTool(extractEntitiesTool(), handleExtractEntities(engine))
	s.AddTool(createRelationshipTool(), handleCreateRelationship(engine))
	s.AddTool(entityHistoryTool(), handleEntityHistory(engine))
}

func saveConversationTool() mcp.Tool {
	return mcp.NewTool("save_conversation",
		mcp.WithDescription("Save a conversation into memory. Messages are persisted, embedded for semantic search, and become searchable immediately."),
		mcp.WithString("messages",
			mcp.Required(),
			mcp.Description(`JSON array of messages, each {"role": "user|assistant|system", "content": "..."}`),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Conversation ID to append to (a new one is generated when omitted)"),
		),
		mcp.WithString("project_path",
			mcp.Description("Project path the conversation belongs to"),
		),
	)
}

func handleSaveConversation(engine *contexto.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		rawMessages, _ := args["messages"].(string)
		conversationID, _ := args["conversation_id"].(string)
		projectPath, _ := args["project_path"].(string)

		if rawMessages == "" {
			return mcp.NewToolResultError("messages is required"), nil
		}

		var parsed []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(rawMessages), &parsed); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid messages JSON: %v", err)), nil
		}
		if len(parsed) == 0 {
			return mcp.NewToolResultError("messages cannot be empty"), nil
		}

		conv := &types.Conversation{
			ID:          conversationID,
			StartedAt:   time.Now().UTC(),
			ProjectPath: projectPath,
		}
		messages := make([]*types.Message, len(parsed))
		for i, m := range parsed {
			messages[i] = &types.Message{
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: time.Now().UTC(),
			}
		}

		saved, err := engine.SaveConversation(ctx, conv, messages)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save conversation: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Saved %d messages to conversation %s", saved, conv.ID)), nil
	}
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Search saved conversations and extracted entities. Hybrid mode fuses semantic, keyword, and graph retrieval; semantic, keyword, and graph run a single strategy."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query text"),
		),
		mcp.WithString("mode",
			mcp.Description("Search mode: hybrid (default), semantic, keyword, or graph"),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Restrict results to one conversation"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10)"),
		),
	)
}

func handleSearch(engine *contexto.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		query, _ := args["query"].(string)
		mode, _ := args["mode"].(string)
		conversationID, _ := args["conversation_id"].(string)
		limit := 0
		if v, ok := args["limit"].(float64); ok {
			limit = int(v)
		}

		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		results, err := engine.Search(ctx, types.SearchRequest{
			Query: query,
			Mode:  types.SearchMode(mode),
			Filters: types.SearchFilters{
				ConversationID: conversationID,
			},
			Limit: limit,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return jsonResult(map[string]any{"results": results, "count": len(results)})
	}
}

func queryGraphTool() mcp.Tool {
	return mcp.NewTool("query_knowledge_graph",
		mcp.WithDescription("Query the knowledge graph. Operations: context, neighbors, related, paths, shortest_path, components, centrality, stats, visualize (Mermaid diagram)."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("Graph operation to run"),
		),
		mcp.WithString("entity_id",
			mcp.Description("Entity ID for entity-centric operations"),
		),
		mcp.WithString("target_id",
			mcp.Description("Target entity ID for path operations"),
		),
		mcp.WithString("entity_type",
			mcp.Description("Restrict the related operation to one entity type"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth (default: 2)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Result limit for centrality and visualize"),
		),
	)
}

func handleQueryGraph(engine *contexto.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		q := contexto.GraphQuery{}
		q.Operation, _ = args["operation"].(string)
		q.EntityID, _ = args["entity_id"].(string)
		q.TargetID, _ = args["target_id"].(string)
		q.EntityType, _ = args["entity_type"].(string)
		if v, ok := args["depth"].(float64); ok {
			q.Depth = int(v)
		}
		if v, ok := args["limit"].(float64); ok {
			q.Limit = int(v)
		}

		if q.Operation == "" {
			return mcp.NewToolResultError("operation is required"), nil
		}

		result, err := engine.QueryGraph(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph query failed: %v", err)), nil
		}
		if result.Mermaid != "" {
			return mcp.NewToolResultText(result.Mermaid), nil
		}
		return jsonResult(result)
	}
}

func extractEntitiesTool() mcp.Tool {
	return mcp.NewTool("extract_entities",
		mcp.WithDescription("Extract entities (tools, concepts, files, people) from text and persist them into the knowledge store."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to extract entities from"),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Conversation to attribute the entities to"),
		),
	)
}

func handleExtractEntities(engine *contexto.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		text, _ := args["text"].(string)
		conversationID, _ := args["conversation_id"].(string)

		if text == "" {
			return mcp.NewToolResultError("text is required"), nil
		}

		entities, err := engine.ExtractEntities(ctx, conversationID, nil, text)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", err)), nil
		}
		return jsonResult(map[string]any{"entities": entities, "count": len(entities)})
	}
}

func createRelationshipTool() mcp.Tool {
	return mcp.NewTool("create_relationship",
		mcp.WithDescription("Create a typed relationship between two entities in the knowledge graph."),
		mcp.WithString("source_entity_id",
			mcp.Required(),
			mcp.Description("Source entity ID"),
		),
		mcp.WithString("target_entity_id",
			mcp.Required(),
			mcp.Description("Target entity ID"),
		),
		mcp.WithString("relationship_type",
			mcp.Required(),
			mcp.Description("Relationship type (e.g. uses, part_of, mentions)"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Confidence between 0 and 1 (default: 1.0)"),
		),
	)
}

func handleCreateRelationship(engine *contexto.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		sourceID, _ := args["source_entity_id"].(string)
		targetID, _ := args["target_entity_id"].(string)
		relType, _ := args["relationship_type"].(string)
		confidence := 1.0
		if v, ok := args["confidence"].(float64); ok && v > 0 {
			confidence = v
		}

		if sourceID == "" || targetID == "" || relType == "" {
			return mcp.NewToolResultError("source_entity_id, target_entity_id, and relationship_type are required"), nil
		}

		rel, err := engine.CreateRelationship(ctx, sourceID, targetID, relType, confidence, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create relationship: %v", err)), nil
		}
		return jsonResult(rel)
	}
}

func entityHistoryTool() mcp.Tool {
	return mcp.NewTool("get_entity_history",
		mcp.WithDescription("Get every recorded version of an entity, oldest first, including invalidated versions."),
		mcp.WithString("entity_id",
			mcp.Required(),
			mcp.Description("Entity ID to inspect"),
		),
	)
}

func handleEntityHistory(engine *contexto.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		entityID, _ := args["entity_id"].(string)
		if entityID == "" {
			return mcp.NewToolResultError("entity_id is required"), nil
		}

		history, err := engine.GetEntityHistory(ctx, entityID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get entity history: %v", err)), nil
		}
		return jsonResult(map[string]any{"versions": history, "count": len(history)})
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
