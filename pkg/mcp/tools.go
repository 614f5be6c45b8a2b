package mcp

import "github.com/mark3labs/mcp-go/mcp"

func getModelsTool() mcp.Tool {
	return mcp.NewTool("get_models",
		mcp.WithDescription("All descriptors registered under a model identity name, base and extensions, in scan order"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Model identity name, e.g. res.partner")),
	)
}

func getInheritingModelsTool() mcp.Tool {
	return mcp.NewTool("get_inheriting_models",
		mcp.WithDescription("Extension descriptors whose _inherit target is the given model"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Model identity name")),
	)
}

func getModelFieldsTool() mcp.Tool {
	return mcp.NewTool("get_model_fields",
		mcp.WithDescription("Merged field declarations for a model across its base and direct extensions"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Model identity name")),
	)
}

func getModelMethodsTool() mcp.Tool {
	return mcp.NewTool("get_model_methods",
		mcp.WithDescription("Merged method declarations for a model across its base and direct extensions"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Model identity name")),
	)
}

func listModelsTool() mcp.Tool {
	return mcp.NewTool("list_models",
		mcp.WithDescription("All registered model identity names, sorted"),
	)
}

func listComponentsTool() mcp.Tool {
	return mcp.NewTool("list_components",
		mcp.WithDescription("All registered component names, sorted"),
	)
}

func cacheStatsTool() mcp.Tool {
	return mcp.NewTool("cache_stats",
		mcp.WithDescription("Registry cache statistics: descriptor counts, tracked files, state flags"),
	)
}

func refreshTool() mcp.Tool {
	return mcp.NewTool("refresh",
		mcp.WithDescription("Trigger a full registry rescan of all configured source roots"),
	)
}
