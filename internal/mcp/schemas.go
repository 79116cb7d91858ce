package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/vaultkeep/internal/generator"
)

// vaultStatusTool returns the tool definition for vault_status
func vaultStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vault_status",
		Description: "Report the vault lifecycle state (uninitialized, locked, or unlocked)",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// initVaultTool returns the tool definition for init_vault
func initVaultTool() mcp.Tool {
	return mcp.Tool{
		Name:        "init_vault",
		Description: "Perform first-run setup: set the master passphrase and create the vault",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"passphrase": map[string]interface{}{
					"type":        "string",
					"description": "Master passphrase for the new vault (minimum 4 characters after trimming)",
				},
			},
			Required: []string{"passphrase"},
		},
	}
}

// unlockVaultTool returns the tool definition for unlock_vault
func unlockVaultTool() mcp.Tool {
	return mcp.Tool{
		Name:        "unlock_vault",
		Description: "Unlock the vault with the master passphrase",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"passphrase": map[string]interface{}{
					"type":        "string",
					"description": "Master passphrase",
				},
			},
			Required: []string{"passphrase"},
		},
	}
}

// lockVaultTool returns the tool definition for lock_vault
func lockVaultTool() mcp.Tool {
	return mcp.Tool{
		Name:        "lock_vault",
		Description: "Lock the vault, discarding the in-memory key material",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// changeMasterPasswordTool returns the tool definition for change_master_password
func changeMasterPasswordTool() mcp.Tool {
	return mcp.Tool{
		Name:        "change_master_password",
		Description: "Rotate the master passphrase and re-encrypt every stored credential atomically",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"new_passphrase": map[string]interface{}{
					"type":        "string",
					"description": "New master passphrase (minimum 4 characters after trimming)",
				},
			},
			Required: []string{"new_passphrase"},
		},
	}
}

// addCredentialTool returns the tool definition for add_credential
func addCredentialTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_credential",
		Description: "Store a new credential; the password is encrypted at rest",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"site": map[string]interface{}{
					"type":        "string",
					"description": "Site or service the credential belongs to",
				},
				"username": map[string]interface{}{
					"type":        "string",
					"description": "Account username (may be empty)",
				},
				"password": map[string]interface{}{
					"type":        "string",
					"description": "Password to store",
				},
				"group": map[string]interface{}{
					"type":        "string",
					"description": "Group name; created on first use. Empty or 'All' means ungrouped",
				},
			},
			Required: []string{"site", "password"},
		},
	}
}

// updateCredentialTool returns the tool definition for update_credential
func updateCredentialTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_credential",
		Description: "Replace an existing credential's fields; the password is re-encrypted",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Credential id",
				},
				"site": map[string]interface{}{
					"type":        "string",
					"description": "Site or service the credential belongs to",
				},
				"username": map[string]interface{}{
					"type":        "string",
					"description": "Account username (may be empty)",
				},
				"password": map[string]interface{}{
					"type":        "string",
					"description": "Password to store",
				},
				"group": map[string]interface{}{
					"type":        "string",
					"description": "Group name; created on first use. Empty or 'All' means ungrouped",
				},
			},
			Required: []string{"id", "site", "password"},
		},
	}
}

// deleteCredentialTool returns the tool definition for delete_credential
func deleteCredentialTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_credential",
		Description: "Delete a credential by id (deleting a missing id is a no-op)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Credential id",
				},
			},
			Required: []string{"id"},
		},
	}
}

// getPasswordTool returns the tool definition for get_password
func getPasswordTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_password",
		Description: "Decrypt and return the plaintext password for one credential",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Credential id",
				},
			},
			Required: []string{"id"},
		},
	}
}

// listCredentialsTool returns the tool definition for list_credentials
func listCredentialsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_credentials",
		Description: "List credentials ordered by id; passwords are never included",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"group": map[string]interface{}{
					"type":        "string",
					"description": "Group filter; empty or 'All' lists everything",
				},
			},
		},
	}
}

// searchCredentialsTool returns the tool definition for search_credentials
func searchCredentialsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_credentials",
		Description: "Search credentials by site or username substring, case-insensitively",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"term": map[string]interface{}{
					"type":        "string",
					"description": "Search term; empty matches everything",
				},
				"group": map[string]interface{}{
					"type":        "string",
					"description": "Group filter; empty or 'All' searches everything",
				},
			},
		},
	}
}

// addGroupTool returns the tool definition for add_group
func addGroupTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_group",
		Description: "Create a named credential group",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Group name ('All' is reserved)",
				},
			},
			Required: []string{"name"},
		},
	}
}

// renameGroupTool returns the tool definition for rename_group
func renameGroupTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rename_group",
		Description: "Rename a group; credentials in the group follow the new name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"old_name": map[string]interface{}{
					"type":        "string",
					"description": "Existing group name",
				},
				"new_name": map[string]interface{}{
					"type":        "string",
					"description": "New group name; empty deletes the group instead",
				},
			},
			Required: []string{"old_name"},
		},
	}
}

// deleteGroupTool returns the tool definition for delete_group
func deleteGroupTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_group",
		Description: "Delete a group; its credentials are kept and become ungrouped",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Group name",
				},
			},
			Required: []string{"name"},
		},
	}
}

// listGroupsTool returns the tool definition for list_groups
func listGroupsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_groups",
		Description: "List group filter values: 'All' first, then stored groups by name",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// generatePasswordTool returns the tool definition for generate_password
func generatePasswordTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_password",
		Description: "Generate a random password from letters, digits, and punctuation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"length": map[string]interface{}{
					"type":        "integer",
					"description": "Password length",
					"default":     16,
					"minimum":     1,
					"maximum":     generator.MaxLength,
				},
			},
		},
	}
}

// getSettingTool returns the tool definition for get_setting
func getSettingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_setting",
		Description: "Read a vault preference (auto_lock_enabled, auto_lock_minutes, theme)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"key": map[string]interface{}{
					"type":        "string",
					"description": "Setting key",
				},
				"default": map[string]interface{}{
					"type":        "string",
					"description": "Value to return when the key is absent",
				},
			},
			Required: []string{"key"},
		},
	}
}

// setSettingTool returns the tool definition for set_setting
func setSettingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_setting",
		Description: "Write a vault preference",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"key": map[string]interface{}{
					"type":        "string",
					"description": "Setting key",
				},
				"value": map[string]interface{}{
					"type":        "string",
					"description": "Setting value",
				},
			},
			Required: []string{"key", "value"},
		},
	}
}
