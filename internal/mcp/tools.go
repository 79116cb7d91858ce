package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/vaultkeep/internal/crypto"
	"github.com/dshills/vaultkeep/internal/generator"
	"github.com/dshills/vaultkeep/internal/storage"
	"github.com/dshills/vaultkeep/internal/vault"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotUnlocked        = -32001 // Operation requires an unlocked vault
	ErrorCodeNotInitialized     = -32002 // Vault has no master record yet
	ErrorCodeAlreadyInitialized = -32003 // Vault already has a master record
	ErrorCodeInvalidPassphrase  = -32004 // Passphrase does not match the stored digest
	ErrorCodeNotFound           = -32005 // Referenced record does not exist
	ErrorCodeDuplicateName      = -32006 // Name collides with an existing group
	ErrorCodeDecryption         = -32007 // Stored ciphertext could not be decrypted
)

// handleVaultStatus handles the vault_status tool invocation
func (s *Server) handleVaultStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"state":       s.vault.State().String(),
		"initialized": s.vault.Initialized(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleInitVault handles the init_vault tool invocation
func (s *Server) handleInitVault(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	passphrase, ok := args["passphrase"].(string)
	if !ok || passphrase == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "passphrase parameter is required", map[string]interface{}{
			"param":  "passphrase",
			"reason": "missing or empty",
		})
	}

	if err := s.vault.Initialize(ctx, passphrase); err != nil {
		return nil, vaultError("initialization failed", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"initialized": true,
		"state":       s.vault.State().String(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUnlockVault handles the unlock_vault tool invocation
func (s *Server) handleUnlockVault(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	passphrase, ok := args["passphrase"].(string)
	if !ok || passphrase == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "passphrase parameter is required", map[string]interface{}{
			"param":  "passphrase",
			"reason": "missing or empty",
		})
	}

	if err := s.vault.Unlock(ctx, passphrase); err != nil {
		return nil, vaultError("unlock failed", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"unlocked": true,
		"state":    s.vault.State().String(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleLockVault handles the lock_vault tool invocation
func (s *Server) handleLockVault(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.vault.Lock()
	response := map[string]interface{}{
		"locked": true,
		"state":  s.vault.State().String(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleChangeMasterPassword handles the change_master_password tool invocation
func (s *Server) handleChangeMasterPassword(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	newPassphrase, ok := args["new_passphrase"].(string)
	if !ok || newPassphrase == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "new_passphrase parameter is required", map[string]interface{}{
			"param":  "new_passphrase",
			"reason": "missing or empty",
		})
	}

	if err := s.vault.ChangeMasterPassword(ctx, newPassphrase); err != nil {
		return nil, vaultError("rotation failed", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"rotated": true,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddCredential handles the add_credential tool invocation
func (s *Server) handleAddCredential(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	site, ok := args["site"].(string)
	if !ok || site == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "site parameter is required", map[string]interface{}{
			"param":  "site",
			"reason": "missing or empty",
		})
	}
	password, ok := args["password"].(string)
	if !ok || password == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "password parameter is required", map[string]interface{}{
			"param":  "password",
			"reason": "missing or empty",
		})
	}
	username := getStringDefault(args, "username", "")
	group := getStringDefault(args, "group", "")

	id, err := s.vault.AddCredential(ctx, site, username, password, group)
	if err != nil {
		return nil, vaultError("failed to add credential", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"added": true,
		"id":    id,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUpdateCredential handles the update_credential tool invocation
func (s *Server) handleUpdateCredential(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireID(args)
	if err != nil {
		return nil, err
	}
	site, ok := args["site"].(string)
	if !ok || site == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "site parameter is required", map[string]interface{}{
			"param":  "site",
			"reason": "missing or empty",
		})
	}
	password, ok := args["password"].(string)
	if !ok || password == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "password parameter is required", map[string]interface{}{
			"param":  "password",
			"reason": "missing or empty",
		})
	}
	username := getStringDefault(args, "username", "")
	group := getStringDefault(args, "group", "")

	if err := s.vault.UpdateCredential(ctx, id, site, username, password, group); err != nil {
		return nil, vaultError("failed to update credential", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"updated": true,
		"id":      id,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteCredential handles the delete_credential tool invocation
func (s *Server) handleDeleteCredential(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireID(args)
	if err != nil {
		return nil, err
	}

	if err := s.vault.DeleteCredential(ctx, id); err != nil {
		return nil, vaultError("failed to delete credential", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"deleted": true,
		"id":      id,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetPassword handles the get_password tool invocation
func (s *Server) handleGetPassword(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireID(args)
	if err != nil {
		return nil, err
	}

	password, err := s.vault.GetPlaintextPassword(ctx, id)
	if err != nil {
		return nil, vaultError("failed to get password", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"id":       id,
		"password": password,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListCredentials handles the list_credentials tool invocation
func (s *Server) handleListCredentials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	group := getStringDefault(args, "group", "")

	creds, err := s.vault.ListCredentials(ctx, group)
	if err != nil {
		return nil, vaultError("failed to list credentials", err)
	}

	s.vault.RegisterActivity()
	return mcp.NewToolResultText(formatJSON(credentialListResponse(creds))), nil
}

// handleSearchCredentials handles the search_credentials tool invocation
func (s *Server) handleSearchCredentials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	term := getStringDefault(args, "term", "")
	group := getStringDefault(args, "group", "")

	creds, err := s.vault.SearchCredentials(ctx, term, group)
	if err != nil {
		return nil, vaultError("search failed", err)
	}

	s.vault.RegisterActivity()
	response := credentialListResponse(creds)
	response["term"] = term
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddGroup handles the add_group tool invocation
func (s *Server) handleAddGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	created, err := s.vault.AddGroup(ctx, name)
	if err != nil {
		return nil, vaultError("failed to add group", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"created": created,
		"name":    name,
	}
	if !created {
		response["message"] = "group already exists"
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRenameGroup handles the rename_group tool invocation
func (s *Server) handleRenameGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	oldName, ok := args["old_name"].(string)
	if !ok || oldName == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "old_name parameter is required", map[string]interface{}{
			"param":  "old_name",
			"reason": "missing or empty",
		})
	}
	newName := getStringDefault(args, "new_name", "")

	if err := s.vault.RenameGroup(ctx, oldName, newName); err != nil {
		return nil, vaultError("failed to rename group", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"renamed":  true,
		"old_name": oldName,
		"new_name": newName,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteGroup handles the delete_group tool invocation
func (s *Server) handleDeleteGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	if err := s.vault.DeleteGroup(ctx, name); err != nil {
		return nil, vaultError("failed to delete group", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"deleted": true,
		"name":    name,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListGroups handles the list_groups tool invocation
func (s *Server) handleListGroups(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := s.vault.ListGroups(ctx)
	if err != nil {
		return nil, vaultError("failed to list groups", err)
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"groups": groups,
		"count":  len(groups),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGeneratePassword handles the generate_password tool invocation
func (s *Server) handleGeneratePassword(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	length := getIntDefault(args, "length", 16)

	password, err := generator.Generate(length)
	if errors.Is(err, generator.ErrInvalidLength) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid length", map[string]interface{}{
			"param":   "length",
			"value":   length,
			"minimum": 1,
			"maximum": generator.MaxLength,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "password generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.vault.RegisterActivity()
	response := map[string]interface{}{
		"password": password,
		"length":   length,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetSetting handles the get_setting tool invocation
func (s *Server) handleGetSetting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "key parameter is required", map[string]interface{}{
			"param":  "key",
			"reason": "missing or empty",
		})
	}
	fallback := getStringDefault(args, "default", "")

	value, err := s.vault.Setting(ctx, key, fallback)
	if err != nil {
		return nil, vaultError("failed to read setting", err)
	}

	response := map[string]interface{}{
		"key":   key,
		"value": value,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSetSetting handles the set_setting tool invocation
func (s *Server) handleSetSetting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "key parameter is required", map[string]interface{}{
			"param":  "key",
			"reason": "missing or empty",
		})
	}
	value, ok := args["value"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "value parameter is required", map[string]interface{}{
			"param":  "value",
			"reason": "missing",
		})
	}

	if err := s.vault.SetSetting(ctx, key, value); err != nil {
		return nil, vaultError("failed to write setting", err)
	}

	response := map[string]interface{}{
		"key":   key,
		"value": value,
		"saved": true,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// vaultError maps vault, storage, and crypto sentinels onto the MCP
// error code taxonomy. Unrecognized errors become internal errors.
func vaultError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, vault.ErrValidation):
		code = ErrorCodeInvalidParams
	case errors.Is(err, vault.ErrNotUnlocked):
		code = ErrorCodeNotUnlocked
	case errors.Is(err, vault.ErrNotInitialized):
		code = ErrorCodeNotInitialized
	case errors.Is(err, vault.ErrAlreadyInitialized):
		code = ErrorCodeAlreadyInitialized
	case errors.Is(err, vault.ErrInvalidPassphrase):
		code = ErrorCodeInvalidPassphrase
	case errors.Is(err, storage.ErrNotFound):
		code = ErrorCodeNotFound
	case errors.Is(err, storage.ErrDuplicateName):
		code = ErrorCodeDuplicateName
	case errors.Is(err, crypto.ErrDecryption):
		code = ErrorCodeDecryption
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// requireID extracts the id parameter, rejecting missing or non-positive values
func requireID(args map[string]interface{}) (int64, error) {
	id := getIntDefault(args, "id", 0)
	if id <= 0 {
		return 0, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or not a positive integer",
		})
	}
	return int64(id), nil
}

// credentialListResponse serializes credentials without password material
func credentialListResponse(creds []*storage.Credential) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(creds))
	for _, c := range creds {
		items = append(items, credentialResponse(c))
	}
	return map[string]interface{}{
		"credentials": items,
		"count":       len(items),
	}
}

// credentialResponse serializes one credential. The password is never
// included; get_password decrypts on demand.
func credentialResponse(c *storage.Credential) map[string]interface{} {
	group := storage.AllGroups
	if c.GroupName != nil {
		group = *c.GroupName
	}
	return map[string]interface{}{
		"id":            c.ID,
		"site":          c.Site,
		"username":      c.Username,
		"group":         group,
		"date_added":    c.DateAdded.Format(time.RFC3339),
		"date_modified": c.DateModified.Format(time.RFC3339),
	}
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
