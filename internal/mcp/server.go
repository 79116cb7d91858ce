package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/vaultkeep/internal/storage"
	"github.com/dshills/vaultkeep/internal/vault"
)

const (
	// ServerName is the MCP server name
	ServerName = "vaultkeep"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultVaultPath is the default location for the vault directory
	DefaultVaultPath = "~/.vaultkeep"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp   *server.MCPServer
	store *storage.SQLiteStore
	vault *vault.Manager
}

// NewServer creates a new MCP server instance over the vault at
// vaultPath. An empty path falls back to DefaultVaultPath under the
// user's home directory.
func NewServer(ctx context.Context, vaultPath string) (*Server, error) {
	// Expand home directory if needed
	if vaultPath == "" || vaultPath == DefaultVaultPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		vaultPath = filepath.Join(home, ".vaultkeep")
	}

	store, err := storage.Open(vaultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault storage: %w", err)
	}

	mgr, err := vault.New(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vault manager: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:   mcpServer,
		store: store,
		vault: mgr,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown. The
// idle monitor runs for the lifetime of the call and stops when ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()

	go s.vault.RunAutoLock(ctx)

	return server.ServeStdio(s.mcp)
}

// Close locks the vault and releases the storage
func (s *Server) Close() error {
	s.vault.Lock()
	return s.store.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Vault lifecycle
	s.mcp.AddTool(vaultStatusTool(), s.handleVaultStatus)
	s.mcp.AddTool(initVaultTool(), s.handleInitVault)
	s.mcp.AddTool(unlockVaultTool(), s.handleUnlockVault)
	s.mcp.AddTool(lockVaultTool(), s.handleLockVault)
	s.mcp.AddTool(changeMasterPasswordTool(), s.handleChangeMasterPassword)

	// Credentials
	s.mcp.AddTool(addCredentialTool(), s.handleAddCredential)
	s.mcp.AddTool(updateCredentialTool(), s.handleUpdateCredential)
	s.mcp.AddTool(deleteCredentialTool(), s.handleDeleteCredential)
	s.mcp.AddTool(getPasswordTool(), s.handleGetPassword)
	s.mcp.AddTool(listCredentialsTool(), s.handleListCredentials)
	s.mcp.AddTool(searchCredentialsTool(), s.handleSearchCredentials)

	// Groups
	s.mcp.AddTool(addGroupTool(), s.handleAddGroup)
	s.mcp.AddTool(renameGroupTool(), s.handleRenameGroup)
	s.mcp.AddTool(deleteGroupTool(), s.handleDeleteGroup)
	s.mcp.AddTool(listGroupsTool(), s.handleListGroups)

	// Utilities
	s.mcp.AddTool(generatePasswordTool(), s.handleGeneratePassword)
	s.mcp.AddTool(getSettingTool(), s.handleGetSetting)
	s.mcp.AddTool(setSettingTool(), s.handleSetSetting)

	return nil
}
