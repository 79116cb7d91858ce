// Package mcp exposes the vault over the Model Context Protocol so
// embedding clients (editors, assistants, launchers) can drive it over
// stdio.
//
// Each vault operation is one MCP tool. Tool results are indented JSON
// on the text channel; failures are returned as MCPError values whose
// codes distinguish the failure categories an embedding surface needs
// to branch on (locked vault, wrong passphrase, missing record,
// duplicate group, corrupt ciphertext).
//
// Credential listings never carry password material. The only tool
// that returns a plaintext password is get_password, which decrypts a
// single credential on demand.
//
// Every successful tool call registers activity with the vault
// manager, so the idle auto-lock clock tracks real use of the server.
package mcp
